package sim

import (
	"errors"
	"fmt"
	"sort"
)

// DeviceID is the flat index of a device, 0..N-1.
type DeviceID int

// NoDevice marks an event that does not name its device.
const NoDevice DeviceID = -1

// ErrUnknownDevice is returned for a device id outside the topology.
var ErrUnknownDevice = errors.New("unknown device")

// DeviceIndexFromRNTI maps a radio identifier (RNTI or IMSI) to a device index.
// Identifiers skip one value every 256, hence the floor term.
func DeviceIndexFromRNTI(rnti int) DeviceID {
	return DeviceID(rnti - 1 - rnti/256)
}

// Phase is the per-device lifecycle state.
type Phase int

const (
	PhaseUninitialized Phase = iota // no sensing data received yet
	PhaseSensed                     // sensing just processed, no instruction this cycle
	PhaseDecided                    // a decision cycle ran and produced one instruction
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseSensed:
		return "sensed"
	case PhaseDecided:
		return "decided"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// DeviceState is everything the engine remembers about one device.
type DeviceState struct {
	ID                 DeviceID
	Phase              Phase
	LastExclusionCount int              // most recent locally occupied resource count
	LastPowerThreshold int              // most recent RSRP threshold, offset-corrected
	Occupancy          float64          // smoothed occupancy estimate in [0,1]
	ResourceConfig     ResourceConfig   // selects the occupancy table for the next update
	EdgeDistance       float64          // smoothed local/remote boundary, meters
	Reports            []NeighborReport // current sensing window only
}

// DeviceRegistry holds one DeviceState per device, keyed by id.
type DeviceRegistry struct {
	states map[DeviceID]*DeviceState
}

// NewDeviceRegistry seeds n devices from the estimator configuration.
func NewDeviceRegistry(n int, est EstimatorConfig) *DeviceRegistry {
	r := &DeviceRegistry{states: make(map[DeviceID]*DeviceState, n)}
	for i := 0; i < n; i++ {
		id := DeviceID(i)
		r.states[id] = &DeviceState{
			ID:                 id,
			Phase:              PhaseUninitialized,
			LastExclusionCount: est.InitialExclusionCount,
			Occupancy:          est.InitialOccupancy,
			ResourceConfig:     est.InitialResourceConfig,
			EdgeDistance:       est.InitialEdgeDistance,
		}
	}
	return r
}

// Get returns the state of a device.
func (r *DeviceRegistry) Get(id DeviceID) (*DeviceState, error) {
	st, ok := r.states[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d (have %d devices)", ErrUnknownDevice, id, len(r.states))
	}
	return st, nil
}

// Len returns the device count.
func (r *DeviceRegistry) Len() int { return len(r.states) }

// IDs returns all device ids in ascending order.
func (r *DeviceRegistry) IDs() []DeviceID {
	ids := make([]DeviceID, 0, len(r.states))
	for id := range r.states {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
