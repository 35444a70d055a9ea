package sim

import "fmt"

// Event is one per-cycle record delivered by the driver. Sensing events carry
// fresh local measurements; all others request a decision.
type Event struct {
	DeviceID          DeviceID // NoDevice on a decision targets the last sensed device
	Sensing           bool
	OccupiedResources int     // locally excluded resource count
	RSRPThreshold     int     // raw received-power threshold, dBm
	Time              float64 // simulation time, ms
	ModeSelection     bool    // diagnostic only
}

func (ev Event) String() string {
	kind := "decision"
	if ev.Sensing {
		kind = "sensing"
	}
	return fmt.Sprintf("%s(device=%d, t=%.1f)", kind, ev.DeviceID, ev.Time)
}
