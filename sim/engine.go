package sim

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sidelink-sim/ore-engine/sim/trace"
)

// DecisionObserver is notified after every processed event. Implementations
// must not mutate engine state.
type DecisionObserver interface {
	ObserveSensing(device int)
	ObserveDecision(rec trace.DecisionRecord)
}

// Engine owns all per-device state and runs one selection cycle per event.
// It is single-threaded: Handle finishes every mutation and the instruction
// write before returning.
type Engine struct {
	Config  EngineConfig
	Zones   *ZoneMap
	Tables  *Tables
	Devices *DeviceRegistry
	Metrics *Metrics
	// Trace is nil unless the trace level is "decisions".
	Trace    *trace.SimulationTrace
	Observer DecisionObserver

	occupancy *OccupancyEstimator
	edge      *EdgeDistanceEstimator
	policy    Policy
	encoder   *InstructionEncoder

	frames     FrameReader
	sink       InstructionSink
	lastSensed DeviceID
}

// NewEngine validates the configuration against the provisioned tables and
// seeds every device. frames and sink may be nil: a nil reader yields empty
// report sets and a nil sink discards instructions.
func NewEngine(cfg EngineConfig, tables *Tables, frames FrameReader, sink InstructionSink) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if tables == nil {
		return nil, errors.New("no provisioning tables")
	}
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tables: %w", err)
	}
	if _, err := tables.OccupancyFor(cfg.Estimator.InitialResourceConfig); err != nil {
		return nil, fmt.Errorf("estimator.initial_resource_config: %w", err)
	}
	zones, err := NewZoneMap(cfg.Topology)
	if err != nil {
		return nil, err
	}
	policy, err := NewPolicy(cfg.Selection.Policy, tables, cfg.Selection)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		Config:     cfg,
		Zones:      zones,
		Tables:     tables,
		Devices:    NewDeviceRegistry(cfg.Topology.NumDevices, cfg.Estimator),
		Metrics:    NewMetrics(),
		occupancy:  NewOccupancyEstimator(zones, tables, cfg.Estimator),
		edge:       NewEdgeDistanceEstimator(cfg.Topology.ZoneSize, cfg.Estimator),
		policy:     policy,
		encoder:    NewInstructionEncoder(cfg.Selection),
		frames:     frames,
		sink:       sink,
		lastSensed: NoDevice,
	}
	if trace.TraceLevel(cfg.Trace.Level) == trace.TraceLevelDecisions {
		e.Trace = trace.NewSimulationTrace(trace.TraceConfig{
			Level:       trace.TraceLevelDecisions,
			WatchDevice: int(cfg.Trace.WatchDevice),
		})
	}
	return e, nil
}

// Handle processes one event. Sensing events update the device's estimates
// and report cache and return ok=false. Any other event runs a decision cycle
// and returns the emitted instruction with ok=true. A decision cycle that
// fails to encode or write its instruction leaves the device state untouched.
func (e *Engine) Handle(ev Event) (in Instruction, ok bool, err error) {
	if ev.Sensing {
		if err := e.sense(ev); err != nil {
			return Instruction{}, false, fmt.Errorf("%s: %w", ev, err)
		}
		return Instruction{}, false, nil
	}
	in, err = e.decide(ev)
	if err != nil {
		return Instruction{}, false, fmt.Errorf("%s: %w", ev, err)
	}
	return in, true, nil
}

func (e *Engine) sense(ev Event) error {
	st, err := e.Devices.Get(ev.DeviceID)
	if err != nil {
		return err
	}
	blocks, err := ReadReportBlocks(e.frames)
	if err != nil {
		return err
	}
	reports, err := DecodeReportBlocks(blocks)
	if err != nil {
		return err
	}
	sample := SensingSample{
		ExclusionCount: ev.OccupiedResources,
		PowerThreshold: ev.RSRPThreshold + e.Config.Estimator.PowerOffsetDB,
	}
	if err := e.occupancy.Update(st, sample); err != nil {
		return err
	}
	st.Reports = reports
	st.Phase = PhaseSensed
	e.lastSensed = st.ID
	e.Metrics.SensingEvents++
	if e.Observer != nil {
		e.Observer.ObserveSensing(int(st.ID))
	}
	logrus.Debugf("[t=%.0f] device %d sensed: %d reports, exclusions=%d, power=%d",
		ev.Time, st.ID, len(reports), sample.ExclusionCount, sample.PowerThreshold)
	return nil
}

// target resolves the device a decision event applies to.
func (e *Engine) target(ev Event) DeviceID {
	if ev.DeviceID < 0 {
		return e.lastSensed
	}
	return ev.DeviceID
}

func (e *Engine) decide(ev Event) (Instruction, error) {
	id := e.target(ev)
	if id == NoDevice {
		return e.emitDefault(ev, id)
	}
	st, err := e.Devices.Get(id)
	if err != nil {
		return Instruction{}, err
	}
	if st.Phase == PhaseUninitialized {
		return e.emitDefault(ev, id)
	}

	candidates, err := MeasureNeighbors(e.Zones, st.ID, st.Reports)
	if err != nil {
		return Instruction{}, err
	}
	edge, iterations := e.edge.Next(st.EdgeDistance, Distances(candidates))
	part := PartitionNeighbors(candidates, edge)

	d, err := e.policy.Decide(st.Occupancy, part)
	if err != nil {
		return Instruction{}, err
	}
	in, err := e.encoder.Encode(d, ev.Time)
	if err != nil {
		return Instruction{}, fmt.Errorf("encoding %s decision for device %d: %w", d.Mode, st.ID, err)
	}
	if err := e.write(in); err != nil {
		return Instruction{}, err
	}
	st.EdgeDistance = edge
	st.ResourceConfig = d.ResourceConfig
	st.Phase = PhaseDecided
	e.Metrics.recordDecision(d, iterations)

	rec := trace.DecisionRecord{
		Time:           ev.Time,
		Device:         int(st.ID),
		Mode:           d.Mode.String(),
		Band:           d.Band.String(),
		Row:            d.Row,
		Threshold:      d.Threshold,
		ResourceConfig: int(d.ResourceConfig),
		Occupancy:      st.Occupancy,
		EdgeDistance:   st.EdgeDistance,
		Neighbors:      len(st.Reports),
		LeftCount:      len(part.Left),
		RightCount:     len(part.Right),
		RingIterations: iterations,
		Instruction:    in.Digits(),
		Reason:         d.Reason,
	}
	e.record(rec)
	if e.Trace.Watches(int(st.ID)) && st.LastExclusionCount > 0 {
		e.Trace.RecordEstimate(trace.EstimateRecord{
			Time:           ev.Time,
			Device:         int(st.ID),
			Occupancy:      st.Occupancy,
			EdgeDistance:   st.EdgeDistance,
			ExclusionCount: st.LastExclusionCount,
			PowerThreshold: st.LastPowerThreshold,
		})
	}

	logrus.Infof("[t=%.0f] device %d: %s band=%s row=%d occ=%.3f edge=%.1fm L=%d R=%d -> %s",
		ev.Time, st.ID, d.Mode, d.Band, d.Row, st.Occupancy, st.EdgeDistance,
		len(part.Left), len(part.Right), in.Digits())
	return in, nil
}

func (e *Engine) emitDefault(ev Event, id DeviceID) (Instruction, error) {
	in := DefaultInstruction
	if err := e.write(in); err != nil {
		return Instruction{}, err
	}
	e.Metrics.recordDefault()
	e.record(trace.DecisionRecord{
		Time:           ev.Time,
		Device:         int(id),
		Mode:           trace.ModeDefault,
		ResourceConfig: int(in.ResourceConfig),
		Instruction:    in.Digits(),
		Reason:         "no sensing data",
	})
	logrus.Infof("[t=%.0f] device %d: no sensing data -> %s", ev.Time, id, in.Digits())
	return in, nil
}

func (e *Engine) write(in Instruction) error {
	if e.sink == nil {
		return nil
	}
	if err := e.sink.WriteInstruction(in); err != nil {
		return fmt.Errorf("writing instruction %s: %w", in.Digits(), err)
	}
	return nil
}

func (e *Engine) record(rec trace.DecisionRecord) {
	if e.Trace != nil {
		e.Trace.RecordDecision(rec)
	}
	if e.Observer != nil {
		e.Observer.ObserveDecision(rec)
	}
}
