package sim

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidelink-sim/ore-engine/sim/trace"
)

func newTestEngine(t *testing.T, sample float64, frames FrameReader, sink InstructionSink) *Engine {
	t.Helper()
	cfg := DefaultEngineConfig()
	cfg.Trace.Level = "decisions"
	cfg.Trace.WatchDevice = 30
	e, err := NewEngine(cfg, testTables(t, sample), frames, sink)
	require.NoError(t, err)
	return e
}

func sensing(id DeviceID, exclusions, rsrp int, now float64) Event {
	return Event{DeviceID: id, Sensing: true, OccupiedResources: exclusions, RSRPThreshold: rsrp, Time: now}
}

func decision(id DeviceID, now float64) Event {
	return Event{DeviceID: id, Time: now, ModeSelection: true}
}

type countingObserver struct {
	sensed    []int
	decisions []trace.DecisionRecord
}

func (c *countingObserver) ObserveSensing(device int)                { c.sensed = append(c.sensed, device) }
func (c *countingObserver) ObserveDecision(rec trace.DecisionRecord) { c.decisions = append(c.decisions, rec) }

func TestEngine_Uninitialized_EmitsDefault(t *testing.T) {
	// GIVEN a fresh engine
	sink := &recordingSink{}
	e := newTestEngine(t, 0.3, nil, sink)

	// WHEN a decision arrives for a device that never sensed
	in, ok, err := e.Handle(decision(30, 500))

	// THEN the instruction is exactly "21" and the device stays uninitialized
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "21", in.Digits())
	assert.Equal(t, []string{"21"}, sink.written)
	st, _ := e.Devices.Get(30)
	assert.Equal(t, PhaseUninitialized, st.Phase)
	assert.Equal(t, 1, e.Metrics.Defaults)
}

func TestEngine_NoDeviceBeforeAnySensing_EmitsDefault(t *testing.T) {
	e := newTestEngine(t, 0.3, nil, nil)
	in, ok, err := e.Handle(decision(NoDevice, 0))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "21", in.Digits())
}

func TestEngine_Sensing_ProducesNoInstruction(t *testing.T) {
	// GIVEN a window of reports pending on the side channel
	sink := &recordingSink{}
	e := newTestEngine(t, 0.3, newStubFrames(t, opportunisticWindow()), sink)

	// WHEN the sensing event is handled
	_, ok, err := e.Handle(sensing(30, 10, -100, 999))

	// THEN state is updated and nothing is written
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, sink.written)
	st, _ := e.Devices.Get(30)
	assert.Equal(t, PhaseSensed, st.Phase)
	assert.Len(t, st.Reports, 50)
	assert.Equal(t, 10, st.LastExclusionCount)
	assert.Equal(t, 7, st.LastPowerThreshold) // -100 + 107
	assert.InDelta(t, 0.2, st.Occupancy, 1e-12)
	assert.Equal(t, 1, e.Metrics.SensingEvents)
}

func TestEngine_OpportunisticCycle(t *testing.T) {
	// GIVEN device 30 sensed at occupancy 0.2 (band P2) with L=3, R=2 far neighbors
	sink := &recordingSink{}
	obs := &countingObserver{}
	e := newTestEngine(t, 0.3, newStubFrames(t, opportunisticWindow()), sink)
	e.Observer = obs
	_, _, err := e.Handle(sensing(30, 10, -100, 999))
	require.NoError(t, err)

	// WHEN the decision event follows at t=1000
	in, ok, err := e.Handle(decision(30, 1000))

	// THEN P2 row 0 (t=4) wins and picks alternate L0, R0, L1, R1
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "14483084995286", in.Digits())
	assert.Equal(t, []string{"14483084995286"}, sink.written)

	// AND the edge distance moved to 0.5*5 + 0.5*75
	st, _ := e.Devices.Get(30)
	assert.InDelta(t, 40, st.EdgeDistance, 1e-12)
	assert.Equal(t, PhaseDecided, st.Phase)
	// AND the P2 terminal row's config is recorded
	assert.Equal(t, ResourceConfig(4), st.ResourceConfig)

	// AND trace, metrics and observer agree
	want := trace.DecisionRecord{
		Time:           1000,
		Device:         30,
		Mode:           "opportunistic",
		Band:           "p2",
		Row:            0,
		Threshold:      4,
		ResourceConfig: 4,
		Occupancy:      st.Occupancy,
		EdgeDistance:   st.EdgeDistance,
		Neighbors:      50,
		LeftCount:      3,
		RightCount:     2,
		RingIterations: 2,
		Instruction:    "14483084995286",
	}
	require.Len(t, e.Trace.Decisions, 1)
	if diff := cmp.Diff(want, e.Trace.Decisions[0], cmpIgnoreReason); diff != "" {
		t.Errorf("decision record mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, e.Metrics.Opportunistic)
	assert.Equal(t, 1, e.Metrics.BandDecisions[BandP2])
	assert.Equal(t, []int{30}, obs.sensed)
	require.Len(t, obs.decisions, 1)

	// AND the watched device's estimate was snapshotted
	require.Len(t, e.Trace.Estimates, 1)
	assert.Equal(t, 10, e.Trace.Estimates[0].ExclusionCount)
}

var cmpIgnoreReason = cmp.FilterPath(func(p cmp.Path) bool {
	return p.Last().String() == ".Reason"
}, cmp.Ignore())

func TestEngine_NegativeDeviceTargetsLastSensed(t *testing.T) {
	// GIVEN device 30 sensed last
	e := newTestEngine(t, 0.3, newStubFrames(t, opportunisticWindow()), nil)
	_, _, err := e.Handle(sensing(30, 10, -100, 999))
	require.NoError(t, err)

	// WHEN a decision arrives without a device id
	in, _, err := e.Handle(decision(NoDevice, 1000))

	// THEN it is decided for device 30
	require.NoError(t, err)
	assert.Equal(t, "14483084995286", in.Digits())
}

func TestEngine_EmptyWindow_FallsBack(t *testing.T) {
	// GIVEN an interior device that sensed with no reports at occupancy 0.1
	e := newTestEngine(t, 0.1, nil, nil)
	_, _, err := e.Handle(sensing(40, 3, -100, 10))
	require.NoError(t, err)

	// WHEN deciding
	in, _, err := e.Handle(decision(40, 11))

	// THEN band P1 falls back to its last row config and the edge is unchanged
	require.NoError(t, err)
	assert.Equal(t, "23", in.Digits())
	st, _ := e.Devices.Get(40)
	assert.Equal(t, 75.0, st.EdgeDistance)
	assert.Equal(t, ResourceConfig(3), st.ResourceConfig)
}

func TestEngine_ResourceConfigFeedsNextOccupancyUpdate(t *testing.T) {
	// GIVEN config 3 samples differ from config 1
	occ := []*OccupancyTable{
		uniformOccupancy(1, 60, 45, 0.1),
		uniformOccupancy(2, 60, 45, 0.1),
		uniformOccupancy(3, 60, 45, 0.9),
		uniformOccupancy(4, 60, 45, 0.1),
	}
	tables, err := NewTables(occ, testSettings())
	require.NoError(t, err)
	e, err := NewEngine(DefaultEngineConfig(), tables, nil, nil)
	require.NoError(t, err)

	// WHEN device 40 senses, falls back to config 3 (band P1), then senses again
	_, _, err = e.Handle(sensing(40, 1, -100, 0))
	require.NoError(t, err)
	_, _, err = e.Handle(decision(40, 1))
	require.NoError(t, err)
	_, _, err = e.Handle(sensing(40, 1, -100, 2))
	require.NoError(t, err)

	// THEN the second update used the config-3 table: 0.5*0.9 + 0.5*0.1
	st, _ := e.Devices.Get(40)
	assert.InDelta(t, 0.5, st.Occupancy, 1e-12)
}

func TestEngine_OutOfTableSensing_AbortsWithRangeError(t *testing.T) {
	e := newTestEngine(t, 0.3, nil, nil)
	_, _, err := e.Handle(sensing(30, 500, -100, 0))
	var rangeErr *RangeError
	assert.ErrorAs(t, err, &rangeErr)
}

type failingSink struct{ err error }

func (f failingSink) WriteInstruction(Instruction) error { return f.err }

func TestEngine_FailedWrite_LeavesDeviceStateUntouched(t *testing.T) {
	// GIVEN device 30 sensed with a window that would move its edge to 40 m
	errDisk := errors.New("disk full")
	e := newTestEngine(t, 0.3, newStubFrames(t, opportunisticWindow()), failingSink{err: errDisk})
	_, _, err := e.Handle(sensing(30, 10, -100, 999))
	require.NoError(t, err)

	// WHEN the instruction cannot be written
	_, ok, err := e.Handle(decision(30, 1000))

	// THEN the error surfaces and the decision left no trace on the device
	require.Error(t, err)
	assert.True(t, errors.Is(err, errDisk))
	assert.False(t, ok)
	st, _ := e.Devices.Get(30)
	assert.Equal(t, 75.0, st.EdgeDistance)
	assert.Equal(t, PhaseSensed, st.Phase)
	assert.Equal(t, ResourceConfig(1), st.ResourceConfig)
	assert.Equal(t, 0, e.Metrics.Opportunistic)
	assert.Empty(t, e.Trace.Decisions)
}

func TestEngine_UnknownDevice_Error(t *testing.T) {
	e := newTestEngine(t, 0.3, nil, nil)
	_, _, err := e.Handle(sensing(300, 1, -100, 0))
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestEngine_Deterministic(t *testing.T) {
	// GIVEN the same event sequence replayed on two engines
	run := func() []string {
		sink := &recordingSink{}
		frames := &stubFrames{}
		e := newTestEngine(t, 0.3, frames, sink)
		for cycle := 0; cycle < 5; cycle++ {
			now := float64(1000 + 100*cycle)
			frames.load(t, opportunisticWindow())
			for _, ev := range []Event{decision(NoDevice, now-2), sensing(30, 10, -100, now-1), decision(30, now)} {
				_, _, err := e.Handle(ev)
				require.NoError(t, err)
			}
		}
		return sink.written
	}

	// THEN the emitted instruction streams are identical
	assert.Equal(t, run(), run())
}

func TestNewEngine_RejectsMissingTables(t *testing.T) {
	_, err := NewEngine(DefaultEngineConfig(), nil, nil, nil)
	assert.Error(t, err)
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Selection.Policy = "greedy"
	_, err := NewEngine(cfg, testTables(t, 0.2), nil, nil)
	assert.Error(t, err)
}
