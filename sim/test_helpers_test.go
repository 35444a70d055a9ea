package sim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// uniformOccupancy returns a rows x cols table filled with v.
func uniformOccupancy(cfg ResourceConfig, rows, cols int, v float64) *OccupancyTable {
	samples := make([][]float64, rows)
	for i := range samples {
		samples[i] = make([]float64, cols)
		for j := range samples[i] {
			samples[i][j] = v
		}
	}
	return &OccupancyTable{Config: cfg, Samples: samples}
}

// testSettings is the fixture used across engine and policy tests.
//
//	p1: last row falls back to config 3
//	p2: row 0 needs 4 neighbors (2 per side) of age <= 5; last row config 4
//	p4: last row config 2
func testSettings() []SettingsTable {
	return []SettingsTable{
		{Band: BandP1, Rows: []SettingsRow{
			{NeighborCountThreshold: 6, ReportAgeThreshold: 3, FallbackConfig: 1},
			{NeighborCountThreshold: 4, ReportAgeThreshold: 5, FallbackConfig: 1},
			{NeighborCountThreshold: 2, ReportAgeThreshold: 10, FallbackConfig: 2},
			{NeighborCountThreshold: 0, ReportAgeThreshold: 100, FallbackConfig: 3},
		}},
		{Band: BandP2, Rows: []SettingsRow{
			{NeighborCountThreshold: 4, ReportAgeThreshold: 5, FallbackConfig: 1},
			{NeighborCountThreshold: 2, ReportAgeThreshold: 5, FallbackConfig: 2},
			{NeighborCountThreshold: 0, ReportAgeThreshold: 100, FallbackConfig: 2},
			{NeighborCountThreshold: 0, ReportAgeThreshold: 100, FallbackConfig: 4},
		}},
		{Band: BandP4, Rows: []SettingsRow{
			{NeighborCountThreshold: 8, ReportAgeThreshold: 2, FallbackConfig: 1},
			{NeighborCountThreshold: 0, ReportAgeThreshold: 100, FallbackConfig: 3},
			{NeighborCountThreshold: 0, ReportAgeThreshold: 100, FallbackConfig: 2},
		}},
	}
}

// testTables provisions all four configs with a constant sample.
func testTables(t *testing.T, sample float64) *Tables {
	t.Helper()
	var occ []*OccupancyTable
	for cfg := ResourceConfig(1); cfg <= 4; cfg++ {
		occ = append(occ, uniformOccupancy(cfg, 60, 45, sample))
	}
	tables, err := NewTables(occ, testSettings())
	require.NoError(t, err)
	return tables
}

// rntiOf inverts DeviceIndexFromRNTI for device ids below 255.
func rntiOf(id DeviceID) int { return int(id) + 1 }

// report builds a neighbor report from a sender device.
func report(sender DeviceID, age, slot, sub int) NeighborReport {
	return NeighborReport{RNTI: rntiOf(sender), Sender: sender, Age: age, Slot: slot, Subchannel: sub}
}

// stubFrames serves one encoded report window and then runs dry.
type stubFrames struct {
	pending map[ReportField]string
}

func newStubFrames(t *testing.T, reports []NeighborReport) *stubFrames {
	t.Helper()
	s := &stubFrames{}
	s.load(t, reports)
	return s
}

func (s *stubFrames) load(t *testing.T, reports []NeighborReport) {
	t.Helper()
	blocks, err := EncodeReportBlocks(reports)
	require.NoError(t, err)
	s.pending = make(map[ReportField]string, len(ReportFields))
	for _, f := range ReportFields {
		s.pending[f] = FrameBlock(blocks.Get(f))
	}
}

func (s *stubFrames) ReadFrame(f ReportField) (string, bool, error) {
	frame, ok := s.pending[f]
	delete(s.pending, f)
	return frame, ok, nil
}

// recordingSink keeps every written instruction.
type recordingSink struct {
	written []string
}

func (r *recordingSink) WriteInstruction(in Instruction) error {
	r.written = append(r.written, in.Digits())
	return nil
}

// opportunisticWindow is the report window of interior device 30 used by the
// engine scenarios: 45 near reports from device 180 (same x, other lane,
// 5 m apart) pull the edge distance to 40 m, leaving three far neighbors
// ahead (left) and two behind (right).
func opportunisticWindow() []NeighborReport {
	reports := make([]NeighborReport, 0, 50)
	for i := 0; i < 45; i++ {
		reports = append(reports, report(180, 1, 0, 0))
	}
	return append(reports,
		report(35, 2, 70, 7), // 50 m ahead
		report(36, 2, 1, 5),  // 60 m ahead
		report(37, 3, 50, 3), // 70 m ahead
		report(25, 1, 30, 6), // 50 m behind
		report(24, 4, 10, 4), // 60 m behind
	)
}
