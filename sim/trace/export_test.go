package trace

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteEstimatesCSV_RoundTrip(t *testing.T) {
	// GIVEN a trace with two estimate snapshots
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions, WatchDevice: 75})
	st.RecordEstimate(EstimateRecord{Time: 5001, Device: 75, Occupancy: 0.125, EdgeDistance: 37.5, ExclusionCount: 12, PowerThreshold: 9})
	st.RecordEstimate(EstimateRecord{Time: 5101, Device: 75, Occupancy: 0.25, EdgeDistance: 40, ExclusionCount: 20, PowerThreshold: 12})

	// WHEN written and read back
	var buf bytes.Buffer
	if err := WriteEstimatesCSV(&buf, st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// THEN the header names the columns
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	if header != "time,device,occupancy,edge_distance_m,exclusion_count,power_threshold" {
		t.Errorf("unexpected header %q", header)
	}
	// AND the records survive unchanged
	got, err := ReadEstimatesCSV(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(st.Estimates, got); diff != "" {
		t.Errorf("estimates mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteEstimatesCSV_EmptyTrace_WritesNothing(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEstimatesCSV(&buf, NewSimulationTrace(TraceConfig{})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
