package trace

import "gonum.org/v1/gonum/stat"

// Mode names used in DecisionRecord.Mode.
const (
	ModeOpportunistic = "opportunistic"
	ModeFallback      = "fallback"
	ModeDefault       = "default"
)

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions     int
	OpportunisticCount int
	FallbackCount      int
	DefaultCount       int
	UniqueDevices      int
	MeanOccupancy      float64
	StdDevOccupancy    float64
	MeanEdgeDistance   float64
	MaxEdgeDistance    float64
	BandDistribution   map[string]int // band → decisions taken in it
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
// Default instructions are counted but excluded from estimate statistics.
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		BandDistribution: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Decisions)
	devices := make(map[int]bool)
	var occupancy, edge []float64
	for _, d := range st.Decisions {
		switch d.Mode {
		case ModeOpportunistic:
			summary.OpportunisticCount++
		case ModeFallback:
			summary.FallbackCount++
		case ModeDefault:
			summary.DefaultCount++
			continue
		}
		devices[d.Device] = true
		summary.BandDistribution[d.Band]++
		occupancy = append(occupancy, d.Occupancy)
		edge = append(edge, d.EdgeDistance)
		if d.EdgeDistance > summary.MaxEdgeDistance {
			summary.MaxEdgeDistance = d.EdgeDistance
		}
	}
	summary.UniqueDevices = len(devices)

	if len(occupancy) > 0 {
		summary.MeanOccupancy = stat.Mean(occupancy, nil)
		summary.MeanEdgeDistance = stat.Mean(edge, nil)
	}
	if len(occupancy) > 1 {
		summary.StdDevOccupancy = stat.StdDev(occupancy, nil)
	}

	return summary
}
