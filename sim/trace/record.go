// Package trace provides decision-trace recording for selection analysis.
// This package has no dependencies on sim/. It stores pure data types.
package trace

// DecisionRecord captures a single mode decision.
type DecisionRecord struct {
	Time           float64
	Device         int
	Mode           string // "opportunistic", "fallback" or "default"
	Band           string // "p1", "p2", "p4"; empty for the default instruction
	Row            int
	Threshold      int
	ResourceConfig int
	Occupancy      float64
	EdgeDistance   float64
	Neighbors      int // reports in the sensing window
	LeftCount      int // far neighbors on the left
	RightCount     int // far neighbors on the right
	RingIterations int
	Instruction    string
	Reason         string
}

// EstimateRecord is one snapshot of a device's estimators, written as a CSV row.
type EstimateRecord struct {
	Time           float64 `csv:"time"`
	Device         int     `csv:"device"`
	Occupancy      float64 `csv:"occupancy"`
	EdgeDistance   float64 `csv:"edge_distance_m"`
	ExclusionCount int     `csv:"exclusion_count"`
	PowerThreshold int     `csv:"power_threshold"`
}
