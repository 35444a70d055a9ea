package sim

import (
	"fmt"

	"github.com/samber/lo"
)

// Candidate is a neighbor report measured from the deciding device.
type Candidate struct {
	NeighborReport
	Distance float64 // between zone centers, meters
	OffsetX  float64 // device center x minus neighbor center x
}

// Partition splits far neighbors by side of the deciding device.
type Partition struct {
	Left  []Candidate // neighbors ahead in x (negative offset)
	Right []Candidate // neighbors behind in x (positive offset)
}

// MeasureNeighbors tags every report with its zone-center distance and x offset.
// A report from a sender outside the topology is an error.
func MeasureNeighbors(zones *ZoneMap, device DeviceID, reports []NeighborReport) ([]Candidate, error) {
	out := make([]Candidate, 0, len(reports))
	for i, r := range reports {
		d, err := zones.Distance(device, r.Sender)
		if err != nil {
			return nil, fmt.Errorf("report %d from rnti %d: %w", i, r.RNTI, err)
		}
		dx, err := zones.OffsetX(device, r.Sender)
		if err != nil {
			return nil, fmt.Errorf("report %d from rnti %d: %w", i, r.RNTI, err)
		}
		out = append(out, Candidate{NeighborReport: r, Distance: d, OffsetX: dx})
	}
	return out, nil
}

// Distances projects candidates onto their distances.
func Distances(c []Candidate) []float64 {
	return lo.Map(c, func(x Candidate, _ int) float64 { return x.Distance })
}

// PartitionNeighbors keeps candidates at or beyond edge and splits them by the
// sign of their x offset. Candidates level with the device in x are dropped.
func PartitionNeighbors(candidates []Candidate, edge float64) Partition {
	far := lo.Filter(candidates, func(c Candidate, _ int) bool { return c.Distance >= edge })
	return Partition{
		Left:  lo.Filter(far, func(c Candidate, _ int) bool { return c.OffsetX < 0 }),
		Right: lo.Filter(far, func(c Candidate, _ int) bool { return c.OffsetX > 0 }),
	}
}
