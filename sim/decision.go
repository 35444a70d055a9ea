package sim

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// Mode is the resource selection mode carried by an instruction.
type Mode int

const (
	ModeOpportunistic Mode = 1 // reserve resources avoiding neighbor reservations
	ModeFallback      Mode = 2 // persistent allocation with a fixed resource config
)

func (m Mode) String() string {
	switch m {
	case ModeOpportunistic:
		return "opportunistic"
	case ModeFallback:
		return "fallback"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Decision is the outcome of one selection cycle.
type Decision struct {
	Mode           Mode
	Band           Band
	Row            int            // index of the settings row that decided
	Threshold      int            // row neighbor-count threshold (opportunistic only)
	ResourceConfig ResourceConfig // recorded on the device for future occupancy updates
	Left           []Candidate    // sorted, age-filtered candidates (opportunistic only)
	Right          []Candidate
	Reason         string
}

// Policy picks a mode and parameters from the occupancy estimate and partition.
type Policy interface {
	Decide(occupancy float64, p Partition) (Decision, error)
}

// NewPolicy creates a policy by name. Empty name means opportunistic.
func NewPolicy(name string, tables *Tables, sel SelectionConfig) (Policy, error) {
	switch name {
	case "", PolicyOpportunistic:
		return &OpportunisticPolicy{tables: tables, sel: sel}, nil
	case PolicyPersistent:
		return &PersistentPolicy{tables: tables, sel: sel}, nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

// RequiredPerSide returns how many qualifying neighbors each side needs for a
// row threshold t: t/2 rounded down, which covers the odd case (t-1)/2.
func RequiredPerSide(t int) int {
	if t%2 == 0 {
		return t / 2
	}
	return (t - 1) / 2
}

// WithinAge keeps the candidates whose report age is at most maxAge.
func WithinAge(c []Candidate, maxAge float64) []Candidate {
	return lo.Filter(c, func(x Candidate, _ int) bool { return float64(x.Age) <= maxAge })
}

// SortByDistanceDesc orders candidates farthest first. Ties keep report order.
func SortByDistanceDesc(c []Candidate) {
	slices.SortStableFunc(c, func(a, b Candidate) int { return cmp.Compare(b.Distance, a.Distance) })
}

func fallback(table SettingsTable, reason string) Decision {
	return Decision{
		Mode:           ModeFallback,
		Band:           table.Band,
		Row:            len(table.Rows) - 1,
		ResourceConfig: table.Last().FallbackConfig,
		Reason:         reason,
	}
}

// OpportunisticPolicy is a first-fit search over the band's settings rows.
type OpportunisticPolicy struct {
	tables *Tables
	sel    SelectionConfig
}

// Decide returns fallback when either side is empty. Otherwise the first row
// among 0..len-3 whose age-filtered left and right counts both reach
// RequiredPerSide wins; its candidates are sorted farthest first. The last two
// rows never go opportunistic. In both modes the recorded resource config is
// the terminal row's.
func (p *OpportunisticPolicy) Decide(occupancy float64, part Partition) (Decision, error) {
	band := BandFor(occupancy, p.sel)
	table, err := p.tables.SettingsFor(band)
	if err != nil {
		return Decision{}, err
	}
	if len(part.Left) == 0 || len(part.Right) == 0 {
		return fallback(table, fmt.Sprintf("one-sided neighborhood (left=%d, right=%d)", len(part.Left), len(part.Right))), nil
	}
	for i := 0; i < len(table.Rows)-2; i++ {
		row := table.Rows[i]
		left := WithinAge(part.Left, row.ReportAgeThreshold)
		right := WithinAge(part.Right, row.ReportAgeThreshold)
		need := RequiredPerSide(row.NeighborCountThreshold)
		if len(left) >= need && len(right) >= need {
			SortByDistanceDesc(left)
			SortByDistanceDesc(right)
			return Decision{
				Mode:           ModeOpportunistic,
				Band:           band,
				Row:            i,
				Threshold:      row.NeighborCountThreshold,
				ResourceConfig: table.Last().FallbackConfig,
				Left:           left,
				Right:          right,
				Reason:         fmt.Sprintf("row %d satisfied (left=%d, right=%d, need=%d)", i, len(left), len(right), need),
			}, nil
		}
	}
	return fallback(table, "no settings row satisfied"), nil
}

// PersistentPolicy always falls back to the band's terminal row.
type PersistentPolicy struct {
	tables *Tables
	sel    SelectionConfig
}

// Decide returns the band's fallback decision regardless of neighbors.
func (p *PersistentPolicy) Decide(occupancy float64, _ Partition) (Decision, error) {
	table, err := p.tables.SettingsFor(BandFor(occupancy, p.sel))
	if err != nil {
		return Decision{}, err
	}
	return fallback(table, "persistent policy"), nil
}
