package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(sender DeviceID, age int, dist float64) Candidate {
	return Candidate{NeighborReport: report(sender, age, 0, 0), Distance: dist}
}

func newTestPolicy(t *testing.T, name string) Policy {
	t.Helper()
	p, err := NewPolicy(name, testTables(t, 0.2), DefaultSelectionConfig())
	require.NoError(t, err)
	return p
}

func TestRequiredPerSide(t *testing.T) {
	tests := []struct{ t, want int }{{0, 0}, {1, 0}, {2, 1}, {3, 1}, {4, 2}, {5, 2}, {8, 4}}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RequiredPerSide(tt.t), "threshold %d", tt.t)
	}
}

func TestOpportunisticPolicy_EmptyLeft_FallsBackWithLastRowConfig(t *testing.T) {
	// GIVEN occupancy 0.10 (band P1) and no neighbors on the left
	p := newTestPolicy(t, PolicyOpportunistic)
	part := Partition{Right: []Candidate{candidate(20, 1, 100), candidate(21, 1, 90)}}

	// WHEN deciding
	d, err := p.Decide(0.10, part)

	// THEN the P1 last row's config is chosen in fallback mode
	require.NoError(t, err)
	assert.Equal(t, ModeFallback, d.Mode)
	assert.Equal(t, BandP1, d.Band)
	assert.Equal(t, ResourceConfig(3), d.ResourceConfig)
	assert.Equal(t, 3, d.Row)
}

func TestOpportunisticPolicy_FirstFitRowWins(t *testing.T) {
	// GIVEN occupancy 0.20 (band P2, row 0: t=4, age<=5) with L=3, R=2
	p := newTestPolicy(t, PolicyOpportunistic)
	part := Partition{
		Left:  []Candidate{candidate(35, 2, 50), candidate(36, 2, 60), candidate(37, 3, 70)},
		Right: []Candidate{candidate(25, 1, 50), candidate(24, 4, 60)},
	}

	// WHEN deciding
	d, err := p.Decide(0.20, part)

	// THEN row 0 wins with threshold 4 and the last row's config is recorded
	require.NoError(t, err)
	assert.Equal(t, ModeOpportunistic, d.Mode)
	assert.Equal(t, BandP2, d.Band)
	assert.Equal(t, 0, d.Row)
	assert.Equal(t, 4, d.Threshold)
	assert.Equal(t, ResourceConfig(4), d.ResourceConfig)

	// AND candidates are sorted farthest first
	require.Len(t, d.Left, 3)
	assert.Equal(t, []DeviceID{37, 36, 35}, []DeviceID{d.Left[0].Sender, d.Left[1].Sender, d.Left[2].Sender})
	assert.Equal(t, []DeviceID{24, 25}, []DeviceID{d.Right[0].Sender, d.Right[1].Sender})
}

func TestOpportunisticPolicy_AllTooOld_FallsBack(t *testing.T) {
	// GIVEN P2 neighbors too old for rows 0 and 1 (age <= 5)
	p := newTestPolicy(t, PolicyOpportunistic)
	part := Partition{
		Left:  []Candidate{candidate(35, 9, 50), candidate(36, 9, 60)},
		Right: []Candidate{candidate(25, 9, 50), candidate(24, 9, 60)},
	}

	// WHEN deciding
	d, err := p.Decide(0.25, part)

	// THEN row 2 is never considered (last two rows are fallback-only) so the result is fallback
	require.NoError(t, err)
	assert.Equal(t, ModeFallback, d.Mode)
	assert.Equal(t, ResourceConfig(4), d.ResourceConfig)
}

func TestOpportunisticPolicy_AgeFilterApplied(t *testing.T) {
	// GIVEN P1: row 0 needs 3 per side age<=3, row 1 needs 2 per side age<=5
	p := newTestPolicy(t, PolicyOpportunistic)
	part := Partition{
		Left:  []Candidate{candidate(35, 1, 50), candidate(36, 4, 60), candidate(37, 1, 70)},
		Right: []Candidate{candidate(25, 1, 50), candidate(24, 5, 60), candidate(23, 9, 70)},
	}

	d, err := p.Decide(0.05, part)

	require.NoError(t, err)
	assert.Equal(t, ModeOpportunistic, d.Mode)
	assert.Equal(t, 1, d.Row)
	assert.Equal(t, 4, d.Threshold)
	// the age-9 right neighbor is filtered out
	assert.Len(t, d.Right, 2)
	assert.Len(t, d.Left, 3)
}

func TestOpportunisticPolicy_ShortTableNeverOpportunistic(t *testing.T) {
	// GIVEN a P4 table whose only opportunistic row is row 0 (3 rows)
	p := newTestPolicy(t, PolicyOpportunistic)
	many := make([]Candidate, 0, 10)
	for i := 0; i < 10; i++ {
		many = append(many, candidate(DeviceID(40+i), 0, float64(100+i)))
	}

	// WHEN row 0 is satisfied
	d, err := p.Decide(0.9, Partition{Left: many, Right: many})
	require.NoError(t, err)
	assert.Equal(t, ModeOpportunistic, d.Mode)
	assert.Equal(t, 0, d.Row)

	// AND when it is not, the remaining two rows are fallback-only
	d, err = p.Decide(0.9, Partition{Left: many[:1], Right: many[:1]})
	require.NoError(t, err)
	assert.Equal(t, ModeFallback, d.Mode)
	assert.Equal(t, ResourceConfig(2), d.ResourceConfig)
}

func TestOpportunisticPolicy_TwoRowTable_AlwaysFallback(t *testing.T) {
	settings := testSettings()
	settings[0].Rows = settings[0].Rows[2:]
	var occ []*OccupancyTable
	for cfg := ResourceConfig(1); cfg <= 4; cfg++ {
		occ = append(occ, uniformOccupancy(cfg, 1, 1, 0))
	}
	tables, err := NewTables(occ, settings)
	require.NoError(t, err)
	p, err := NewPolicy("", tables, DefaultSelectionConfig())
	require.NoError(t, err)

	many := []Candidate{candidate(40, 0, 100), candidate(41, 0, 110)}
	d, err := p.Decide(0.1, Partition{Left: many, Right: many})
	require.NoError(t, err)
	assert.Equal(t, ModeFallback, d.Mode)
}

func TestSortByDistanceDesc_StableOnTies(t *testing.T) {
	c := []Candidate{candidate(1, 0, 50), candidate(2, 0, 70), candidate(3, 0, 50), candidate(4, 0, 70)}
	SortByDistanceDesc(c)
	got := []DeviceID{c[0].Sender, c[1].Sender, c[2].Sender, c[3].Sender}
	assert.Equal(t, []DeviceID{2, 4, 1, 3}, got)
}

func TestPersistentPolicy_AlwaysFallback(t *testing.T) {
	p := newTestPolicy(t, PolicyPersistent)
	many := []Candidate{candidate(40, 0, 100), candidate(41, 0, 110), candidate(42, 0, 120), candidate(43, 0, 130)}

	for _, occ := range []float64{0.1, 0.2, 0.5} {
		d, err := p.Decide(occ, Partition{Left: many, Right: many})
		require.NoError(t, err)
		assert.Equal(t, ModeFallback, d.Mode, "occupancy %f", occ)
	}
}

func TestNewPolicy_Unknown(t *testing.T) {
	_, err := NewPolicy("greedy", testTables(t, 0.2), DefaultSelectionConfig())
	assert.Error(t, err)
}
