package sim

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOccupancyEstimator(t *testing.T, tables *Tables) (*OccupancyEstimator, *DeviceRegistry) {
	t.Helper()
	zones, err := NewZoneMap(DefaultTopologyConfig())
	require.NoError(t, err)
	est := DefaultEstimatorConfig()
	return NewOccupancyEstimator(zones, tables, est), NewDeviceRegistry(300, est)
}

func TestOccupancyEstimator_InteriorDevice_BlendsTableSample(t *testing.T) {
	// GIVEN interior device 30 seeded at 0.1 and a table of 0.3 samples
	o, reg := newTestOccupancyEstimator(t, testTables(t, 0.3))
	st, err := reg.Get(30)
	require.NoError(t, err)

	// WHEN one sample is applied
	require.NoError(t, o.Update(st, SensingSample{ExclusionCount: 10, PowerThreshold: 7}))

	// THEN occ = 0.5*0.3 + 0.5*0.1 and the sensed values are kept
	assert.InDelta(t, 0.2, st.Occupancy, 1e-12)
	assert.Equal(t, 10, st.LastExclusionCount)
	assert.Equal(t, 7, st.LastPowerThreshold)

	// AND a second identical sample moves halfway again
	require.NoError(t, o.Update(st, SensingSample{ExclusionCount: 10, PowerThreshold: 7}))
	assert.InDelta(t, 0.25, st.Occupancy, 1e-12)
}

func TestOccupancyEstimator_EdgeDevice_ForcedToLanesOverSpacing(t *testing.T) {
	o, reg := newTestOccupancyEstimator(t, testTables(t, 0.9))
	for _, id := range []DeviceID{0, 75, 149, 299} {
		st, err := reg.Get(id)
		require.NoError(t, err)
		// Out-of-table indices are never looked up for edge devices.
		require.NoError(t, o.Update(st, SensingSample{ExclusionCount: 5000, PowerThreshold: 5000}))
		assert.InDelta(t, 0.2, st.Occupancy, 1e-12, "device %d", id)
	}
}

func TestOccupancyEstimator_OutOfTable_RangeErrorLeavesEstimate(t *testing.T) {
	// GIVEN an interior device
	o, reg := newTestOccupancyEstimator(t, testTables(t, 0.3))
	st, err := reg.Get(40)
	require.NoError(t, err)

	// WHEN the power bucket falls outside the 45-column table
	err = o.Update(st, SensingSample{ExclusionCount: 1, PowerThreshold: 45 * 3})

	// THEN a RangeError surfaces and the estimate is untouched
	var rangeErr *RangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, 45, rangeErr.PowerBucket)
	assert.Equal(t, 0.1, st.Occupancy)
}

func TestOccupancyEstimator_UsesDeviceResourceConfig(t *testing.T) {
	// GIVEN config 2 with a different sample than config 1
	occ := []*OccupancyTable{
		uniformOccupancy(1, 60, 45, 0.1),
		uniformOccupancy(2, 60, 45, 0.9),
		uniformOccupancy(3, 60, 45, 0.1),
		uniformOccupancy(4, 60, 45, 0.1),
	}
	tables, err := NewTables(occ, testSettings())
	require.NoError(t, err)
	o, reg := newTestOccupancyEstimator(t, tables)
	st, _ := reg.Get(30)
	st.ResourceConfig = 2

	// WHEN updated
	require.NoError(t, o.Update(st, SensingSample{ExclusionCount: 0, PowerThreshold: 0}))

	// THEN the config-2 table was used
	assert.InDelta(t, 0.5, st.Occupancy, 1e-12)
}

func TestOccupancyEstimator_PowerBucket_Floors(t *testing.T) {
	o, _ := newTestOccupancyEstimator(t, testTables(t, 0.1))
	assert.Equal(t, 0, o.PowerBucket(0))
	assert.Equal(t, 0, o.PowerBucket(2))
	assert.Equal(t, 1, o.PowerBucket(3))
	assert.Equal(t, 33, o.PowerBucket(100))
	assert.Equal(t, -1, o.PowerBucket(-1))
}

func TestOccupancyEstimator_StaysInUnitInterval(t *testing.T) {
	// GIVEN a table of random samples in [0,1]
	rng := rand.New(rand.NewSource(42))
	var occ []*OccupancyTable
	for cfg := ResourceConfig(1); cfg <= 4; cfg++ {
		table := uniformOccupancy(cfg, 60, 45, 0)
		for i := range table.Samples {
			for j := range table.Samples[i] {
				table.Samples[i][j] = rng.Float64()
			}
		}
		occ = append(occ, table)
	}
	tables, err := NewTables(occ, testSettings())
	require.NoError(t, err)
	o, reg := newTestOccupancyEstimator(t, tables)

	// WHEN thousands of samples are applied across devices and configs
	for i := 0; i < 5000; i++ {
		st, _ := reg.Get(DeviceID(rng.Intn(300)))
		st.ResourceConfig = ResourceConfig(rng.Intn(4) + 1)
		require.NoError(t, o.Update(st, SensingSample{ExclusionCount: rng.Intn(60), PowerThreshold: rng.Intn(135)}))

		// THEN the estimate never leaves [0,1]
		require.GreaterOrEqual(t, st.Occupancy, 0.0)
		require.LessOrEqual(t, st.Occupancy, 1.0)
	}
}
