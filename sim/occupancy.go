package sim

import (
	"math"

	"github.com/sirupsen/logrus"
)

// SensingSample is one round of local sensing, already offset-corrected.
type SensingSample struct {
	ExclusionCount int
	PowerThreshold int
}

// OccupancyEstimator keeps the per-device exponential moving average of local
// channel occupancy.
type OccupancyEstimator struct {
	zones    *ZoneMap
	tables   *Tables
	alpha    float64
	bucketDB int
	edgeRho  float64 // structural value forced on edge devices
}

// NewOccupancyEstimator builds an estimator over the given zones and tables.
func NewOccupancyEstimator(zones *ZoneMap, tables *Tables, est EstimatorConfig) *OccupancyEstimator {
	topo := zones.Topology()
	return &OccupancyEstimator{
		zones:    zones,
		tables:   tables,
		alpha:    est.OccupancyAlpha,
		bucketDB: est.PowerBucketDB,
		edgeRho:  float64(topo.NumLanes) / topo.DeviceSpacing,
	}
}

// PowerBucket returns floor(power / bucketDB).
func (o *OccupancyEstimator) PowerBucket(power int) int {
	return int(math.Floor(float64(power) / float64(o.bucketDB)))
}

// Update records the sample on the device and refreshes its estimate.
// Interior devices blend in the table sample for their current resource
// config; edge devices have no interior density to sense and get the
// structural lanes/spacing value. A lookup outside the table is returned as a
// *RangeError and leaves the estimate untouched.
func (o *OccupancyEstimator) Update(st *DeviceState, s SensingSample) error {
	st.LastExclusionCount = s.ExclusionCount
	st.LastPowerThreshold = s.PowerThreshold

	if !o.zones.IsInterior(st.ID) {
		st.Occupancy = o.edgeRho
		logrus.Debugf("device %d: edge device, occupancy forced to %.3f", st.ID, st.Occupancy)
		return nil
	}

	table, err := o.tables.OccupancyFor(st.ResourceConfig)
	if err != nil {
		return err
	}
	sample, err := table.Lookup(s.ExclusionCount, o.PowerBucket(s.PowerThreshold))
	if err != nil {
		return err
	}
	st.Occupancy = o.alpha*sample + (1-o.alpha)*st.Occupancy
	logrus.Debugf("device %d: occupancy %.4f (sample %.4f, config %d)", st.ID, st.Occupancy, sample, st.ResourceConfig)
	return nil
}
