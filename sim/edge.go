package sim

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// EdgeDistanceEstimator learns, per device, the radius beyond which neighbor
// reservations matter for collision avoidance.
type EdgeDistanceEstimator struct {
	zoneSize  float64
	beta      float64
	tolerance float64
}

// NewEdgeDistanceEstimator builds an estimator for the given zone size.
func NewEdgeDistanceEstimator(zoneSize float64, est EstimatorConfig) *EdgeDistanceEstimator {
	return &EdgeDistanceEstimator{
		zoneSize:  zoneSize,
		beta:      est.EdgeBeta,
		tolerance: est.EdgeTolerance,
	}
}

// FractionBeyond returns the share of distances at or beyond radius.
func FractionBeyond(distances []float64, radius float64) float64 {
	if len(distances) == 0 {
		return 0
	}
	n := 0
	for _, d := range distances {
		if d >= radius {
			n++
		}
	}
	return float64(n) / float64(len(distances))
}

// MaxRingIterations bounds RingSearch: ceil(maxDistance/zoneSize) + 1.
func MaxRingIterations(distances []float64, zoneSize float64) int {
	if len(distances) == 0 {
		return 0
	}
	return int(math.Ceil(floats.Max(distances)/zoneSize)) + 1
}

// RingSearch grows the ring index from 1 while more than the tolerated
// fraction of neighbors lies at or beyond ring*zoneSize, and returns the
// first ring where the fraction drops to the tolerance or below. The fraction
// is non-increasing in the ring index and reaches 0 past the farthest
// neighbor, so the search terminates.
func (e *EdgeDistanceEstimator) RingSearch(distances []float64) (ring, iterations int) {
	ring = 1
	for {
		iterations++
		if FractionBeyond(distances, float64(ring)*e.zoneSize) <= e.tolerance {
			return ring, iterations
		}
		ring++
	}
}

// Next returns the edge distance that blending the ring-search candidate
// (finalRing-1)*zoneSize into current would give, without storing it. With no
// neighbors current is returned and zero iterations are reported.
func (e *EdgeDistanceEstimator) Next(current float64, distances []float64) (next float64, iterations int) {
	if len(distances) == 0 {
		return current, 0
	}
	ring, iterations := e.RingSearch(distances)
	candidate := float64(ring-1) * e.zoneSize
	return e.beta*candidate + (1-e.beta)*current, iterations
}

// Update applies Next to the device's edge distance.
func (e *EdgeDistanceEstimator) Update(st *DeviceState, distances []float64) int {
	next, iterations := e.Next(st.EdgeDistance, distances)
	if iterations > 0 {
		logrus.Debugf("device %d: edge distance %.2f m -> %.2f m after %d rings (bound %d)",
			st.ID, st.EdgeDistance, next, iterations, MaxRingIterations(distances, e.zoneSize))
	}
	st.EdgeDistance = next
	return iterations
}
