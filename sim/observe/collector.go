// Package observe exports engine activity as Prometheus metrics.
package observe

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sidelink-sim/ore-engine/sim/trace"
)

// DecisionCollector bundles the engine's Prometheus metrics. It satisfies
// sim.DecisionObserver and is safe to use as a nil pointer.
type DecisionCollector struct {
	gatherer prometheus.Gatherer

	SensingEvents  prometheus.Counter
	Decisions      *prometheus.CounterVec
	Occupancy      prometheus.Histogram
	EdgeDistance   prometheus.Histogram
	RingIterations prometheus.Histogram
	Neighbors      prometheus.Gauge
	Clock          prometheus.Gauge
}

// NewDecisionCollector registers the engine metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewDecisionCollector(reg prometheus.Registerer) (*DecisionCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	sensing, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ore_sensing_events_total",
		Help: "Total number of sensing events processed.",
	}), "ore_sensing_events_total")
	if err != nil {
		return nil, err
	}

	decisions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ore_decisions_total",
		Help: "Total number of emitted instructions, labeled by selection mode and occupancy band.",
	}, []string{"mode", "band"}), "ore_decisions_total")
	if err != nil {
		return nil, err
	}

	occupancy, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ore_occupancy_estimate",
		Help:    "Smoothed channel occupancy of the deciding device.",
		Buckets: prometheus.LinearBuckets(0.05, 0.05, 20),
	}), "ore_occupancy_estimate")
	if err != nil {
		return nil, err
	}

	edge, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ore_edge_distance_meters",
		Help:    "Smoothed neighborhood radius of the deciding device.",
		Buckets: prometheus.LinearBuckets(10, 10, 20),
	}), "ore_edge_distance_meters")
	if err != nil {
		return nil, err
	}

	rings, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ore_ring_iterations",
		Help:    "Zone rings examined by the edge distance search per decision.",
		Buckets: prometheus.LinearBuckets(1, 5, 12),
	}), "ore_ring_iterations")
	if err != nil {
		return nil, err
	}

	neighbors, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ore_last_neighbor_reports",
		Help: "Neighbor reports held by the most recently decided device.",
	}), "ore_last_neighbor_reports")
	if err != nil {
		return nil, err
	}

	clock, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ore_last_decision_time_ms",
		Help: "Simulation time of the most recent decision.",
	}), "ore_last_decision_time_ms")
	if err != nil {
		return nil, err
	}

	return &DecisionCollector{
		gatherer:       gatherer,
		SensingEvents:  sensing,
		Decisions:      decisions,
		Occupancy:      occupancy,
		EdgeDistance:   edge,
		RingIterations: rings,
		Neighbors:      neighbors,
		Clock:          clock,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *DecisionCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *DecisionCollector) ObserveSensing(int) {
	if c == nil || c.SensingEvents == nil {
		return
	}
	c.SensingEvents.Inc()
}

// ObserveDecision counts the instruction. Estimates are only observed for
// decisions made from sensing data.
func (c *DecisionCollector) ObserveDecision(rec trace.DecisionRecord) {
	if c == nil {
		return
	}
	band := rec.Band
	if band == "" {
		band = "none"
	}
	if c.Decisions != nil {
		c.Decisions.WithLabelValues(rec.Mode, band).Inc()
	}
	if c.Clock != nil {
		c.Clock.Set(rec.Time)
	}
	if rec.Mode == trace.ModeDefault {
		return
	}
	if c.Occupancy != nil {
		c.Occupancy.Observe(rec.Occupancy)
	}
	if c.EdgeDistance != nil {
		c.EdgeDistance.Observe(rec.EdgeDistance)
	}
	if c.RingIterations != nil {
		c.RingIterations.Observe(float64(rec.RingIterations))
	}
	if c.Neighbors != nil {
		c.Neighbors.Set(float64(rec.Neighbors))
	}
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
