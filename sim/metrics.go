// Tracks run-wide decision counters such as:
//   - sensing events processed
//   - decisions per mode and per band

package sim

import (
	"fmt"
	"io"
	"os"
)

// Metrics aggregates per-run counters for final reporting.
type Metrics struct {
	SensingEvents  int // sensing events processed
	Decisions      int // instructions emitted, defaults included
	Opportunistic  int
	Fallback       int
	Defaults       int // "21" emitted for devices without sensing data
	RingIterations int // total edge ring-search iterations

	BandDecisions map[Band]int // non-default decisions per occupancy band
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{BandDecisions: make(map[Band]int)}
}

func (m *Metrics) recordDecision(d Decision, iterations int) {
	m.Decisions++
	m.RingIterations += iterations
	m.BandDecisions[d.Band]++
	switch d.Mode {
	case ModeOpportunistic:
		m.Opportunistic++
	case ModeFallback:
		m.Fallback++
	}
}

func (m *Metrics) recordDefault() {
	m.Decisions++
	m.Defaults++
}

// OpportunisticRatio returns the share of non-default decisions that went
// opportunistic.
func (m *Metrics) OpportunisticRatio() float64 {
	n := m.Opportunistic + m.Fallback
	if n == 0 {
		return 0
	}
	return float64(m.Opportunistic) / float64(n)
}

// Fprint writes the aggregated counters.
func (m *Metrics) Fprint(w io.Writer) {
	fmt.Fprintln(w, "=== Selection Metrics ===")
	fmt.Fprintf(w, "Sensing Events       : %d\n", m.SensingEvents)
	fmt.Fprintf(w, "Decisions            : %d\n", m.Decisions)
	fmt.Fprintf(w, "  Opportunistic      : %d\n", m.Opportunistic)
	fmt.Fprintf(w, "  Fallback           : %d\n", m.Fallback)
	fmt.Fprintf(w, "  Default            : %d\n", m.Defaults)
	if m.Opportunistic+m.Fallback > 0 {
		fmt.Fprintf(w, "Opportunistic Ratio  : %.3f\n", m.OpportunisticRatio())
		fmt.Fprintf(w, "Avg Ring Iterations  : %.2f\n", float64(m.RingIterations)/float64(m.Opportunistic+m.Fallback))
		for _, b := range AllBands {
			fmt.Fprintf(w, "Band %s              : %d\n", b, m.BandDecisions[b])
		}
	}
}

// Print displays the counters on stdout at the end of a run.
func (m *Metrics) Print() {
	m.Fprint(os.Stdout)
}
