package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every mode decision and the watched device's estimates.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level       TraceLevel
	WatchDevice int // device whose estimate history is recorded
}

// SimulationTrace collects decision records during a run.
type SimulationTrace struct {
	Config    TraceConfig
	Decisions []DecisionRecord
	Estimates []EstimateRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:    config,
		Decisions: make([]DecisionRecord, 0),
		Estimates: make([]EstimateRecord, 0),
	}
}

// RecordDecision appends a decision record.
func (st *SimulationTrace) RecordDecision(record DecisionRecord) {
	st.Decisions = append(st.Decisions, record)
}

// RecordEstimate appends an estimate snapshot.
func (st *SimulationTrace) RecordEstimate(record EstimateRecord) {
	st.Estimates = append(st.Estimates, record)
}

// Watches reports whether device is the one whose estimates are recorded.
func (st *SimulationTrace) Watches(device int) bool {
	return st != nil && st.Config.WatchDevice == device
}
