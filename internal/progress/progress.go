// Package progress reports the learning loop's advance through its calls to
// a terminal.
package progress

import "time"

// Stage identifies which part of a call is active.
type Stage string

const (
	StageCall     Stage = "call"
	StageAnalysis Stage = "analysis"
	StageImprove  Stage = "improve"
	StageAssembly Stage = "assembly"
	StageReport   Stage = "report"
	StageSkipped  Stage = "skipped"
	StageComplete Stage = "complete"
)

// Event carries progress information from the run loop to the renderer.
type Event struct {
	Stage      Stage
	Message    string
	Iteration  int // 1-based call number
	Iterations int
	Elapsed    time.Duration
	Error      error
	// Effectiveness of the call just analyzed, set on StageAnalysis.
	Effectiveness float64
	// ReportFile is set on StageComplete with the saved report path.
	ReportFile string
	// SuccessRate is set on StageComplete.
	SuccessRate float64
	LogFile     string
}

// Percent is the share of the run finished when this event fires. A call
// counts as done once it reaches the improvement stage.
func (e Event) Percent() float64 {
	if e.Stage == StageComplete || e.Stage == StageReport {
		return 1
	}
	if e.Iterations <= 0 {
		return 0
	}
	done := float64(e.Iteration - 1)
	switch e.Stage {
	case StageAnalysis:
		done += 0.5
	case StageImprove, StageSkipped:
		done++
	}
	return min(1, max(0, done/float64(e.Iterations)))
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// NewEvent creates an Event with common fields populated.
func NewEvent(stage Stage, msg string, iteration, iterations int, start time.Time) Event {
	return Event{
		Stage:      stage,
		Message:    msg,
		Iteration:  iteration,
		Iterations: iterations,
		Elapsed:    time.Since(start),
	}
}
