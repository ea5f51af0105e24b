package loop

import "fmt"

// Stages a call can fail in.
const (
	StageDialogue = "dialogue"
	StageAnalysis = "analysis"
	StageImprove  = "improve"
	StageStore    = "store"
	StageTTS      = "tts"
	StageReport   = "report"
)

// StageError tags a failure with the stage of the call it happened in.
type StageError struct {
	Stage   string
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
