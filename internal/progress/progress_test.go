package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventPercent(t *testing.T) {
	tests := []struct {
		e    Event
		want float64
	}{
		{Event{Stage: StageCall, Iteration: 1, Iterations: 4}, 0},
		{Event{Stage: StageAnalysis, Iteration: 1, Iterations: 4}, 0.125},
		{Event{Stage: StageImprove, Iteration: 2, Iterations: 4}, 0.5},
		{Event{Stage: StageSkipped, Iteration: 4, Iterations: 4}, 1},
		{Event{Stage: StageComplete}, 1},
		{Event{Stage: StageCall}, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, tt.e.Percent(), 1e-9, "%+v", tt.e)
	}
}

func TestPlainRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, false, 80)

	r.Handle(NewEvent(StageCall, "Calling Ramesh Kumar", 1, 2, time.Now()))
	r.Handle(Event{Stage: StageSkipped, Message: "call failed", Iteration: 1, Iterations: 2, Error: errors.New("boom")})
	r.Handle(Event{Stage: StageComplete, Message: "Learning run finished", SuccessRate: 0.5, ReportFile: "out/report.json"})
	r.Finish()

	out := buf.String()
	assert.Contains(t, out, "[call 1/2] Calling Ramesh Kumar")
	assert.Contains(t, out, "call failed: boom")
	assert.Contains(t, out, "success rate 50%")
	assert.Contains(t, out, "Report: out/report.json")
}

func TestTTYRendererDrawsBar(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, true, 60)

	r.Handle(Event{Stage: StageImprove, Message: "Improving script", Iteration: 1, Iterations: 2})
	assert.Contains(t, buf.String(), " 50%")
	assert.Contains(t, buf.String(), "["+strings.Repeat("=", 15)+strings.Repeat(" ", 15)+"]")

	buf.Reset()
	r.Handle(Event{Stage: StageAnalysis, Message: "Analyzing call", Iteration: 2, Iterations: 2, Effectiveness: 0.75})
	assert.Contains(t, buf.String(), "score 0.75")
}

func TestFinishReportsError(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, false, 80)
	r.Handle(Event{Stage: StageCall, Error: errors.New("no personas")})
	buf.Reset()
	r.Finish()
	assert.Contains(t, buf.String(), "Error: no personas")
}
