package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/callcoach/internal/analysis"
	"github.com/apresai/callcoach/internal/llm"
)

func TestPerformanceEmpty(t *testing.T) {
	assert.Equal(t, Performance{}, New().Performance())
}

func TestPerformanceAverages(t *testing.T) {
	r := New()
	r.ObserveCall(analysis.CallAnalysis{Outcome: analysis.OutcomeSuccess, Effectiveness: 0.9}, 3)
	r.ObserveCall(analysis.CallAnalysis{Outcome: analysis.OutcomeFailure, Effectiveness: 0.3}, 5)
	r.ObserveSkipped()
	r.ObserveImprovement(2)

	p := r.Performance()
	assert.Equal(t, 2, p.Calls)
	assert.Equal(t, 1, p.Successes)
	assert.Equal(t, 1, p.Skipped)
	assert.Equal(t, 1, p.Improvements)
	assert.InDelta(t, 0.6, p.AverageEffectiveness, 1e-9)
	assert.InDelta(t, 0.5, p.SuccessRate, 1e-9)
	assert.InDelta(t, 4.0, p.AverageTurns, 1e-9)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.calls.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.skipped))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.scriptVersion))
}

func TestObserverCountsModelCalls(t *testing.T) {
	r := New()
	obs := r.Observer()
	obs(context.Background(), llm.Event{Provider: "claude", Purpose: "analysis", Duration: time.Second})
	obs(context.Background(), llm.Event{Provider: "claude", Purpose: "analysis", Err: errors.New("x")})
	r.ObserveFallback("analysis")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.llmCalls.WithLabelValues("claude", "analysis", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.llmCalls.WithLabelValues("claude", "analysis", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fallbacks.WithLabelValues("analysis")))
}

func TestHandlerExposesSeries(t *testing.T) {
	r := New()
	r.ObserveSkipped()

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "callcoach_calls_skipped_total 1")
}

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
