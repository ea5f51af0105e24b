package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/callcoach/internal/analysis"
	"github.com/apresai/callcoach/internal/dialogue"
	"github.com/apresai/callcoach/internal/llm"
	"github.com/apresai/callcoach/internal/script"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleCall(id string, iteration int) CallRecord {
	started := time.Date(2026, 3, 1, 10, 0, iteration, 0, time.UTC)
	return CallRecord{
		CallID:        id,
		RunID:         "run-1",
		Iteration:     iteration,
		PersonaID:     "F002",
		PersonaName:   "Suresh",
		ScriptVersion: iteration + 1,
		Transcript: dialogue.Transcript{
			Turns: []dialogue.Turn{
				{Index: 0, Agent: "Namaste ji", Counterpart: "Haan ji, batayiye"},
				{Index: 1, Agent: "Subsidy milegi", Counterpart: "Achha, lagwana hai"},
			},
			EndReason: dialogue.EndAgreed,
		},
		Analysis: analysis.CallAnalysis{
			Sentiment:     analysis.SentimentPositive,
			Interest:      analysis.InterestHigh,
			IntroClarity:  true,
			Objections:    []string{},
			Outcome:       analysis.OutcomeSuccess,
			Effectiveness: 1,
			Emotions:      []string{analysis.EmotionInterested},
			Source:        analysis.SourceRule,
		},
		StartedAt: started,
		EndedAt:   started.Add(time.Second),
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestCallsRoundTrip(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	require.NoError(t, s.StartRun(ctx, "run-1", 2))

	require.NoError(t, s.SaveCall(ctx, sampleCall("CALL_b", 1)))
	require.NoError(t, s.SaveCall(ctx, sampleCall("CALL_a", 0)))

	calls, err := s.Calls(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "CALL_a", calls[0].CallID)
	assert.Equal(t, dialogue.EndAgreed, calls[1].Transcript.EndReason)
	assert.Equal(t, analysis.OutcomeSuccess, calls[1].Analysis.Outcome)
	assert.Equal(t, []string{}, calls[0].AudioFiles)
	assert.True(t, calls[0].StartedAt.Equal(sampleCall("x", 0).StartedAt))

	one, err := s.Call(ctx, "CALL_b")
	require.NoError(t, err)
	assert.Equal(t, 2, one.ScriptVersion)

	_, err = s.Call(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDuplicateCallRejected(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	require.NoError(t, s.SaveCall(ctx, sampleCall("CALL_a", 0)))
	assert.Error(t, s.SaveCall(ctx, sampleCall("CALL_a", 0)))
}

func TestRunsAndLatest(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	_, err := s.LatestRunID(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	s.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, s.StartRun(ctx, "old", 3))
	s.now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, s.StartRun(ctx, "run-1", 5))
	require.NoError(t, s.SaveCall(ctx, sampleCall("CALL_a", 0)))

	latest, err := s.LatestRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", latest)

	runs, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, 1, runs[0].Calls)
	assert.Equal(t, 0, runs[1].Calls)
}

func TestRevisionsRoundTrip(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	log := script.NewVersionLog(script.Initial())
	first := log.Current()
	next := first.Next(first.Content(), "Added trust building statement")
	require.NoError(t, log.Append(next, "rules"))

	for _, rev := range log.Revisions() {
		require.NoError(t, s.SaveRevision(ctx, "run-1", rev))
	}

	revs, err := s.Revisions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, 1, revs[0].Version)
	assert.Equal(t, []string{}, revs[0].Notes)
	assert.Equal(t, "rules", revs[1].Strategy)
	assert.Equal(t, []string{"Added trust building statement"}, revs[1].Notes)
	assert.Equal(t, next.Intro, revs[1].Script.Intro)
}

func TestObserverRecordsEvents(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	failing := &llm.Mock{Err: errors.New("boom")}
	c := llm.Observe(llm.NewMock(`{"ok":true}`), s.Observer(nil))
	bad := llm.Observe(failing, s.Observer(nil))

	_, err := c.Complete(ctx, llm.Request{Purpose: "analysis"})
	require.NoError(t, err)
	_, err = c.Complete(ctx, llm.Request{Purpose: "analysis"})
	require.NoError(t, err)
	_, err = bad.Complete(ctx, llm.Request{Purpose: "improvement"})
	require.Error(t, err)

	counts, err := s.EventCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []EventCount{
		{Purpose: "analysis", Status: "ok", Count: 2},
		{Purpose: "improvement", Status: "error", Count: 1},
	}, counts)
}
