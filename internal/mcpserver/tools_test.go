package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/callcoach/internal/analysis"
	"github.com/apresai/callcoach/internal/dialogue"
	"github.com/apresai/callcoach/internal/improve"
	"github.com/apresai/callcoach/internal/lexicon"
	"github.com/apresai/callcoach/internal/llm"
	"github.com/apresai/callcoach/internal/loop"
	"github.com/apresai/callcoach/internal/persona"
	"github.com/apresai/callcoach/internal/store"
)

func newHandlers(t *testing.T) *Handlers {
	t.Helper()
	lex := lexicon.Default()
	roster := persona.DefaultRoster()
	engine := analysis.NewEngine(analysis.NewRuleAnalyzer(lex), nil, nil)

	st, err := store.Open("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	runner, err := loop.NewRunner(loop.Deps{
		Roster:    roster,
		Dialogue:  dialogue.NewManager(lex, dialogue.DefaultRoutes(), nil),
		Responder: persona.NewTemplateResponder(roster.Templates),
		Analysis:  engine,
		Improve:   improve.NewEngine(improve.DefaultTemplates(), nil, nil),
		Store:     st,
	}, loop.Options{Iterations: 1, MaxTurns: 4})
	require.NoError(t, err)

	return NewHandlers(runner, roster, engine, st, nil)
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func decode(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotNil(t, res)
	require.False(t, res.IsError, "tool returned an error result")
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func TestToolDefs(t *testing.T) {
	var names []string
	for _, tool := range ToolDefs() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"simulate_call", "analyze_transcript", "get_script", "performance_summary"}, names)
	assert.NotNil(t, New(newHandlers(t), "test", nil))
}

func TestSimulateCall(t *testing.T) {
	h := newHandlers(t)
	res, err := h.HandleSimulateCall(context.Background(), callRequest(map[string]any{"persona_id": "F003"}))
	require.NoError(t, err)

	out := decode(t, res)
	assert.Contains(t, out["call_id"], "CALL_")
	assert.EqualValues(t, 1, out["script_version"])
	assert.NotEmpty(t, out["transcript"])
	assert.Contains(t, out, "analysis")
	assert.Equal(t, 1, h.runner.Script().Version)
}

func TestSimulateCallUnknownPersona(t *testing.T) {
	h := newHandlers(t)
	res, err := h.HandleSimulateCall(context.Background(), callRequest(map[string]any{"persona_id": "F999"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAnalyzeTranscript(t *testing.T) {
	h := newHandlers(t)
	res, err := h.HandleAnalyzeTranscript(context.Background(), callRequest(map[string]any{
		"utterances": []any{"Kitna paisa lagega?", "Achha, main interested hun"},
	}))
	require.NoError(t, err)

	out := decode(t, res)
	a, ok := out["analysis"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, a["objections"], analysis.CostConcern)
	assert.Equal(t, string(analysis.SourceRule), a["source"])
}

func TestAnalyzeTranscriptRejectsBadInput(t *testing.T) {
	h := newHandlers(t)
	for _, args := range []map[string]any{
		{},
		{"utterances": "just a string"},
		{"utterances": []any{1, 2}},
		{"utterances": []any{"  "}},
	} {
		res, err := h.HandleAnalyzeTranscript(context.Background(), callRequest(args))
		require.NoError(t, err)
		assert.True(t, res.IsError, "%v", args)
	}
}

func TestGetScript(t *testing.T) {
	h := newHandlers(t)
	res, err := h.HandleGetScript(context.Background(), callRequest(map[string]any{"include_history": true}))
	require.NoError(t, err)

	out := decode(t, res)
	assert.NotEmpty(t, out["opening_line"])
	assert.Len(t, out["history"], 1)
}

func TestPerformanceSummary(t *testing.T) {
	h := newHandlers(t)
	require.NoError(t, h.store.RecordEvent(context.Background(), llm.Event{Provider: "mock", Purpose: "analysis"}))

	res, err := h.HandlePerformanceSummary(context.Background(), callRequest(nil))
	require.NoError(t, err)

	out := decode(t, res)
	assert.Contains(t, out, "performance")
	assert.Len(t, out["model_calls"], 1)
}
