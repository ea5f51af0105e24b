package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/callcoach/internal/analysis"
	"github.com/apresai/callcoach/internal/dialogue"
	"github.com/apresai/callcoach/internal/improve"
	"github.com/apresai/callcoach/internal/loop"
	"github.com/apresai/callcoach/internal/persona"
	"github.com/apresai/callcoach/internal/store"
)

var tracer = otel.Tracer("callcoach/mcp")

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "simulate_call",
			Description: "Simulate one outreach call with the current script against a farmer persona. Returns the transcript, the call analysis and improvement suggestions. The script is not changed.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"persona_id": map[string]any{
						"type":        "string",
						"description": "Persona id from the roster, e.g. F001. Defaults to the first persona.",
					},
				},
			},
		},
		{
			Name:        "analyze_transcript",
			Description: "Analyze a call from the farmer's utterances: sentiment, interest, objections, outcome and agent effectiveness.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"utterances": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "The farmer's replies in order",
					},
				},
				Required: []string{"utterances"},
			},
		},
		{
			Name:        "get_script",
			Description: "Return the agent script currently in use, optionally with its version history.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"include_history": map[string]any{
						"type":        "boolean",
						"description": "Include every earlier version and its improvement notes",
						"default":     false,
					},
				},
			},
		},
		{
			Name:        "performance_summary",
			Description: "Return call counts, success rate and average effectiveness for this server's session, plus model-call counts when persistence is enabled.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{},
			},
		},
	}
}

// Handlers contains tool handler implementations.
type Handlers struct {
	runner   *loop.Runner
	roster   persona.Roster
	analysis *analysis.Engine
	store    *store.Store
	log      *slog.Logger
}

// NewHandlers creates tool handlers. st may be nil.
func NewHandlers(runner *loop.Runner, roster persona.Roster, engine *analysis.Engine, st *store.Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{runner: runner, roster: roster, analysis: engine, store: st, log: logger.With("component", "mcp")}
}

// HandleSimulateCall plays one call.
func (h *Handlers) HandleSimulateCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.simulate_call")
	defer span.End()

	id := mcp.ParseString(req, "persona_id", "")
	p := h.roster.At(0)
	if id != "" {
		var ok bool
		if p, ok = h.roster.Get(id); !ok {
			span.SetStatus(codes.Error, "unknown persona")
			return mcp.NewToolResultError(fmt.Sprintf("persona %s not found", id)), nil
		}
	}
	span.SetAttributes(attribute.String("persona.id", p.ID))

	rec, err := h.runner.Call(ctx, "", 0, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "call failed")
		return mcp.NewToolResultError(fmt.Sprintf("call failed: %v", err)), nil
	}

	h.log.InfoContext(ctx, "call simulated", "call_id", rec.CallID, "persona", p.ID, "effectiveness", rec.Analysis.Effectiveness)
	return jsonResult(map[string]any{
		"call_id":        rec.CallID,
		"persona":        p,
		"script_version": rec.ScriptVersion,
		"transcript":     rec.Transcript.Lines(),
		"end_reason":     rec.Transcript.EndReason,
		"analysis":       rec.Analysis,
		"suggestions":    nonNil(improve.Suggestions(rec.Analysis)),
	})
}

// HandleAnalyzeTranscript analyzes caller-supplied utterances.
func (h *Handlers) HandleAnalyzeTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.analyze_transcript")
	defer span.End()

	utterances, err := parseStrings(req, "utterances")
	if err != nil {
		span.SetStatus(codes.Error, "bad utterances")
		return mcp.NewToolResultError(err.Error()), nil
	}
	span.SetAttributes(attribute.Int("utterances", len(utterances)))

	a := h.analysis.Analyze(ctx, dialogue.FromUtterances(utterances))
	return jsonResult(map[string]any{
		"analysis":    a,
		"suggestions": nonNil(improve.Suggestions(a)),
	})
}

// HandleGetScript returns the current script.
func (h *Handlers) HandleGetScript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.get_script")
	defer span.End()

	s := h.runner.Script()
	span.SetAttributes(attribute.Int("script.version", s.Version))
	result := map[string]any{
		"script":       s,
		"opening_line": s.OpeningLine(),
	}
	if mcp.ParseBoolean(req, "include_history", false) {
		result["history"] = h.runner.Revisions()
	}
	return jsonResult(result)
}

// HandlePerformanceSummary reports the session counters.
func (h *Handlers) HandlePerformanceSummary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.performance_summary")
	defer span.End()

	result := map[string]any{
		"performance":    h.runner.Performance(),
		"script_version": h.runner.Script().Version,
	}
	if h.store != nil {
		counts, err := h.store.EventCounts(ctx)
		if err != nil {
			span.RecordError(err)
			h.log.WarnContext(ctx, "model call counts unavailable", "error", err)
		} else {
			result["model_calls"] = counts
		}
	}
	return jsonResult(result)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// parseStrings reads a required array-of-strings argument.
func parseStrings(req mcp.CallToolRequest, key string) ([]string, error) {
	raw, ok := req.GetArguments()[key]
	if !ok {
		return nil, fmt.Errorf("%s is required", key)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be a string", key, i)
		}
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s must contain at least one utterance", key)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
