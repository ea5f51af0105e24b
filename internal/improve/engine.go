package improve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/callcoach/internal/analysis"
	"github.com/apresai/callcoach/internal/apperr"
	"github.com/apresai/callcoach/internal/llm"
	"github.com/apresai/callcoach/internal/script"
)

var tracer = otel.Tracer("callcoach/improve")

// Strategy names how a revision was produced.
type Strategy string

const (
	StrategyRules Strategy = "rules"
	StrategyModel Strategy = "model"
)

const (
	modelTemperature = 0.7
	modelMaxTokens   = 800
	transcriptTail   = 6
	modelSource      = "improvement"
	defaultModelNote = "Model-generated improvement"
)

// Engine produces the next script version. With a model client it asks the
// model first and falls back to the full rule table on any failure.
type Engine struct {
	templates Templates
	client    llm.Completer
	logger    *slog.Logger

	// OnFallback, when set, is called each time the model revision is dropped.
	OnFallback func(err error)
}

// NewEngine builds an engine. client may be nil for rule-only improvement.
func NewEngine(t Templates, client llm.Completer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{templates: t, client: client, logger: logger.With("component", "improve")}
}

// Improve returns the successor of s. lines is the call transcript as
// "Agent: ..."/"Farmer: ..." lines; only the tail is sent to the model.
func (e *Engine) Improve(ctx context.Context, s script.Script, a analysis.CallAnalysis, lines []string) (script.Script, Strategy) {
	ctx, span := tracer.Start(ctx, "improve.improve")
	defer span.End()
	span.SetAttributes(
		attribute.Int("script.version", s.Version),
		attribute.Float64("analysis.effectiveness", a.Effectiveness),
	)

	if e.client != nil {
		next, err := e.modelRevision(ctx, s, a, lines)
		if err == nil {
			span.SetAttributes(attribute.String("improve.strategy", string(StrategyModel)))
			e.logger.InfoContext(ctx, "script improved",
				"strategy", StrategyModel, "version", next.Version,
				"notes", next.ImprovementLog[len(s.ImprovementLog):])
			return next, StrategyModel
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "model improvement failed")
		e.logger.WarnContext(ctx, "model improvement failed, using rules",
			"error", err, "recoverable", apperr.IsRecoverable(err))
		if e.OnFallback != nil {
			e.OnFallback(err)
		}
	}

	next, fired := ApplyRules(s, a, e.templates)
	span.SetAttributes(
		attribute.String("improve.strategy", string(StrategyRules)),
		attribute.Int("improve.rules_fired", len(fired)),
	)
	e.logger.InfoContext(ctx, "script improved",
		"strategy", StrategyRules, "version", next.Version, "notes", fired)
	return next, StrategyRules
}

type modelRevision struct {
	Intro             *string  `json:"intro"`
	Benefits          []string `json:"benefits"`
	CallToAction      *string  `json:"call_to_action"`
	ToneInstructions  string   `json:"tone_instructions"`
	ConversationStyle string   `json:"conversation_style"`
	ImprovementsMade  []string `json:"improvements_made"`
}

var revisionSchema = &llm.Schema{
	Name: "script_revision",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"intro":              map[string]any{"type": "string"},
			"benefits":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"call_to_action":     map[string]any{"type": "string"},
			"tone_instructions":  map[string]any{"type": "string"},
			"conversation_style": map[string]any{"type": "string"},
			"improvements_made":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{
			"intro", "benefits", "call_to_action", "tone_instructions",
			"conversation_style", "improvements_made",
		},
		"additionalProperties": false,
	},
}

func (e *Engine) modelRevision(ctx context.Context, s script.Script, a analysis.CallAnalysis, lines []string) (script.Script, error) {
	text, err := e.client.Complete(ctx, llm.Request{
		Messages:    llm.UserPrompt(improvementPrompt(s, a, lines)),
		Temperature: modelTemperature,
		MaxTokens:   modelMaxTokens,
		Schema:      revisionSchema,
		Purpose:     modelSource,
	})
	if err != nil {
		return script.Script{}, err
	}

	var rev modelRevision
	if err := llm.DecodeRecord(modelSource, text, &rev); err != nil {
		return script.Script{}, err
	}
	switch {
	case rev.Intro == nil || strings.TrimSpace(*rev.Intro) == "":
		return script.Script{}, apperr.Malformed(modelSource, "missing intro", text)
	case rev.Benefits == nil:
		return script.Script{}, apperr.Malformed(modelSource, "missing benefits", text)
	case rev.CallToAction == nil || strings.TrimSpace(*rev.CallToAction) == "":
		return script.Script{}, apperr.Malformed(modelSource, "missing call_to_action", text)
	}

	c := s.Content()
	c.Intro = *rev.Intro
	c.Benefits = rev.Benefits
	c.CallToAction = *rev.CallToAction
	if rev.ToneInstructions != "" {
		c.ToneInstructions = rev.ToneInstructions
	}
	if rev.ConversationStyle != "" {
		c.ConversationStyle = rev.ConversationStyle
	}

	var notes []string
	for _, n := range rev.ImprovementsMade {
		if n = strings.TrimSpace(n); n != "" {
			notes = append(notes, n)
		}
	}
	if len(notes) == 0 {
		notes = []string{defaultModelNote}
	}

	next := s.Next(c, notes...)
	if err := next.Validate(); err != nil {
		return script.Script{}, apperr.Malformed(modelSource, err.Error(), text)
	}
	return next, nil
}

func improvementPrompt(s script.Script, a analysis.CallAnalysis, lines []string) string {
	if len(lines) > transcriptTail {
		lines = lines[len(lines)-transcriptTail:]
	}
	return fmt.Sprintf(`You are an expert in conversation optimization for agricultural outreach in India.

CURRENT AGENT SCRIPT:
Intro: %s
Benefits: %s
Call-to-Action: %s
Version: %d
Tone Instructions: %s

CALL ANALYSIS:
- Sentiment: %s
- Interest Level: %s
- Intro Clarity: %t
- Objections: %s
- Outcome: %s
- Effectiveness: %.2f
- Emotional Indicators: %s

CONVERSATION SAMPLE:
%s

Generate an improved agent script that addresses the issues found. Respond with one JSON object:
{
  "intro": "improved introduction in Hindi",
  "benefits": ["improved", "benefits", "in", "Hindi"],
  "call_to_action": "improved CTA in Hindi",
  "tone_instructions": "how the agent should speak",
  "conversation_style": "conversation approach",
  "improvements_made": ["specific", "improvements", "applied"]
}

GUIDELINES:
- Keep Hindi authentic and simple, use "aap" for respect
- Include government credibility if there are trust issues
- Break down costs clearly if cost concerns were raised
- Simplify technical terms if confusion was detected
- Add empathy if sentiment was negative`,
		s.Intro,
		strings.Join(s.Benefits, "; "),
		s.CallToAction,
		s.Version,
		s.ToneInstructions,
		a.Sentiment,
		a.Interest,
		a.IntroClarity,
		strings.Join(a.Objections, ", "),
		a.Outcome,
		a.Effectiveness,
		strings.Join(a.Emotions, ", "),
		strings.Join(lines, "\n"),
	)
}
