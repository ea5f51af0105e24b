package analysis

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/apresai/callcoach/internal/apperr"
	"github.com/apresai/callcoach/internal/dialogue"
	"github.com/apresai/callcoach/internal/llm"
)

const (
	modelTemperature = 0.3
	modelMaxTokens   = 500
	modelSource      = "analysis"
)

// ModelAnalyzer asks a language model for the analysis record. It does not
// retry and does not fall back; callers branch on the error.
type ModelAnalyzer struct {
	client llm.Completer
}

func NewModelAnalyzer(client llm.Completer) *ModelAnalyzer {
	return &ModelAnalyzer{client: client}
}

// modelRecord mirrors the JSON contract. Pointers tell absent fields apart.
type modelRecord struct {
	Sentiment    *string  `json:"sentiment"`
	Interest     *string  `json:"interest_level"`
	IntroClarity *bool    `json:"intro_clarity"`
	Objections   []string `json:"objections"`
	Outcome      *string  `json:"call_outcome"`
	Flow         *Flow    `json:"conversation_flow"`
	Emotions     []string `json:"emotional_indicators"`
}

var analysisSchema = &llm.Schema{
	Name: "call_analysis",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sentiment":      map[string]any{"type": "string", "enum": []string{"positive", "neutral", "negative"}},
			"interest_level": map[string]any{"type": "string", "enum": []string{"high", "medium", "low", "confused"}},
			"intro_clarity":  map[string]any{"type": "boolean"},
			"objections":     map[string]any{"type": "array", "items": map[string]any{"type": "string", "enum": ObjectionTags}},
			"call_outcome":   map[string]any{"type": "string", "enum": []string{"success", "failure", "follow_up"}},
			"conversation_flow": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"farmer_engagement":   map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
					"question_quality":    map[string]any{"type": "string", "enum": []string{"good", "average", "poor"}},
					"understanding_level": map[string]any{"type": "string", "enum": []string{"clear", "partial", "confused"}},
				},
				"required":             []string{"farmer_engagement", "question_quality", "understanding_level"},
				"additionalProperties": false,
			},
			"emotional_indicators": map[string]any{"type": "array", "items": map[string]any{"type": "string", "enum": EmotionTags}},
		},
		"required": []string{
			"sentiment", "interest_level", "intro_clarity", "objections",
			"call_outcome", "conversation_flow", "emotional_indicators",
		},
		"additionalProperties": false,
	},
}

// Analyze returns the model's analysis of t. Collaborator failures come back
// as *apperr.ServiceError, unusable replies as *apperr.MalformedOutputError.
func (m *ModelAnalyzer) Analyze(ctx context.Context, t dialogue.Transcript) (CallAnalysis, error) {
	text, err := m.client.Complete(ctx, llm.Request{
		Messages:    llm.UserPrompt(analysisPrompt(t)),
		Temperature: modelTemperature,
		MaxTokens:   modelMaxTokens,
		Schema:      analysisSchema,
		Purpose:     modelSource,
	})
	if err != nil {
		return CallAnalysis{}, err
	}

	var rec modelRecord
	if err := llm.DecodeRecord(modelSource, text, &rec); err != nil {
		return CallAnalysis{}, err
	}
	return rec.toAnalysis(text)
}

func (rec modelRecord) toAnalysis(raw string) (CallAnalysis, error) {
	bad := func(reason string) error { return apperr.Malformed(modelSource, reason, raw) }

	switch {
	case rec.Sentiment == nil:
		return CallAnalysis{}, bad("missing sentiment")
	case rec.Interest == nil:
		return CallAnalysis{}, bad("missing interest_level")
	case rec.IntroClarity == nil:
		return CallAnalysis{}, bad("missing intro_clarity")
	case rec.Outcome == nil:
		return CallAnalysis{}, bad("missing call_outcome")
	}

	a := CallAnalysis{
		Sentiment:    Sentiment(*rec.Sentiment),
		Interest:     Interest(*rec.Interest),
		IntroClarity: *rec.IntroClarity,
		Outcome:      Outcome(*rec.Outcome),
		Objections:   union(rec.Objections),
		Emotions:     rec.Emotions,
		Source:       SourceModel,
	}
	if _, ok := sentimentWeight[a.Sentiment]; !ok {
		return CallAnalysis{}, bad(fmt.Sprintf("unknown sentiment %q", a.Sentiment))
	}
	if _, ok := interestWeight[a.Interest]; !ok {
		return CallAnalysis{}, bad(fmt.Sprintf("unknown interest_level %q", a.Interest))
	}
	if _, ok := outcomeWeight[a.Outcome]; !ok {
		return CallAnalysis{}, bad(fmt.Sprintf("unknown call_outcome %q", a.Outcome))
	}
	for _, o := range a.Objections {
		if !slices.Contains(ObjectionTags, o) {
			return CallAnalysis{}, bad(fmt.Sprintf("unknown objection %q", o))
		}
	}
	for _, e := range a.Emotions {
		if !slices.Contains(EmotionTags, e) {
			return CallAnalysis{}, bad(fmt.Sprintf("unknown emotional indicator %q", e))
		}
	}
	if rec.Flow != nil {
		if !oneOf(rec.Flow.FarmerEngagement, "high", "medium", "low") ||
			!oneOf(rec.Flow.QuestionQuality, "good", "average", "poor") ||
			!oneOf(rec.Flow.UnderstandingLevel, "clear", "partial", "confused") {
			return CallAnalysis{}, bad("invalid conversation_flow")
		}
		a.Flow = *rec.Flow
	}
	return a.Scored(), nil
}

func oneOf(v string, allowed ...string) bool {
	return slices.Contains(allowed, v)
}

func analysisPrompt(t dialogue.Transcript) string {
	var conv strings.Builder
	for _, turn := range t.Turns {
		fmt.Fprintf(&conv, "Agent %d: %s\nFarmer %d: %s\n\n", turn.Index, turn.Agent, turn.Index, turn.Counterpart)
	}

	return fmt.Sprintf(`Analyze this conversation between a solar scheme agent and a farmer.

CONVERSATION:
%s
Return one JSON object with these exact keys:
{
  "sentiment": "positive|neutral|negative",
  "interest_level": "high|medium|low|confused",
  "intro_clarity": true/false,
  "objections": ["list", "of", "objections"],
  "call_outcome": "success|failure|follow_up",
  "conversation_flow": {
    "farmer_engagement": "high|medium|low",
    "question_quality": "good|average|poor",
    "understanding_level": "clear|partial|confused"
  },
  "emotional_indicators": ["list", "of", "emotions"]
}

Consider:
- The farmer's Hindi responses and tone
- Questions about cost, process and eligibility
- Engagement, interest, trust and skepticism
- Whether the farmer understood the solar scheme

Objection categories: %s
Emotional indicators: %s`,
		conv.String(),
		strings.Join(quoteAll(ObjectionTags), ", "),
		strings.Join(quoteAll(EmotionTags), ", "))
}

func quoteAll(tags []string) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = fmt.Sprintf("%q", t)
	}
	return out
}
