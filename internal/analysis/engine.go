package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/callcoach/internal/apperr"
	"github.com/apresai/callcoach/internal/dialogue"
)

var tracer = otel.Tracer("callcoach/analysis")

const defaultCacheSize = 256

// Engine runs the rule analyzer, the model analyzer when one is configured,
// and merges the two. Model failures fall back to the rule result.
type Engine struct {
	rules  *RuleAnalyzer
	model  *ModelAnalyzer
	cache  *lru.Cache[string, CallAnalysis]
	logger *slog.Logger

	// OnFallback, when set, is called each time the model result is dropped.
	OnFallback func(err error)
}

// NewEngine builds an engine. model may be nil for rule-only analysis.
func NewEngine(rules *RuleAnalyzer, model *ModelAnalyzer, logger *slog.Logger) *Engine {
	if rules == nil {
		rules = NewRuleAnalyzer(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, CallAnalysis](defaultCacheSize)
	return &Engine{rules: rules, model: model, cache: cache, logger: logger.With("component", "analysis")}
}

// UsesModel reports whether a model analyzer is configured.
func (e *Engine) UsesModel() bool { return e.model != nil }

// Analyze produces the final analysis of t. It never fails: without a usable
// model result the rule analysis is returned.
func (e *Engine) Analyze(ctx context.Context, t dialogue.Transcript) CallAnalysis {
	ctx, span := tracer.Start(ctx, "analysis.analyze")
	defer span.End()
	span.SetAttributes(attribute.Int("analysis.turns", len(t.Turns)))

	rule := e.rules.Analyze(t.CounterpartUtterances())
	if e.model == nil {
		span.SetAttributes(attribute.String("analysis.source", string(rule.Source)))
		return rule
	}

	key := transcriptKey(t)
	model, ok := e.cache.Get(key)
	if !ok {
		var err error
		model, err = e.model.Analyze(ctx, t)
		if err != nil {
			e.logger.WarnContext(ctx, "model analysis failed, using rules",
				"error", err, "recoverable", apperr.IsRecoverable(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "model analysis failed")
			span.SetAttributes(attribute.String("analysis.source", string(SourceRule)))
			if e.OnFallback != nil {
				e.OnFallback(err)
			}
			return rule
		}
		e.cache.Add(key, model)
	}

	merged := Merge(rule, model)
	span.SetAttributes(
		attribute.String("analysis.source", string(merged.Source)),
		attribute.Float64("analysis.effectiveness", merged.Effectiveness),
	)
	e.logger.InfoContext(ctx, "analysis merged",
		"sentiment", merged.Sentiment,
		"interest", merged.Interest,
		"outcome", merged.Outcome,
		"objections", merged.Objections,
		"effectiveness", merged.Effectiveness,
	)
	return merged
}

func transcriptKey(t dialogue.Transcript) string {
	sum := sha256.Sum256([]byte(strings.Join(t.Lines(), "\n")))
	return hex.EncodeToString(sum[:])
}
