package improve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/callcoach/internal/analysis"
	"github.com/apresai/callcoach/internal/apperr"
	"github.com/apresai/callcoach/internal/llm"
	"github.com/apresai/callcoach/internal/script"
)

func healthy() analysis.CallAnalysis {
	return analysis.CallAnalysis{
		Sentiment:     analysis.SentimentPositive,
		Interest:      analysis.InterestMedium,
		IntroClarity:  true,
		Objections:    []string{},
		Outcome:       analysis.OutcomeSuccess,
		Effectiveness: 0.8,
	}
}

func TestRulesNoOp(t *testing.T) {
	s := script.Initial()
	next, fired := ApplyRules(s, healthy(), DefaultTemplates())

	assert.Empty(t, fired)
	assert.Equal(t, s.Version+1, next.Version)
	assert.Equal(t, s.Intro, next.Intro)
	assert.Equal(t, s.Benefits, next.Benefits)
	assert.Equal(t, s.CallToAction, next.CallToAction)
	assert.Equal(t, len(s.ImprovementLog), len(next.ImprovementLog))
}

func TestRulesIndividually(t *testing.T) {
	tmpl := DefaultTemplates()
	s := script.Initial()

	tests := []struct {
		name   string
		mutate func(a *analysis.CallAnalysis)
		check  func(t *testing.T, next script.Script)
	}{
		{
			name:   "trust",
			mutate: func(a *analysis.CallAnalysis) { a.Objections = []string{analysis.TrustIssues} },
			check: func(t *testing.T, next script.Script) {
				assert.Equal(t, tmpl.TrustPrefix+" "+s.Intro, next.Intro)
			},
		},
		{
			name:   "cost",
			mutate: func(a *analysis.CallAnalysis) { a.Objections = []string{analysis.WantsFree} },
			check: func(t *testing.T, next script.Script) {
				want := append(append([]string{}, tmpl.CostExplanations...), s.Benefits[1:]...)
				assert.Equal(t, want, next.Benefits)
			},
		},
		{
			name:   "simplify",
			mutate: func(a *analysis.CallAnalysis) { a.IntroClarity = false },
			check: func(t *testing.T, next script.Script) {
				assert.Equal(t, "Namaste ji! "+tmpl.SimpleExplanation[0]+" "+s.Intro, next.Intro)
			},
		},
		{
			name:   "soften",
			mutate: func(a *analysis.CallAnalysis) { a.Sentiment = analysis.SentimentNegative },
			check: func(t *testing.T, next script.Script) {
				assert.Contains(t, next.Intro, "aapse baat karna chahta hun")
				assert.NotContains(t, next.Intro, "call kar raha hun")
				assert.Equal(t, tmpl.GentleTone, next.ToneInstructions)
			},
		},
		{
			name:   "process",
			mutate: func(a *analysis.CallAnalysis) { a.Objections = []string{analysis.ProcessComplexity} },
			check: func(t *testing.T, next script.Script) {
				assert.Equal(t, tmpl.ProcessCTA, next.CallToAction)
			},
		},
		{
			name:   "technical",
			mutate: func(a *analysis.CallAnalysis) { a.Objections = []string{analysis.TechnicalConfusion} },
			check: func(t *testing.T, next script.Script) {
				assert.Equal(t, s.Intro+" "+tmpl.TechClarification, next.Intro)
			},
		},
		{
			name:   "restructure",
			mutate: func(a *analysis.CallAnalysis) { a.Effectiveness = 0.39 },
			check: func(t *testing.T, next script.Script) {
				assert.Equal(t, tmpl.LowWaterIntro, next.Intro)
				assert.Equal(t, tmpl.LowWaterCTA, next.CallToAction)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := healthy()
			tt.mutate(&a)
			next, fired := ApplyRules(s, a, tmpl)
			assert.Len(t, fired, 1)
			assert.Len(t, next.ImprovementLog, len(s.ImprovementLog)+1)
			tt.check(t, next)
		})
	}
}

func TestRulesCumulativeWithRestructureLast(t *testing.T) {
	a := analysis.CallAnalysis{
		Sentiment:     analysis.SentimentNegative,
		Interest:      analysis.InterestConfused,
		IntroClarity:  false,
		Objections:    []string{analysis.CostConcern, analysis.ProcessComplexity, analysis.TechnicalConfusion, analysis.TrustIssues},
		Outcome:       analysis.OutcomeFailure,
		Effectiveness: 0.1,
	}
	tmpl := DefaultTemplates()
	next, fired := ApplyRules(script.Initial(), a, tmpl)

	assert.Equal(t, []string{
		"Added government authorization and identity for trust building",
		"Emphasized exact cost breakdown and subsidies",
		"Simplified introduction with basic explanation",
		"Softened tone and approach for negative sentiment",
		"Simplified call-to-action with process clarity",
		"Added simple technical explanation",
		"Major restructuring due to low effectiveness",
	}, fired)
	assert.Equal(t, tmpl.LowWaterIntro, next.Intro)
	assert.Equal(t, tmpl.LowWaterCTA, next.CallToAction)
	assert.Equal(t, tmpl.GentleTone, next.ToneInstructions)
	assert.Equal(t, tmpl.CostExplanations[0], next.Benefits[0])
}

func TestRulesSimplifyKeepsTrustPrefix(t *testing.T) {
	tmpl := DefaultTemplates()
	s := script.Initial()
	a := healthy()
	a.Objections = []string{analysis.TrustIssues}
	a.IntroClarity = false
	a.Effectiveness = 0.6

	next, fired := ApplyRules(s, a, tmpl)

	assert.Equal(t, []string{
		"Added government authorization and identity for trust building",
		"Simplified introduction with basic explanation",
	}, fired)
	assert.Equal(t, tmpl.SimpleGreeting+" "+tmpl.SimpleExplanation[0]+" "+tmpl.TrustPrefix+" "+s.Intro, next.Intro)
	assert.Contains(t, next.Intro, tmpl.TrustPrefix)
	assert.Contains(t, next.Intro, s.Intro)
}

func TestRulesSkipWithoutTemplates(t *testing.T) {
	tmpl := DefaultTemplates()
	tmpl.CostExplanations = nil
	a := healthy()
	a.Objections = []string{analysis.CostConcern}

	s := script.Initial()
	next, fired := ApplyRules(s, a, tmpl)
	assert.Empty(t, fired)
	assert.Equal(t, s.Benefits, next.Benefits)
}

func TestLogIsAppendOnly(t *testing.T) {
	e := NewEngine(DefaultTemplates(), nil, nil)
	s := script.Initial()
	analyses := []analysis.CallAnalysis{healthy(), {Sentiment: analysis.SentimentNegative, Effectiveness: 0.2}, healthy(), {Objections: []string{analysis.TrustIssues}, IntroClarity: true, Effectiveness: 0.6}}

	for _, a := range analyses {
		next, strategy := e.Improve(context.Background(), s, a, nil)
		assert.Equal(t, StrategyRules, strategy)
		assert.Equal(t, s.Version+1, next.Version)
		require.GreaterOrEqual(t, len(next.ImprovementLog), len(s.ImprovementLog))
		assert.Equal(t, s.ImprovementLog, next.ImprovementLog[:len(s.ImprovementLog)])
		s = next
	}
}

const revision = `{"intro":"Namaste ji, main Raj hun, PM-KUSUM advisor.","benefits":["90% subsidy","Bijli ka bill zero"],` +
	`"call_to_action":"Kya main form bhar dun?","tone_instructions":"Warm","conversation_style":"Patient",` +
	`"improvements_made":["Built trust early","Clarified subsidy"]}`

func TestModelImprovement(t *testing.T) {
	mock := llm.NewMock(revision)
	e := NewEngine(DefaultTemplates(), mock, nil)
	s := script.Initial()

	lines := []string{"Agent: 1", "Farmer: 1", "Agent: 2", "Farmer: 2", "Agent: 3", "Farmer: 3", "Agent: 4", "Farmer: 4"}
	next, strategy := e.Improve(context.Background(), s, healthy(), lines)

	assert.Equal(t, StrategyModel, strategy)
	assert.Equal(t, s.Version+1, next.Version)
	assert.Equal(t, "Kya main form bhar dun?", next.CallToAction)
	assert.Equal(t, "Warm", next.ToneInstructions)
	assert.Equal(t, []string{"Built trust early", "Clarified subsidy"}, next.ImprovementLog)

	req := mock.Requests[0]
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 800, req.MaxTokens)
	assert.NotContains(t, req.Messages[0].Content, "Agent: 1\n")
	assert.Contains(t, req.Messages[0].Content, "Agent: 2\nFarmer: 2")
}

func TestModelImprovementDefaultNote(t *testing.T) {
	reply := `{"intro":"Namaste","benefits":["a"],"call_to_action":"Haan?","tone_instructions":"","conversation_style":"","improvements_made":[]}`
	next, strategy := NewEngine(DefaultTemplates(), llm.NewMock(reply), nil).Improve(context.Background(), script.Initial(), healthy(), nil)

	assert.Equal(t, StrategyModel, strategy)
	assert.Equal(t, []string{"Model-generated improvement"}, next.ImprovementLog)
	assert.Equal(t, script.DefaultTone, next.ToneInstructions)
}

func TestModelFallbackIsFullRuleSet(t *testing.T) {
	a := healthy()
	a.Objections = []string{analysis.TrustIssues}
	s := script.Initial()
	want, _ := ApplyRules(s, a, DefaultTemplates())

	failures := map[string]*llm.Mock{
		"service":       {Err: apperr.NewServiceError("claude", 529, errors.New("overloaded"))},
		"cancelled":     {Err: apperr.NewServiceError("claude", 0, context.Canceled)},
		"not json":      llm.NewMock("Sorry, I can't do that."),
		"missing keys":  llm.NewMock(`{"benefits":["x"]}`),
		"blank cta":     llm.NewMock(`{"intro":"x","benefits":[],"call_to_action":"  "}`),
		"blank benefit": llm.NewMock(`{"intro":"x","benefits":[""],"call_to_action":"y"}`),
	}
	for name, mock := range failures {
		t.Run(name, func(t *testing.T) {
			var fallbacks int
			e := NewEngine(DefaultTemplates(), mock, nil)
			e.OnFallback = func(error) { fallbacks++ }

			next, strategy := e.Improve(context.Background(), s, a, nil)
			assert.Equal(t, StrategyRules, strategy)
			assert.Equal(t, want, next)
			assert.Equal(t, 1, fallbacks)
		})
	}
}

func TestSuggestions(t *testing.T) {
	assert.Empty(t, Suggestions(healthy()))

	a := analysis.CallAnalysis{
		Sentiment:     analysis.SentimentNegative,
		Interest:      analysis.InterestConfused,
		Objections:    []string{analysis.TrustIssues, analysis.CostConcern},
		Effectiveness: 0.2,
	}
	assert.Len(t, Suggestions(a), 6)
}

func TestLoadTemplates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trust_prefix: \"Ram Ram ji!\"\ncost_explanations:\n  - \"Sirf 10%\"\n"), 0o644))

	tmpl, err := LoadTemplates(path)
	require.NoError(t, err)
	assert.Equal(t, "Ram Ram ji!", tmpl.TrustPrefix)
	assert.Equal(t, []string{"Sirf 10%"}, tmpl.CostExplanations)
	assert.Equal(t, DefaultTemplates().ProcessCTA, tmpl.ProcessCTA)
}
