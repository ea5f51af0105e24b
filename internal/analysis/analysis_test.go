package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/callcoach/internal/apperr"
	"github.com/apresai/callcoach/internal/dialogue"
	"github.com/apresai/callcoach/internal/lexicon"
	"github.com/apresai/callcoach/internal/llm"
	"github.com/apresai/callcoach/internal/persona"
	"github.com/apresai/callcoach/internal/script"
)

const validRecord = `{"sentiment":"positive","interest_level":"high","intro_clarity":true,` +
	`"objections":["process_complexity"],"call_outcome":"success",` +
	`"conversation_flow":{"farmer_engagement":"high","question_quality":"good","understanding_level":"clear"},` +
	`"emotional_indicators":["engaged"]}`

func TestScoreBounds(t *testing.T) {
	assert.Equal(t, 1.0, Score(SentimentPositive, InterestHigh, nil, OutcomeSuccess, true))
	assert.Equal(t, 0.0, Score(SentimentNegative, InterestLow, []string{"a", "b", "c", "d", "e"}, OutcomeFailure, false))

	sentiments := []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative, "bogus"}
	interests := []Interest{InterestHigh, InterestMedium, InterestLow, InterestConfused}
	outcomes := []Outcome{OutcomeSuccess, OutcomeFollowUp, OutcomeFailure}
	for _, s := range sentiments {
		for _, i := range interests {
			for _, o := range outcomes {
				for n := 0; n <= 8; n++ {
					for _, clear := range []bool{true, false} {
						got := Score(s, i, make([]string, n), o, clear)
						assert.GreaterOrEqual(t, got, 0.0)
						assert.LessOrEqual(t, got, 1.0)
					}
				}
			}
		}
	}
}

func TestScorePenaltyCapped(t *testing.T) {
	five := Score(SentimentNeutral, InterestMedium, make([]string, 5), OutcomeFollowUp, true)
	nine := Score(SentimentNeutral, InterestMedium, make([]string, 9), OutcomeFollowUp, true)
	assert.Equal(t, five, nine)
	assert.Less(t, five, Score(SentimentNeutral, InterestMedium, nil, OutcomeFollowUp, true))
}

func TestScoreRestructureThresholdIsNormalized(t *testing.T) {
	// raw 0.38
	above := Score(SentimentPositive, InterestLow, []string{TrustIssues}, OutcomeFailure, false)
	assert.InDelta(t, 0.38/0.9, above, 1e-9)
	assert.GreaterOrEqual(t, above, 0.4)

	// raw 0.35
	below := Score(SentimentNeutral, InterestMedium, nil, OutcomeFailure, false)
	assert.InDelta(t, 0.35/0.9, below, 1e-9)
	assert.Less(t, below, 0.4)
}

func TestRuleAnalyzerTrust(t *testing.T) {
	a := NewRuleAnalyzer(nil).Analyze([]string{"Kaun ho tum? Government se ho kya?"})
	assert.Contains(t, a.Objections, TrustIssues)
	assert.Contains(t, a.Emotions, EmotionSkeptical)
	assert.Equal(t, SourceRule, a.Source)
}

func TestRuleAnalyzerPositiveSentiment(t *testing.T) {
	lex := lexicon.Default()
	samples := [][]string{
		{"Haan achha, batayiye details"},
		{"Theek hai", "Zaroor, mujhe chahiye"},
		{"Haan", "Nahi pata", "Achha theek hai"},
		{"Haan bhai", "Samajh nahi aaya", "Achha, zaroor batayiye"},
		{"Nahi", "Band karo", "Haan"},
		{"Dekhunga", "Shayad"},
	}
	r := NewRuleAnalyzer(lex)
	for _, utterances := range samples {
		text := strings.ToLower(strings.Join(utterances, " "))
		pos := lex.Count(lexicon.Positive, text)
		neg := lex.Count(lexicon.Negative, text)

		a := r.Analyze(utterances)
		switch {
		case pos > neg:
			assert.Equal(t, SentimentPositive, a.Sentiment, utterances)
		case neg > pos:
			assert.Equal(t, SentimentNegative, a.Sentiment, utterances)
		default:
			assert.Equal(t, SentimentNeutral, a.Sentiment, utterances)
		}
	}
}

func TestRuleAnalyzerSuccess(t *testing.T) {
	a := NewRuleAnalyzer(nil).Analyze([]string{"Haan achha, batayiye details"})

	assert.Equal(t, SentimentPositive, a.Sentiment)
	assert.Equal(t, InterestMedium, a.Interest)
	assert.True(t, a.IntroClarity)
	assert.Empty(t, a.Objections)
	assert.Equal(t, OutcomeSuccess, a.Outcome)
	assert.Equal(t, Flow{FarmerEngagement: "medium", QuestionQuality: "average", UnderstandingLevel: "clear"}, a.Flow)
	assert.Equal(t, []string{EmotionInterested}, a.Emotions)
	assert.InDelta(t, 0.8/0.9, a.Effectiveness, 1e-9)
}

func TestRuleAnalyzerConfusion(t *testing.T) {
	a := NewRuleAnalyzer(nil).Analyze([]string{"Samajh nahi aaya", "Ye kya hai? Simple mein batao"})

	assert.Equal(t, InterestConfused, a.Interest)
	assert.False(t, a.IntroClarity)
	assert.Contains(t, a.Objections, TechnicalConfusion)
	assert.Equal(t, "confused", a.Flow.UnderstandingLevel)
	assert.Contains(t, a.Emotions, EmotionConfused)
}

func TestRuleAnalyzerReschedule(t *testing.T) {
	a := NewRuleAnalyzer(nil).Analyze([]string{"Haan achha, baad mein call karna"})
	assert.Equal(t, OutcomeFollowUp, a.Outcome)
}

func TestRejectionEndsCallAsFailure(t *testing.T) {
	replies := []string{"Kaun ho tum?", "Kitne paise lagenge?", "Nahi chahiye, band karo", "Achha"}
	n := 0
	r := persona.ResponderFunc(func(context.Context, persona.Persona, string, []persona.Exchange) (string, error) {
		reply := replies[n]
		n++
		return reply, nil
	})
	p, _ := persona.DefaultRoster().Get("F001")

	tr, err := dialogue.NewManager(nil, nil, nil).Run(context.Background(), script.Initial(), p, r, 5, dialogue.Options{})
	require.NoError(t, err)
	require.Len(t, tr.Turns, 3)

	a := NewRuleAnalyzer(nil).Analyze(tr.CounterpartUtterances())
	assert.Equal(t, OutcomeFailure, a.Outcome)
	assert.Equal(t, SentimentNegative, a.Sentiment)
	assert.Subset(t, a.Objections, []string{TrustIssues, CostConcern})
}

func TestMergeUnion(t *testing.T) {
	rule := CallAnalysis{Sentiment: SentimentNeutral, Interest: InterestLow, Objections: []string{CostConcern, TrustIssues}, Outcome: OutcomeFollowUp}
	model := CallAnalysis{Sentiment: SentimentPositive, Interest: InterestHigh, Objections: []string{TrustIssues, ProcessComplexity}, Outcome: OutcomeSuccess, IntroClarity: true}

	m := Merge(rule, model)
	assert.Subset(t, m.Objections, rule.Objections)
	assert.Subset(t, m.Objections, model.Objections)
	assert.Len(t, m.Objections, 3)
	assert.Equal(t, SentimentPositive, m.Sentiment)
	assert.Equal(t, InterestHigh, m.Interest)
	assert.Equal(t, OutcomeSuccess, m.Outcome)
	assert.Equal(t, SourceMerged, m.Source)
	assert.Equal(t, Score(m.Sentiment, m.Interest, m.Objections, m.Outcome, m.IntroClarity), m.Effectiveness)
}

func TestMergeSentimentConflict(t *testing.T) {
	tests := []struct {
		rule, model, want Sentiment
	}{
		{SentimentNegative, SentimentPositive, SentimentNeutral},
		{SentimentPositive, SentimentNegative, SentimentNeutral},
		{SentimentNeutral, SentimentNegative, SentimentNegative},
		{SentimentPositive, SentimentNeutral, SentimentNeutral},
	}
	for _, tt := range tests {
		m := Merge(CallAnalysis{Sentiment: tt.rule}, CallAnalysis{Sentiment: tt.model})
		assert.Equal(t, tt.want, m.Sentiment, "rule=%s model=%s", tt.rule, tt.model)
	}
}

func TestMergeFillsAbsentModelFields(t *testing.T) {
	rule := CallAnalysis{
		Sentiment: SentimentPositive, Interest: InterestMedium, Outcome: OutcomeSuccess,
		Flow:     Flow{FarmerEngagement: "medium", QuestionQuality: "average", UnderstandingLevel: "clear"},
		Emotions: []string{EmotionInterested},
	}
	model := CallAnalysis{Sentiment: SentimentPositive, Interest: InterestHigh, Outcome: OutcomeSuccess}

	m := Merge(rule, model)
	assert.Equal(t, rule.Flow, m.Flow)
	assert.Equal(t, rule.Emotions, m.Emotions)
	assert.Equal(t, InterestHigh, m.Interest)
}

func TestModelAnalyzer(t *testing.T) {
	mock := llm.NewMock("```json\n" + validRecord + "\n```")
	tr := dialogue.Transcript{Turns: []dialogue.Turn{{Index: 1, Agent: "Namaste", Counterpart: "Haan batao"}}}

	a, err := NewModelAnalyzer(mock).Analyze(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, SentimentPositive, a.Sentiment)
	assert.Equal(t, InterestHigh, a.Interest)
	assert.Equal(t, []string{ProcessComplexity}, a.Objections)
	assert.Equal(t, "good", a.Flow.QuestionQuality)
	assert.Equal(t, SourceModel, a.Source)

	req := mock.Requests[0]
	assert.Equal(t, 0.3, req.Temperature)
	assert.Equal(t, 500, req.MaxTokens)
	require.NotNil(t, req.Schema)
	assert.Contains(t, req.Messages[0].Content, "Farmer 1: Haan batao")
}

func TestModelAnalyzerMalformed(t *testing.T) {
	replies := map[string]string{
		"prose":             "The farmer seemed happy.",
		"missing sentiment": `{"interest_level":"high","intro_clarity":true,"call_outcome":"success"}`,
		"bad enum":          strings.Replace(validRecord, `"positive"`, `"ecstatic"`, 1),
		"unknown objection": strings.Replace(validRecord, "process_complexity", "bad_weather", 1),
		"wrong type":        strings.Replace(validRecord, `"intro_clarity":true`, `"intro_clarity":"yes"`, 1),
		"bad flow":          strings.Replace(validRecord, `"question_quality":"good"`, `"question_quality":"great"`, 1),
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			_, err := NewModelAnalyzer(llm.NewMock(reply)).Analyze(context.Background(), dialogue.Transcript{})
			var me *apperr.MalformedOutputError
			require.ErrorAs(t, err, &me)
		})
	}
}

func TestEngineRuleOnly(t *testing.T) {
	tr := dialogue.FromUtterances([]string{"Kaun ho tum?"})
	e := NewEngine(nil, nil, nil)

	a := e.Analyze(context.Background(), tr)
	assert.False(t, e.UsesModel())
	assert.Equal(t, SourceRule, a.Source)
	assert.Contains(t, a.Objections, TrustIssues)
}

func TestEngineFallsBackOnModelFailure(t *testing.T) {
	tr := dialogue.FromUtterances([]string{"Kaun ho tum?"})

	for name, mock := range map[string]*llm.Mock{
		"service":   {Err: apperr.NewServiceError("openai", 500, errors.New("down"))},
		"malformed": llm.NewMock("not json"),
	} {
		t.Run(name, func(t *testing.T) {
			var fallbacks int
			e := NewEngine(nil, NewModelAnalyzer(mock), nil)
			e.OnFallback = func(error) { fallbacks++ }

			a := e.Analyze(context.Background(), tr)
			assert.Equal(t, SourceRule, a.Source)
			assert.Equal(t, NewRuleAnalyzer(nil).Analyze(tr.CounterpartUtterances()), a)
			assert.Equal(t, 1, fallbacks)
		})
	}
}

func TestEngineMergesAndCaches(t *testing.T) {
	tr := dialogue.FromUtterances([]string{"Kaun ho tum?"})
	mock := llm.NewMock(validRecord)
	e := NewEngine(nil, NewModelAnalyzer(mock), nil)

	a := e.Analyze(context.Background(), tr)
	assert.Equal(t, SourceMerged, a.Source)
	assert.ElementsMatch(t, []string{ProcessComplexity, TrustIssues}, a.Objections)

	again := e.Analyze(context.Background(), tr)
	assert.Equal(t, a, again)
	assert.Equal(t, 1, mock.Calls())
}
