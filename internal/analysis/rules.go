package analysis

import (
	"strings"

	"github.com/apresai/callcoach/internal/lexicon"
)

// objectionGroups maps lexicon groups to the objection tag they raise, in
// reporting order.
var objectionGroups = []struct {
	category lexicon.Category
	tag      string
}{
	{lexicon.ObjectionCost, CostConcern},
	{lexicon.ObjectionFree, WantsFree},
	{lexicon.ObjectionTrust, TrustIssues},
	{lexicon.ObjectionEligibility, EligibilityDoubt},
	{lexicon.ObjectionTime, TimeConstraints},
}

// RuleAnalyzer derives signals from keyword counts. It is deterministic and
// never fails.
type RuleAnalyzer struct {
	lex *lexicon.Lexicon
}

func NewRuleAnalyzer(lex *lexicon.Lexicon) *RuleAnalyzer {
	if lex == nil {
		lex = lexicon.Default()
	}
	return &RuleAnalyzer{lex: lex}
}

// Analyze inspects the counterpart's utterances in order.
func (r *RuleAnalyzer) Analyze(utterances []string) CallAnalysis {
	text := strings.ToLower(strings.Join(utterances, " "))

	pos := r.lex.Count(lexicon.Positive, text)
	neg := r.lex.Count(lexicon.Negative, text)
	confused := r.lex.Count(lexicon.Confused, text)
	interested := r.lex.Count(lexicon.Interested, text)

	a := CallAnalysis{Source: SourceRule}

	switch {
	case pos > neg:
		a.Sentiment = SentimentPositive
	case neg > pos:
		a.Sentiment = SentimentNegative
	default:
		a.Sentiment = SentimentNeutral
	}

	switch {
	case confused > 1:
		a.Interest = InterestConfused
	case interested >= 2:
		a.Interest = InterestHigh
	case interested == 1 || pos > 0:
		a.Interest = InterestMedium
	default:
		a.Interest = InterestLow
	}

	a.IntroClarity = !r.lex.Any(lexicon.Unclear, text)

	a.Objections = []string{}
	for _, g := range objectionGroups {
		if r.lex.Any(g.category, text) {
			a.Objections = append(a.Objections, g.tag)
		}
	}
	if confused > 0 {
		a.Objections = append(a.Objections, TechnicalConfusion)
	}

	switch {
	case r.lex.Any(lexicon.Reschedule, text):
		a.Outcome = OutcomeFollowUp
	case a.Sentiment == SentimentPositive && (a.Interest == InterestHigh || a.Interest == InterestMedium) && len(a.Objections) <= 1:
		a.Outcome = OutcomeSuccess
	case r.lex.Any(lexicon.Rejection, text):
		a.Outcome = OutcomeFailure
	default:
		a.Outcome = OutcomeFollowUp
	}

	a.Flow = Flow{
		FarmerEngagement:   level(interested),
		QuestionQuality:    "average",
		UnderstandingLevel: "partial",
	}
	if len(a.Objections) > 0 {
		a.Flow.QuestionQuality = "good"
	}
	switch {
	case confused > 1:
		a.Flow.UnderstandingLevel = "confused"
	case a.IntroClarity:
		a.Flow.UnderstandingLevel = "clear"
	}

	a.Emotions = []string{}
	if a.HasObjection(TrustIssues) {
		a.Emotions = append(a.Emotions, EmotionSkeptical)
	}
	if confused > 0 {
		a.Emotions = append(a.Emotions, EmotionConfused)
	}
	if a.Sentiment == SentimentPositive {
		a.Emotions = append(a.Emotions, EmotionInterested)
	}
	if a.HasObjection(CostConcern) {
		a.Emotions = append(a.Emotions, EmotionWorried)
	}

	return a.Scored()
}

func level(n int) string {
	switch {
	case n > 1:
		return "high"
	case n > 0:
		return "medium"
	default:
		return "low"
	}
}
