// Package analysis turns a call transcript into structured signals: keyword
// rules, an optional model pass, the merge between the two and the
// effectiveness score.
package analysis

import (
	"slices"
	"sort"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type Interest string

const (
	InterestHigh     Interest = "high"
	InterestMedium   Interest = "medium"
	InterestLow      Interest = "low"
	InterestConfused Interest = "confused"
)

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
	OutcomeFollowUp Outcome = "follow_up"
)

// Objection tags.
const (
	CostConcern        = "cost_concern"
	WantsFree          = "wants_free"
	TrustIssues        = "trust_issues"
	TechnicalConfusion = "technical_confusion"
	TimeConstraints    = "time_constraints"
	EligibilityDoubt   = "eligibility_doubt"
	ProcessComplexity  = "process_complexity"
)

// ObjectionTags lists every objection tag an analysis may carry.
var ObjectionTags = []string{
	CostConcern, WantsFree, TrustIssues, TechnicalConfusion,
	TimeConstraints, EligibilityDoubt, ProcessComplexity,
}

// Emotional indicator tags.
const (
	EmotionSkeptical  = "skeptical"
	EmotionConfused   = "confused"
	EmotionInterested = "interested"
	EmotionExcited    = "excited"
	EmotionWorried    = "worried"
	EmotionTrusting   = "trusting"
	EmotionEngaged    = "engaged"
)

var EmotionTags = []string{
	EmotionSkeptical, EmotionConfused, EmotionInterested, EmotionExcited,
	EmotionWorried, EmotionTrusting, EmotionEngaged,
}

// Source records which analyzer produced an analysis.
type Source string

const (
	SourceRule   Source = "rule"
	SourceModel  Source = "model"
	SourceMerged Source = "merged"
)

// Flow summarizes how the conversation went.
type Flow struct {
	FarmerEngagement   string `json:"farmer_engagement"`
	QuestionQuality    string `json:"question_quality"`
	UnderstandingLevel string `json:"understanding_level"`
}

func (f Flow) IsZero() bool { return f == Flow{} }

// CallAnalysis is the derived record of one call. It is built once and not
// modified afterwards.
type CallAnalysis struct {
	Sentiment     Sentiment `json:"sentiment"`
	Interest      Interest  `json:"interest_level"`
	IntroClarity  bool      `json:"intro_clarity"`
	Objections    []string  `json:"objections"`
	Outcome       Outcome   `json:"call_outcome"`
	Effectiveness float64   `json:"agent_effectiveness"`
	Flow          Flow      `json:"conversation_flow"`
	Emotions      []string  `json:"emotional_indicators"`
	Source        Source    `json:"source"`
}

// HasObjection reports whether tag is among the objections.
func (a CallAnalysis) HasObjection(tag string) bool {
	return slices.Contains(a.Objections, tag)
}

// Scored returns a copy with Effectiveness recomputed from the signals.
func (a CallAnalysis) Scored() CallAnalysis {
	a.Objections = slices.Clone(a.Objections)
	a.Emotions = slices.Clone(a.Emotions)
	a.Effectiveness = Score(a.Sentiment, a.Interest, a.Objections, a.Outcome, a.IntroClarity)
	return a
}

// union returns the sorted, de-duplicated union of the given tag sets.
func union(sets ...[]string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, set := range sets {
		for _, tag := range set {
			if !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
		}
	}
	sort.Strings(out)
	return out
}
