package analysis

// Merge reconciles the rule and model analyses of the same call.
//
// Objections are the union of both sets. A positive/negative split on
// sentiment resolves to neutral; any other sentiment comes from the model.
// Every remaining field comes from the model when it supplied one and from
// the rules otherwise. Effectiveness is recomputed from the merged signals.
func Merge(rule, model CallAnalysis) CallAnalysis {
	m := model
	m.Source = SourceMerged
	m.Objections = union(rule.Objections, model.Objections)

	if (model.Sentiment == SentimentPositive && rule.Sentiment == SentimentNegative) ||
		(model.Sentiment == SentimentNegative && rule.Sentiment == SentimentPositive) {
		m.Sentiment = SentimentNeutral
	}
	if m.Sentiment == "" {
		m.Sentiment = rule.Sentiment
	}
	if m.Interest == "" {
		m.Interest = rule.Interest
	}
	if m.Outcome == "" {
		m.Outcome = rule.Outcome
	}
	if model.Flow.IsZero() {
		m.Flow = rule.Flow
	}
	if model.Emotions == nil {
		m.Emotions = rule.Emotions
	}
	return m.Scored()
}
