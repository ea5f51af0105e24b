package analysis

var (
	sentimentWeight = map[Sentiment]float64{
		SentimentPositive: 0.30,
		SentimentNeutral:  0.15,
		SentimentNegative: 0.0,
	}
	interestWeight = map[Interest]float64{
		InterestHigh:     0.30,
		InterestMedium:   0.20,
		InterestLow:      0.10,
		InterestConfused: 0.05,
	}
	outcomeWeight = map[Outcome]float64{
		OutcomeSuccess:  0.20,
		OutcomeFollowUp: 0.10,
		OutcomeFailure:  0.0,
	}
)

const (
	clarityWeight       = 0.10
	objectionPenalty    = 0.02
	maxObjectionPenalty = 0.10
	// bestRaw is the raw score of a perfect call; scores are rescaled by it
	// so that a perfect call scores exactly 1.
	bestRaw = 0.30 + 0.30 + clarityWeight + 0.20
)

// Score computes call effectiveness in [0,1]. Unknown enum values weigh zero.
func Score(s Sentiment, i Interest, objections []string, o Outcome, introClarity bool) float64 {
	raw := sentimentWeight[s] + interestWeight[i] + outcomeWeight[o]
	if introClarity {
		raw += clarityWeight
	}
	raw -= min(maxObjectionPenalty, objectionPenalty*float64(len(objections)))

	score := raw / bestRaw
	return max(0, min(1, score))
}
