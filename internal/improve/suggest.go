package improve

import "github.com/apresai/callcoach/internal/analysis"

// Suggestions lists human-readable recommendations for a call without
// touching the script.
func Suggestions(a analysis.CallAnalysis) []string {
	var out []string
	if a.HasObjection(analysis.TrustIssues) {
		out = append(out, "Add government authorization and credible identity")
	}
	if a.HasObjection(analysis.CostConcern) {
		out = append(out, "Provide clear cost breakdown upfront")
	}
	if !a.IntroClarity {
		out = append(out, "Simplify introduction and technical terms")
	}
	if a.Sentiment == analysis.SentimentNegative {
		out = append(out, "Soften tone and build rapport first")
	}
	if a.Interest == analysis.InterestConfused {
		out = append(out, "Add simple explanations and examples")
	}
	if a.Effectiveness < 0.5 {
		out = append(out, "Consider major restructuring of approach")
	}
	return out
}
