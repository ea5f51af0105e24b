package improve

import (
	"strings"

	"github.com/apresai/callcoach/internal/analysis"
	"github.com/apresai/callcoach/internal/script"
)

// LowEffectiveness is the score below which the intro and call to action are
// replaced wholesale.
const LowEffectiveness = 0.4

// rule rewrites part of the script when its condition holds on the analysis.
// apply reports false when the templates give it nothing to write.
type rule struct {
	name  string
	when  func(a analysis.CallAnalysis) bool
	apply func(c *script.Content, t Templates) bool
	note  string
}

// rules run in this order, each independently of the others.
var rules = []rule{
	{
		name: "trust",
		when: func(a analysis.CallAnalysis) bool { return a.HasObjection(analysis.TrustIssues) },
		apply: func(c *script.Content, t Templates) bool {
			c.Intro = t.TrustPrefix + " " + c.Intro
			return true
		},
		note: "Added government authorization and identity for trust building",
	},
	{
		name: "cost",
		when: func(a analysis.CallAnalysis) bool {
			return a.HasObjection(analysis.CostConcern) || a.HasObjection(analysis.WantsFree)
		},
		apply: func(c *script.Content, t Templates) bool {
			if len(t.CostExplanations) == 0 {
				return false
			}
			rest := []string{}
			if len(c.Benefits) > 1 {
				rest = c.Benefits[1:]
			}
			c.Benefits = append(append([]string{}, t.CostExplanations...), rest...)
			return true
		},
		note: "Emphasized exact cost breakdown and subsidies",
	},
	{
		name: "simplify",
		when: func(a analysis.CallAnalysis) bool {
			return !a.IntroClarity || a.Interest == analysis.InterestConfused
		},
		apply: func(c *script.Content, t Templates) bool {
			if len(t.SimpleExplanation) == 0 {
				return false
			}
			c.Intro = t.SimpleGreeting + " " + t.SimpleExplanation[0] + " " + c.Intro
			return true
		},
		note: "Simplified introduction with basic explanation",
	},
	{
		name: "soften",
		when: func(a analysis.CallAnalysis) bool { return a.Sentiment == analysis.SentimentNegative },
		apply: func(c *script.Content, t Templates) bool {
			if t.HarshPhrase != "" {
				c.Intro = strings.ReplaceAll(c.Intro, t.HarshPhrase, t.SoftPhrase)
			}
			c.ToneInstructions = t.GentleTone
			return true
		},
		note: "Softened tone and approach for negative sentiment",
	},
	{
		name: "process",
		when: func(a analysis.CallAnalysis) bool { return a.HasObjection(analysis.ProcessComplexity) },
		apply: func(c *script.Content, t Templates) bool {
			c.CallToAction = t.ProcessCTA
			return true
		},
		note: "Simplified call-to-action with process clarity",
	},
	{
		name: "technical",
		when: func(a analysis.CallAnalysis) bool { return a.HasObjection(analysis.TechnicalConfusion) },
		apply: func(c *script.Content, t Templates) bool {
			c.Intro = c.Intro + " " + t.TechClarification
			return true
		},
		note: "Added simple technical explanation",
	},
	{
		name: "restructure",
		when: func(a analysis.CallAnalysis) bool { return a.Effectiveness < LowEffectiveness },
		apply: func(c *script.Content, t Templates) bool {
			c.Intro = t.LowWaterIntro
			c.CallToAction = t.LowWaterCTA
			return true
		},
		note: "Major restructuring due to low effectiveness",
	},
}

// ApplyRules runs the rule table against s and returns its successor with one
// note per rule that fired. When no rule fires the content is unchanged and
// only the version moves.
func ApplyRules(s script.Script, a analysis.CallAnalysis, t Templates) (script.Script, []string) {
	c := s.Content()
	var fired []string
	for _, r := range rules {
		if r.when(a) && r.apply(&c, t) {
			fired = append(fired, r.note)
		}
	}
	return s.Next(c, fired...), fired
}
