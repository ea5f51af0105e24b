// Package improve produces the next script version from a call analysis,
// either through a fixed table of rewrite rules or through a language model
// with the rules as fallback.
package improve

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Templates holds the text the rewrite rules splice into a script.
type Templates struct {
	TrustPrefix       string   `yaml:"trust_prefix"`
	CostExplanations  []string `yaml:"cost_explanations"`
	SimpleExplanation []string `yaml:"simple_explanations"`
	SimpleGreeting    string   `yaml:"simple_greeting"`
	HarshPhrase       string   `yaml:"harsh_phrase"`
	SoftPhrase        string   `yaml:"soft_phrase"`
	GentleTone        string   `yaml:"gentle_tone"`
	ProcessCTA        string   `yaml:"process_call_to_action"`
	TechClarification string   `yaml:"technical_clarification"`
	LowWaterIntro     string   `yaml:"low_effectiveness_intro"`
	LowWaterCTA       string   `yaml:"low_effectiveness_call_to_action"`
}

// DefaultTemplates returns the built-in rewrite text.
func DefaultTemplates() Templates {
	return Templates{
		TrustPrefix: "Namaste ji! Main government authorized solar scheme advisor hun.",
		CostExplanations: []string{
			"Sirf 10% paisa aapko dena hai, 90% government degi",
			"1 lakh ke pump pe sirf 10,000 rupaye lagenge",
		},
		SimpleExplanation: []string{
			"Solar pump sun ki roshni se chalta hai, bijli ka bill zero ho jata hai.",
		},
		SimpleGreeting:    "Namaste ji!",
		HarshPhrase:       "call kar raha hun",
		SoftPhrase:        "aapse baat karna chahta hun",
		GentleTone:        "Very polite, patient, build trust first",
		ProcessCTA:        "Kya main aapko simple process WhatsApp pe bhej sakta hun? Sirf 3 steps hain.",
		TechClarification: "Solar pump matlab sun ki energy se paani nikalne waala pump - bijli ki zarurat nahi.",
		LowWaterIntro:     "Namaste ji! Main government ki PM-KUSUM scheme ke baare mein 2 minute mein batana chahta hun.",
		LowWaterCTA:       "Kya aap 2 minute sun sakte hain? Ya main WhatsApp pe details bhej dun?",
	}
}

// LoadTemplates reads a YAML file over the defaults. Keys absent from the
// file keep their default text.
func LoadTemplates(path string) (Templates, error) {
	t := DefaultTemplates()
	data, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, fmt.Errorf("read templates from %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Templates{}, fmt.Errorf("parse templates from %s: %w", path, err)
	}
	return t, nil
}
