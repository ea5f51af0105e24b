package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Roster is an ordered, validated set of personas plus optional response
// templates keyed by persona type.
type Roster struct {
	Personas  []Persona           `json:"farmers" yaml:"farmers"`
	Templates map[string]Template `json:"persona_templates,omitempty" yaml:"persona_templates,omitempty"`
}

// Template describes a persona type for prompting and mock replies.
type Template struct {
	Concerns         []string `json:"concerns,omitempty" yaml:"concerns,omitempty"`
	ResponsePatterns []string `json:"response_patterns,omitempty" yaml:"response_patterns,omitempty"`
}

// DefaultRoster returns the three demo farmers and their reply templates.
func DefaultRoster() Roster {
	return Roster{
		Personas: []Persona{
			{
				ID: "F001", Name: "Ramesh Kumar", Age: 52,
				Education: TierLow, Income: TierLow,
				Location: "Sitapur, Uttar Pradesh", Crops: []string{"wheat", "sugarcane"}, LandSize: "2 acres",
				Skepticism: 0.9, GovtExperience: "Pichli scheme mein paisa atak gaya tha", FamilySize: 6,
				PreferredLanguage: "hindi", BestCallTime: "evening", PersonaType: TypeSkeptical,
			},
			{
				ID: "F002", Name: "Suresh Patel", Age: 41,
				Education: TierMedium, Income: TierMedium,
				Location: "Anand, Gujarat", Crops: []string{"cotton", "groundnut"}, LandSize: "5 acres",
				Skepticism: 0.4, GovtExperience: "Kisan credit card mila hai", FamilySize: 4,
				PreferredLanguage: "hindi", BestCallTime: "morning", PersonaType: TypeInterested,
			},
			{
				ID: "F003", Name: "Mahesh Reddy", Age: 35,
				Education: TierHigh, Income: TierHigh,
				Location: "Guntur, Andhra Pradesh", Crops: []string{"chilli", "rice"}, LandSize: "12 acres",
				Skepticism: 0.2, GovtExperience: "Drip irrigation subsidy li hai", FamilySize: 3,
				PreferredLanguage: "hinglish", BestCallTime: "afternoon", PersonaType: TypeProgressive,
			},
		},
		Templates: map[string]Template{
			TypeSkeptical: {
				Concerns: []string{"fraud", "upfront cost", "government delays"},
				ResponsePatterns: []string{
					"Kaun ho tum? Government se ho kya?",
					"Pehle tum batao, ye sach hai ya jhooth?",
					"Kitne paise lagenge? Main gareeb kisan hun",
					"Mujhe koi paisa nahi dena, bilkul free mein chahiye",
				},
			},
			TypeInterested: {
				Concerns: []string{"savings", "application process"},
				ResponsePatterns: []string{
					"Haan, sun raha hun. Batayiye details",
					"90% subsidy matlab kitne paise bachenge?",
					"Process kya hai? Kaise apply karna hai?",
					"Achha lagta hai. Aur bhi koi benefits hain?",
				},
			},
			TypeProgressive: {
				Concerns: []string{"return on investment", "technical specifications", "documentation"},
				ResponsePatterns: []string{
					"Interesting. What's the ROI on this investment?",
					"Technical specifications kya hain is solar pump ke?",
					"Government ki guarantee hai kya? Documentation milega?",
					"Haan, main interested hun. Next steps kya hain?",
				},
			},
		},
	}
}

// Validate validates every persona and rejects duplicate ids.
func (r Roster) Validate() error {
	if len(r.Personas) == 0 {
		return fmt.Errorf("roster has no personas")
	}
	seen := make(map[string]bool, len(r.Personas))
	for _, p := range r.Personas {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("persona %q: %w", p.ID, err)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate persona id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// Get returns the persona with the given id.
func (r Roster) Get(id string) (Persona, bool) {
	for _, p := range r.Personas {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}

// At returns the persona for loop iteration i, cycling through the roster.
func (r Roster) At(i int) Persona {
	return r.Personas[i%len(r.Personas)]
}

// LoadRoster reads a JSON or YAML roster file. Templates missing from the
// file are taken from the default roster.
func LoadRoster(path string) (Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Roster{}, fmt.Errorf("read personas from %s: %w", path, err)
	}

	var r Roster
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &r)
	default:
		err = json.Unmarshal(data, &r)
	}
	if err != nil {
		return Roster{}, fmt.Errorf("parse personas from %s: %w", path, err)
	}

	defaults := DefaultRoster().Templates
	if r.Templates == nil {
		r.Templates = map[string]Template{}
	}
	for k, v := range defaults {
		if _, ok := r.Templates[k]; !ok {
			r.Templates[k] = v
		}
	}

	if err := r.Validate(); err != nil {
		return Roster{}, fmt.Errorf("personas %s: %w", path, err)
	}
	return r, nil
}
