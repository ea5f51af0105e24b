// Package persona models the simulated call counterpart: a farmer profile
// and the responders that answer the agent on the farmer's behalf.
package persona

import (
	"fmt"
	"strings"

	"github.com/apresai/callcoach/internal/apperr"
)

// Tier is an education or income bracket.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

func (t Tier) valid() bool {
	return t == TierLow || t == TierMedium || t == TierHigh
}

// Persona types with built-in response templates.
const (
	TypeSkeptical   = "skeptical_low_education"
	TypeInterested  = "interested_medium_education"
	TypeProgressive = "progressive_high_education"
)

// Persona is a farmer profile. It is read-only for the lifetime of a call.
type Persona struct {
	ID                string   `json:"id" yaml:"id"`
	Name              string   `json:"name" yaml:"name"`
	Age               int      `json:"age" yaml:"age"`
	Education         Tier     `json:"education" yaml:"education"`
	Income            Tier     `json:"income" yaml:"income"`
	Location          string   `json:"location" yaml:"location"`
	Crops             []string `json:"crops" yaml:"crops"`
	LandSize          string   `json:"land_size" yaml:"land_size"`
	Skepticism        float64  `json:"skepticism" yaml:"skepticism"`
	GovtExperience    string   `json:"govt_experience" yaml:"govt_experience"`
	FamilySize        int      `json:"family_size" yaml:"family_size"`
	Phone             string   `json:"phone,omitempty" yaml:"phone,omitempty"`
	PreferredLanguage string   `json:"preferred_language,omitempty" yaml:"preferred_language,omitempty"`
	BestCallTime      string   `json:"best_call_time,omitempty" yaml:"best_call_time,omitempty"`
	PersonaType       string   `json:"persona_type,omitempty" yaml:"persona_type,omitempty"`
}

// Validate checks declared ranges and enumerations.
func (p Persona) Validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return apperr.Invalid("id", p.ID, "must not be empty")
	case strings.TrimSpace(p.Name) == "":
		return apperr.Invalid("name", p.Name, "must not be empty")
	case p.Age < 18 || p.Age > 100:
		return apperr.Invalid("age", p.Age, "must be between 18 and 100")
	case !p.Education.valid():
		return apperr.Invalid("education", p.Education, "must be low, medium or high")
	case !p.Income.valid():
		return apperr.Invalid("income", p.Income, "must be low, medium or high")
	case p.Skepticism < 0 || p.Skepticism > 1:
		return apperr.Invalid("skepticism", p.Skepticism, "must be within [0,1]")
	case p.FamilySize < 1 || p.FamilySize > 20:
		return apperr.Invalid("family_size", p.FamilySize, "must be between 1 and 20")
	}
	return nil
}

// Type returns the explicit persona type, or infers one from the profile.
func (p Persona) Type() string {
	if p.PersonaType != "" {
		return p.PersonaType
	}
	switch {
	case p.Education == TierLow && p.Skepticism > 0.7:
		return TypeSkeptical
	case p.Education == TierHigh:
		return TypeProgressive
	default:
		return TypeInterested
	}
}

func (p Persona) String() string {
	return fmt.Sprintf("%s (%s, %s)", p.Name, p.ID, p.Type())
}

// Exchange is one completed agent/counterpart pair, oldest first.
type Exchange struct {
	Agent       string
	Counterpart string
}
