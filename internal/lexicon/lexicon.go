// Package lexicon holds the phrase tables that drive every rule-based
// decision: response routing, call termination and transcript analysis.
package lexicon

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category names a set of trigger phrases.
type Category string

// Analysis categories.
const (
	Positive   Category = "positive"
	Negative   Category = "negative"
	Neutral    Category = "neutral"
	Confused   Category = "confused"
	Interested Category = "interested"
	Objection  Category = "objection"
	Unclear    Category = "unclear"
	Reschedule Category = "reschedule"
	Rejection  Category = "rejection"

	ObjectionCost        Category = "objection-cost"
	ObjectionFree        Category = "objection-free"
	ObjectionTrust       Category = "objection-trust"
	ObjectionEligibility Category = "objection-eligibility"
	ObjectionTime        Category = "objection-time"
)

// Routing and termination categories.
const (
	AskIdentity      Category = "ask-identity"
	AskComprehension Category = "ask-comprehension"
	AskCost          Category = "ask-cost"
	AskEligibility   Category = "ask-eligibility"
	AskProcess       Category = "ask-process"
	AskLater         Category = "ask-later"
	ClosingInterest  Category = "closing-interest"

	EndRejection Category = "end-rejection"
	EndAgreement Category = "end-agreement"
	EndLater     Category = "end-later"
)

// Lexicon is an immutable mapping from category to lowercase trigger phrases.
type Lexicon struct {
	phrases map[Category][]string
}

// New copies m into a Lexicon, lowercasing and de-duplicating phrases while
// keeping their first-seen order.
func New(m map[Category][]string) *Lexicon {
	l := &Lexicon{phrases: make(map[Category][]string, len(m))}
	for c, list := range m {
		l.phrases[c] = normalize(list)
	}
	return l
}

// FromStrings builds a Lexicon from a plain string-keyed map, as decoded
// from a YAML or JSON templates file.
func FromStrings(m map[string][]string) *Lexicon {
	cm := make(map[Category][]string, len(m))
	for k, v := range m {
		cm[Category(k)] = v
	}
	return New(cm)
}

// Load reads a YAML (or JSON) category-to-phrases file and layers it over
// the default lexicon.
func Load(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon from %s: %w", path, err)
	}
	var m map[string][]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse lexicon from %s: %w", path, err)
	}
	return Default().With(FromStrings(m)), nil
}

// With returns a copy of l where every category present in override
// replaces the existing phrase set.
func (l *Lexicon) With(override *Lexicon) *Lexicon {
	merged := make(map[Category][]string, len(l.phrases))
	for c, list := range l.phrases {
		merged[c] = list
	}
	if override != nil {
		for c, list := range override.phrases {
			merged[c] = list
		}
	}
	return &Lexicon{phrases: merged}
}

// Phrases returns a copy of the phrase list for c.
func (l *Lexicon) Phrases(c Category) []string {
	return append([]string(nil), l.phrases[c]...)
}

// Categories lists the categories present, sorted by name.
func (l *Lexicon) Categories() []Category {
	out := make([]Category, 0, len(l.phrases))
	for c := range l.phrases {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Matches returns the phrases of c found in text. text must already be lowercase.
func (l *Lexicon) Matches(c Category, text string) []string {
	var found []string
	for _, p := range l.phrases[c] {
		if strings.Contains(text, p) {
			found = append(found, p)
		}
	}
	return found
}

// Count returns how many distinct phrases of c occur in text.
func (l *Lexicon) Count(c Category, text string) int {
	n := 0
	for _, p := range l.phrases[c] {
		if strings.Contains(text, p) {
			n++
		}
	}
	return n
}

// Any reports whether any phrase of c occurs in text.
func (l *Lexicon) Any(c Category, text string) bool {
	return ContainsAny(text, l.phrases[c]...)
}

// ContainsAny reports whether text contains at least one of needles.
// Empty needles never match.
func ContainsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func normalize(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, p := range list {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
