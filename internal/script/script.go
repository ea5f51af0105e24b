// Package script defines the versioned agent script that drives every call
// and the append-only log of its revisions.
package script

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/apresai/callcoach/internal/apperr"
)

const (
	DefaultTone  = "Speak politely and clearly, use simple Hindi"
	DefaultStyle = "Friendly but professional"

	benefitsLead = "Main benefits ye hain: "
)

// Script is the agent's opening pitch and delivery guidance. Values are
// treated as immutable: improvements produce a successor via Next.
type Script struct {
	Intro             string   `json:"intro"`
	Benefits          []string `json:"benefits"`
	CallToAction      string   `json:"call_to_action"`
	ToneInstructions  string   `json:"tone_instructions"`
	ConversationStyle string   `json:"conversation_style"`
	Version           int      `json:"version"`
	ImprovementLog    []string `json:"improvement_log"`
}

// Content is the editable part of a Script.
type Content struct {
	Intro             string
	Benefits          []string
	CallToAction      string
	ToneInstructions  string
	ConversationStyle string
}

// New builds a version 1 script, applying the default tone and style when
// they are blank.
func New(c Content) (Script, error) {
	if c.ToneInstructions == "" {
		c.ToneInstructions = DefaultTone
	}
	if c.ConversationStyle == "" {
		c.ConversationStyle = DefaultStyle
	}
	s := Script{
		Intro:             c.Intro,
		Benefits:          append([]string(nil), c.Benefits...),
		CallToAction:      c.CallToAction,
		ToneInstructions:  c.ToneInstructions,
		ConversationStyle: c.ConversationStyle,
		Version:           1,
		ImprovementLog:    []string{},
	}
	if err := s.Validate(); err != nil {
		return Script{}, err
	}
	return s, nil
}

// Initial returns the launch script for the PM-KUSUM outreach campaign.
func Initial() Script {
	s, _ := New(Content{
		Intro:        "Namaste ji, main solar scheme ke baare mein baat karne ke liye call kar raha hun. Government ki PM-KUSUM yojana ke through aap apne khet mein solar pump lagwa sakte hain.",
		Benefits: []string{
			"90% subsidy milegi government se",
			"Bijli ka bill kam ho jayega, aur income bhi badh sakti hai",
			"5 saal mein paisa recover ho jayega",
		},
		CallToAction: "Kya aap is scheme ke baare mein aur jaanna chahenge?",
	})
	return s
}

// Validate checks the structural invariants of a script.
func (s Script) Validate() error {
	if strings.TrimSpace(s.Intro) == "" {
		return apperr.Invalid("intro", s.Intro, "must not be empty")
	}
	if strings.TrimSpace(s.CallToAction) == "" {
		return apperr.Invalid("call_to_action", s.CallToAction, "must not be empty")
	}
	for i, b := range s.Benefits {
		if strings.TrimSpace(b) == "" {
			return apperr.Invalid(fmt.Sprintf("benefits[%d]", i), b, "must not be empty")
		}
	}
	if s.Version < 1 {
		return apperr.Invalid("version", s.Version, "must be a positive integer")
	}
	return nil
}

// Content returns a deep copy of the editable fields.
func (s Script) Content() Content {
	return Content{
		Intro:             s.Intro,
		Benefits:          append([]string(nil), s.Benefits...),
		CallToAction:      s.CallToAction,
		ToneInstructions:  s.ToneInstructions,
		ConversationStyle: s.ConversationStyle,
	}
}

// Clone returns a deep copy of s.
func (s Script) Clone() Script {
	out := s
	out.Benefits = append([]string(nil), s.Benefits...)
	out.ImprovementLog = append([]string{}, s.ImprovementLog...)
	return out
}

// Next builds the successor of s: content replaced by c, version + 1, and
// notes appended to a copy of the log. s itself is left untouched.
func (s Script) Next(c Content, notes ...string) Script {
	log := make([]string, 0, len(s.ImprovementLog)+len(notes))
	log = append(log, s.ImprovementLog...)
	log = append(log, notes...)
	return Script{
		Intro:             c.Intro,
		Benefits:          append([]string(nil), c.Benefits...),
		CallToAction:      c.CallToAction,
		ToneInstructions:  c.ToneInstructions,
		ConversationStyle: c.ConversationStyle,
		Version:           s.Version + 1,
		ImprovementLog:    log,
	}
}

// OpeningLine is the agent's first utterance: intro, benefits and the call
// to action.
func (s Script) OpeningLine() string {
	var b strings.Builder
	b.WriteString(s.Intro)
	b.WriteString(" ")
	if len(s.Benefits) > 0 {
		b.WriteString(benefitsLead)
		for _, benefit := range s.Benefits {
			b.WriteString(benefit)
			b.WriteString(". ")
		}
	}
	b.WriteString(s.CallToAction)
	return b.String()
}

func SaveScript(s Script, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal script: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write script to %s: %w", path, err)
	}
	return nil
}

func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script from %s: %w", path, err)
	}
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("parse script from %s: %w", path, err)
	}
	if s.Version == 0 {
		s.Version = 1
	}
	if s.ImprovementLog == nil {
		s.ImprovementLog = []string{}
	}
	if err := s.Validate(); err != nil {
		return Script{}, fmt.Errorf("script %s: %w", path, err)
	}
	return s, nil
}
