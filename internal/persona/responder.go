package persona

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/apresai/callcoach/internal/llm"
)

// Responder produces the counterpart's reply to the agent's latest utterance.
// history holds the completed exchanges of the current call, oldest first.
type Responder interface {
	Respond(ctx context.Context, p Persona, agentUtterance string, history []Exchange) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, p Persona, agentUtterance string, history []Exchange) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, p Persona, agentUtterance string, history []Exchange) (string, error) {
	return f(ctx, p, agentUtterance, history)
}

var genericReplies = []string{"Haan, sun raha hun.", "Theek hai, batayiye.", "Samajh nahi aaya."}

// TemplateResponder answers from the roster's per-type reply templates. It
// needs no network and is fully deterministic: exchange n uses template n,
// wrapping around when the list is exhausted.
type TemplateResponder struct {
	templates map[string]Template
}

func NewTemplateResponder(templates map[string]Template) *TemplateResponder {
	if templates == nil {
		templates = DefaultRoster().Templates
	}
	return &TemplateResponder{templates: templates}
}

func (r *TemplateResponder) Respond(ctx context.Context, p Persona, agentUtterance string, history []Exchange) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	replies := r.templates[p.Type()].ResponsePatterns
	if len(replies) == 0 {
		replies = genericReplies
	}
	reply := replies[len(history)%len(replies)]
	return contextualize(reply, agentUtterance, p), nil
}

func contextualize(reply, agentUtterance string, p Persona) string {
	agent := strings.ToLower(agentUtterance)

	if strings.Contains(agent, "subsidy") && p.Income == TierLow {
		reply += " Sach mein sirf 10% paisa lagega?"
	}
	if strings.Contains(agent, "solar") && !strings.Contains(strings.ToLower(reply), "kya") && p.Education == TierLow {
		reply = "Solar kya hota hai bhai? Simple mein batao."
	}
	if strings.Contains(agent, "process") {
		reply += " Kitne din lagenge?"
	}
	if p.Skepticism > 0.7 && strings.Contains(agent, "government") {
		reply += " Government ki guarantee hai kya?"
	}
	return reply
}

const (
	counterpartTemperature = 0.8
	counterpartMaxTokens   = 100
	counterpartHistory     = 10
)

// ModelResponder asks a language model to play the persona. Failures are
// returned unchanged; wrap it in a FallbackResponder to degrade to templates.
type ModelResponder struct {
	client    llm.Completer
	templates map[string]Template
	logger    *slog.Logger
}

func NewModelResponder(client llm.Completer, templates map[string]Template, logger *slog.Logger) *ModelResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelResponder{client: client, templates: templates, logger: logger.With("component", "counterpart")}
}

func (r *ModelResponder) Respond(ctx context.Context, p Persona, agentUtterance string, history []Exchange) (string, error) {
	var lines []llm.Message
	for _, ex := range history {
		lines = append(lines,
			llm.Message{Role: llm.RoleUser, Content: "Agent says: " + ex.Agent},
			llm.Message{Role: llm.RoleAssistant, Content: ex.Counterpart},
		)
	}
	if len(lines) > counterpartHistory {
		lines = lines[len(lines)-counterpartHistory:]
	}
	msgs := append(lines, llm.Message{Role: llm.RoleUser, Content: "Agent says: " + agentUtterance})

	text, err := r.client.Complete(ctx, llm.Request{
		System:      SystemPrompt(p, r.templates[p.Type()]),
		Messages:    msgs,
		Temperature: counterpartTemperature,
		MaxTokens:   counterpartMaxTokens,
		Purpose:     "counterpart",
	})
	if err != nil {
		return "", err
	}

	reply := postProcess(text, p)
	r.logger.Debug("counterpart reply", "persona", p.ID, "reply", reply)
	return reply, nil
}

// SystemPrompt describes the persona to the model.
func SystemPrompt(p Persona, t Template) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a %d-year-old farmer named %s from %s.\n\n", p.Age, p.Name, p.Location)
	b.WriteString("FARMER PROFILE:\n")
	fmt.Fprintf(&b, "- Education: %s\n", p.Education)
	fmt.Fprintf(&b, "- Income: %s\n", p.Income)
	fmt.Fprintf(&b, "- Primary crops: %s\n", strings.Join(p.Crops, ", "))
	fmt.Fprintf(&b, "- Land size: %s\n", p.LandSize)
	fmt.Fprintf(&b, "- Skepticism level: %.1f/1.0\n", p.Skepticism)
	fmt.Fprintf(&b, "- Previous experience with govt schemes: %s\n", p.GovtExperience)
	b.WriteString("- Language comfort: Primarily Hindi, some broken English\n")
	fmt.Fprintf(&b, "- Family size: %d\n\n", p.FamilySize)
	b.WriteString("PERSONALITY TRAITS:\n")
	fmt.Fprintf(&b, "- %s\n\n", traits(p, t))
	b.WriteString(`CONVERSATION STYLE:
- Speak in Hindi mixed with local dialect
- Use realistic farmer expressions like "Haan bhai", "Achha", "Samajh nahi aaya"
- Ask practical questions about cost, eligibility and process
- Express skepticism about government schemes if skepticism is high
- Avoid technical terms unless education is high

RESPONSE GUIDELINES:
- Keep responses 1-2 sentences long
- Ask clarifying questions when confused
- Express interest if benefits seem genuine and affordable

You will receive agent messages about the PM-KUSUM solar scheme. Respond as this farmer would naturally react.`)
	return b.String()
}

func traits(p Persona, t Template) string {
	var out []string
	if len(t.Concerns) > 0 {
		out = append(out, "Concerned about: "+strings.Join(t.Concerns, ", "))
	}
	switch p.Education {
	case TierLow:
		out = append(out, "Cautious about new technology, prefers simple explanations")
	case TierHigh:
		out = append(out, "Asks detailed questions, wants to understand technical aspects")
	}
	switch p.Income {
	case TierLow:
		out = append(out, "Very cost-conscious, worried about upfront payments")
	case TierHigh:
		out = append(out, "Interested in ROI and long-term benefits")
	}
	switch {
	case p.Skepticism > 0.7:
		out = append(out, "Highly skeptical of government schemes, has been cheated before")
	case p.Skepticism < 0.3:
		out = append(out, "Open to new opportunities, trusts government initiatives")
	}
	return strings.Join(out, "; ")
}

var (
	rolePrefixRe = regexp.MustCompile(`^As an? [a-zA-Z]+,\s*`)
	spaceRe      = regexp.MustCompile(`\s+`)
	symbolRe     = regexp.MustCompile(`[^\p{Devanagari}\p{L}\p{N}_\s.,!?%-]`)
)

// CleanText collapses whitespace and strips symbols other than basic punctuation.
func CleanText(s string) string {
	s = symbolRe.ReplaceAllString(s, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func postProcess(reply string, p Persona) string {
	reply = rolePrefixRe.ReplaceAllString(strings.TrimSpace(reply), "")
	reply = CleanText(reply)

	if p.Education == TierLow && len(strings.Fields(reply)) > 15 {
		reply = strings.SplitN(reply, ".", 2)[0] + "."
	}

	lower := strings.ToLower(reply)
	if p.Skepticism < 0.5 && (strings.Contains(lower, "interested") || strings.Contains(lower, "good") || strings.Contains(lower, "achha")) {
		reply += " Batayiye aur details."
	}
	return reply
}

// FallbackResponder tries Primary and answers with Secondary when it fails.
type FallbackResponder struct {
	Primary   Responder
	Secondary Responder
	Logger    *slog.Logger
}

func (r FallbackResponder) Respond(ctx context.Context, p Persona, agentUtterance string, history []Exchange) (string, error) {
	reply, err := r.Primary.Respond(ctx, p, agentUtterance, history)
	if err == nil {
		return reply, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	if r.Logger != nil {
		r.Logger.Warn("counterpart model failed, using templates", "persona", p.ID, "error", err)
	}
	return r.Secondary.Respond(ctx, p, agentUtterance, history)
}
