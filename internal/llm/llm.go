// Package llm wraps the text-generation services used for model-based
// analysis, script improvement and simulated counterparts.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider names accepted by New.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNova   = "nova"
)

// Role of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Schema describes the JSON record a request expects back. Providers with
// native structured output enforce it; the others rely on the prompt.
type Schema struct {
	Name       string
	Definition map[string]any
}

// Request is a single completion call.
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Schema      *Schema
	// Purpose labels the call for auditing ("analysis", "improvement", "counterpart").
	Purpose string
}

// Completer turns a prompt into free text. Failures are reported as
// *apperr.ServiceError (transport, status, cancellation) or
// *apperr.MalformedOutputError (empty reply).
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Region      string
	MaxAttempts int
	Timeout     time.Duration
}

// New builds the Completer for cfg.Provider.
func New(ctx context.Context, cfg Config) (Completer, error) {
	switch cfg.Provider {
	case ProviderClaude:
		return NewClaude(cfg), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case ProviderGemini:
		return NewGemini(cfg), nil
	case ProviderNova:
		return NewNova(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown model provider %q: choose claude, openai, gemini, or nova", cfg.Provider)
	}
}

// UserPrompt is a convenience for single-message requests.
func UserPrompt(text string) []Message {
	return []Message{{Role: RoleUser, Content: text}}
}
