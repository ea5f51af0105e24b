package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

var claudeModels = map[string]string{
	"haiku":  "claude-haiku-4-5-20251001",
	"sonnet": "claude-sonnet-4-5-20250929",
}

// Claude completes prompts with the Anthropic Messages API.
type Claude struct {
	model  string
	client anthropic.Client
	retry  retrier
}

func NewClaude(cfg Config) *Claude {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	// retries are handled by retrier
	opts = append(opts, option.WithMaxRetries(0))

	modelID := claudeModels[cfg.Model]
	if modelID == "" {
		modelID = cfg.Model
	}
	if modelID == "" {
		modelID = claudeModels["haiku"]
	}

	return &Claude{
		model:  modelID,
		client: anthropic.NewClient(opts...),
		retry:  newRetrier(ProviderClaude, cfg.MaxAttempts),
	}
}

func (c *Claude) Name() string { return ProviderClaude + ":" + c.model }

func (c *Claude) Complete(ctx context.Context, req Request) (string, error) {
	system := req.System
	if req.Schema != nil {
		system = appendSchemaInstruction(system, req.Schema)
	}

	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokensOr(req.MaxTokens, 1024)),
		Temperature: anthropic.Float(req.Temperature),
		Messages:    msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	return c.retry.do(ctx, func(ctx context.Context) (string, error) {
		message, err := c.client.Messages.New(ctx, params)
		if err != nil {
			var apiErr *anthropic.Error
			if errors.As(err, &apiErr) {
				if isRetryableStatus(apiErr.StatusCode) {
					return "", retryable(apiErr.StatusCode, err)
				}
				return "", &statusError{status: apiErr.StatusCode, err: err}
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", retryable(0, fmt.Errorf("Claude API error: %w", err))
		}
		return extractText(message), nil
	})
}

func extractText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func maxTokensOr(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}
