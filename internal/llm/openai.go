package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI completes prompts with the chat completions API. Requests carrying
// a Schema use strict json_schema structured output.
type OpenAI struct {
	model  string
	client openai.Client
	retry  retrier
}

func NewOpenAI(cfg Config) *OpenAI {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &OpenAI{
		model:  model,
		client: openai.NewClient(opts...),
		retry:  newRetrier(ProviderOpenAI, cfg.MaxAttempts),
	}
}

func (o *OpenAI) Name() string { return ProviderOpenAI + ":" + o.model }

func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		if m.Role == RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(o.model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(maxTokensOr(req.MaxTokens, 1024))),
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.Schema.Name,
					Schema: req.Schema.Definition,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	return o.retry.do(ctx, func(ctx context.Context) (string, error) {
		resp, err := o.client.Chat.Completions.New(ctx, params)
		if err != nil {
			var apiErr *openai.Error
			if errors.As(err, &apiErr) {
				if isRetryableStatus(apiErr.StatusCode) {
					return "", retryable(apiErr.StatusCode, err)
				}
				return "", &statusError{status: apiErr.StatusCode, err: err}
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", retryable(0, fmt.Errorf("OpenAI API error: %w", err))
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		choice := resp.Choices[0]
		if choice.Message.Refusal != "" {
			return "", &statusError{err: fmt.Errorf("model refused: %s", choice.Message.Refusal)}
		}
		return strings.TrimSpace(choice.Message.Content), nil
	})
}
