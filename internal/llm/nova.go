package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

var novaModels = map[string]string{
	"nova-lite": "us.amazon.nova-2-lite-v1:0",
}

// Nova completes prompts with Amazon Bedrock's Converse API.
type Nova struct {
	model  string
	client *bedrockruntime.Client
	retry  retrier
}

func NewNova(ctx context.Context, cfg Config) (*Nova, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	modelID := novaModels[cfg.Model]
	if modelID == "" {
		modelID = cfg.Model
	}
	if modelID == "" {
		modelID = novaModels["nova-lite"]
	}

	return &Nova{
		model:  modelID,
		client: bedrockruntime.NewFromConfig(awsCfg),
		retry:  newRetrier(ProviderNova, cfg.MaxAttempts),
	}, nil
}

func (n *Nova) Name() string { return ProviderNova + ":" + n.model }

func (n *Nova) Complete(ctx context.Context, req Request) (string, error) {
	system := req.System
	if req.Schema != nil {
		system = appendSchemaInstruction(system, req.Schema)
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(n.model),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(maxTokensOr(req.MaxTokens, 1024))),
			Temperature: aws.Float32(float32(req.Temperature)),
		},
	}
	if system != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		}
	}
	for _, m := range req.Messages {
		role := types.ConversationRoleUser
		if m.Role == RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		input.Messages = append(input.Messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}

	return n.retry.do(ctx, func(ctx context.Context) (string, error) {
		resp, err := n.client.Converse(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", retryable(0, fmt.Errorf("Bedrock Converse error: %w", err))
		}
		return extractNovaText(resp), nil
	})
}

func extractNovaText(resp *bedrockruntime.ConverseOutput) string {
	if resp.Output == nil {
		return ""
	}
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var parts []string
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			parts = append(parts, tb.Value)
		}
	}
	return strings.TrimSpace(strings.Join(parts, ""))
}
