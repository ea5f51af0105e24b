package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type secretGetter interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// LoadSecrets fills API keys missing from the environment from AWS Secrets
// Manager, using secret ids "<prefix><ENV_NAME>". It does nothing without a
// prefix. Missing secrets are logged and skipped.
func LoadSecrets(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	if cfg.Secrets.Prefix == "" {
		return nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Secrets.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Secrets.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}
	return loadSecrets(ctx, secretsmanager.NewFromConfig(awsCfg), cfg, logger)
}

func loadSecrets(ctx context.Context, client secretGetter, cfg *Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	targets := []struct {
		env string
		dst *string
	}{
		{"ANTHROPIC_API_KEY", &cfg.Keys.Anthropic},
		{"OPENAI_API_KEY", &cfg.Keys.OpenAI},
		{"GEMINI_API_KEY", &cfg.Keys.Gemini},
		{"ELEVENLABS_API_KEY", &cfg.Keys.ElevenLabs},
	}
	for _, t := range targets {
		if *t.dst != "" {
			continue
		}
		secretID := cfg.Secrets.Prefix + t.env
		out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(secretID),
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Info("secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if out.SecretString != nil {
			*t.dst = *out.SecretString
			logger.Info("loaded secret", "secret_id", secretID)
		}
	}
	return nil
}
