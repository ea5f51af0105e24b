// Package tts synthesizes call audio. Each utterance of a simulated call can
// be rendered to an MP3 clip by one of the providers below.
package tts

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AudioFormat represents the audio encoding returned by a provider.
type AudioFormat string

const (
	FormatMP3 AudioFormat = "mp3"
	FormatWAV AudioFormat = "wav"
)

// Voice holds a provider-specific voice identifier.
type Voice struct {
	ID   string // Provider-specific voice identifier
	Name string // Human-readable label
}

// VoiceMap maps call participants to voices.
type VoiceMap struct {
	Agent  Voice
	Farmer Voice
}

// AudioResult is the output of a synthesis call.
type AudioResult struct {
	Data   []byte
	Format AudioFormat
}

// Provider synthesizes speech from text.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error)
	DefaultVoices() VoiceMap
	Close() error
}

// VoiceInfo describes an available voice for display in the registry.
type VoiceInfo struct {
	ID          string
	Name        string
	Gender      string // "male" or "female"
	Description string
	DefaultFor  string // "agent", "farmer", or ""
}

// AvailableVoices returns the voice catalog for the named provider.
func AvailableVoices(providerName string) ([]VoiceInfo, error) {
	switch providerName {
	case "elevenlabs":
		return elevenLabsAvailableVoices(), nil
	case "google":
		return googleAvailableVoices(), nil
	case "polly":
		return pollyAvailableVoices(), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", providerName)
	}
}

// Retry constants shared by all providers.
const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 1 * time.Second
	defaultBackoffMulti   = 2
	defaultMaxBackoff     = 10 * time.Second
)

// RetryableError signals that the operation can be retried.
type RetryableError struct {
	StatusCode int
	Body       string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// WithRetry executes fn with exponential backoff on RetryableError.
func WithRetry(ctx context.Context, fn func() error) error {
	return withRetry(ctx, defaultInitialBackoff, fn)
}

func withRetry(ctx context.Context, initial time.Duration, fn func() error) error {
	var lastErr error
	backoff := initial

	for attempt := 1; attempt <= defaultMaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var re *RetryableError
		if !errors.As(err, &re) {
			return err
		}
		lastErr = err

		if attempt < defaultMaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= time.Duration(defaultBackoffMulti)
			if backoff > defaultMaxBackoff {
				backoff = defaultMaxBackoff
			}
		}
	}

	return lastErr
}

// Config selects and configures a provider.
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	AgentVoice  string
	FarmerVoice string
	Speed       float64
	Region      string // AWS region for Polly
}

// NewProvider creates a TTS provider by name.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "elevenlabs":
		return NewElevenLabsProvider(cfg), nil
	case "google":
		return NewGoogleProvider(ctx, cfg)
	case "polly":
		return NewPollyProvider(ctx, cfg)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: choose elevenlabs, google, polly, or mock", cfg.Provider)
	}
}
