// Package config loads callcoach settings from YAML, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/apresai/callcoach/internal/apperr"
	"github.com/apresai/callcoach/internal/llm"
	"github.com/apresai/callcoach/internal/observability"
	"github.com/apresai/callcoach/internal/tts"
)

// ProviderNone disables the model or the TTS collaborator.
const ProviderNone = "none"

type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Dialogue DialogueConfig `yaml:"dialogue"`
	Learning LearningConfig `yaml:"learning"`
	TTS      TTSConfig      `yaml:"tts"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Report   ReportConfig   `yaml:"report"`
	Secrets  SecretsConfig  `yaml:"secrets"`
	Logging  LoggingConfig  `yaml:"logging"`

	PersonasFile  string `yaml:"personas_file"`
	TemplatesFile string `yaml:"templates_file"`
	LexiconFile   string `yaml:"lexicon_file"`

	// Keys only ever come from the environment or Secrets Manager.
	Keys Keys `yaml:"-"`
}

type ModelConfig struct {
	Provider    string        `yaml:"provider"` // none, claude, openai, gemini, nova
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	Region      string        `yaml:"region"`
	MaxAttempts int           `yaml:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout"`
}

type DialogueConfig struct {
	MaxTurns int `yaml:"max_turns"`
}

type LearningConfig struct {
	Iterations          int  `yaml:"iterations"`
	UseModelAnalysis    bool `yaml:"use_model_analysis"`
	UseModelImprovement bool `yaml:"use_model_improvement"`
	UseModelCounterpart bool `yaml:"use_model_counterpart"`
}

type TTSConfig struct {
	Provider    string  `yaml:"provider"` // none, mock, elevenlabs, google, polly
	AgentVoice  string  `yaml:"agent_voice"`
	FarmerVoice string  `yaml:"farmer_voice"`
	Speed       float64 `yaml:"speed"`
	OutputDir   string  `yaml:"output_dir"`
	Assemble    bool    `yaml:"assemble"`
	CacheMB     int64   `yaml:"cache_mb"`
	Region      string  `yaml:"region"`
}

type StorageConfig struct {
	Path string `yaml:"path"` // empty disables persistence
	// DynamoTable, when set, also archives every call to DynamoDB.
	DynamoTable string `yaml:"dynamodb_table"`
	Region      string `yaml:"region"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

type ReportConfig struct {
	OutputDir string `yaml:"output_dir"`
	S3Bucket  string `yaml:"s3_bucket"`
	S3Prefix  string `yaml:"s3_prefix"`
	Region    string `yaml:"region"`
}

type SecretsConfig struct {
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Keys holds provider API keys.
type Keys struct {
	Anthropic  string
	OpenAI     string
	Gemini     string
	ElevenLabs string
}

// Default returns the built-in settings: five calls of at most five turns,
// rule-based everything, no audio.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Provider:    ProviderNone,
			MaxAttempts: 3,
			Timeout:     60 * time.Second,
		},
		Dialogue: DialogueConfig{MaxTurns: 5},
		Learning: LearningConfig{
			Iterations:          5,
			UseModelAnalysis:    true,
			UseModelImprovement: true,
		},
		TTS: TTSConfig{
			Provider:  ProviderNone,
			Speed:     1.0,
			OutputDir: "output/audio",
			CacheMB:   64,
		},
		Storage: StorageConfig{Path: "callcoach.db"},
		Report: ReportConfig{
			OutputDir: "output",
			S3Prefix:  "reports/",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then .env and process environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	c.Keys.Anthropic = firstNonEmpty(getenv("ANTHROPIC_API_KEY"), c.Keys.Anthropic)
	c.Keys.OpenAI = firstNonEmpty(getenv("OPENAI_API_KEY"), c.Keys.OpenAI)
	c.Keys.Gemini = firstNonEmpty(getenv("GEMINI_API_KEY"), c.Keys.Gemini)
	c.Keys.ElevenLabs = firstNonEmpty(getenv("ELEVENLABS_API_KEY"), c.Keys.ElevenLabs)

	c.Model.Provider = firstNonEmpty(getenv("CALLCOACH_MODEL_PROVIDER"), c.Model.Provider)
	c.Model.Model = firstNonEmpty(getenv("CALLCOACH_MODEL"), c.Model.Model)
	c.TTS.Provider = firstNonEmpty(getenv("CALLCOACH_TTS_PROVIDER"), c.TTS.Provider)
	c.TTS.AgentVoice = firstNonEmpty(getenv("ELEVENLABS_VOICE_ID"), c.TTS.AgentVoice)
	c.Storage.Path = firstNonEmpty(getenv("CALLCOACH_DB"), c.Storage.Path)
	c.Storage.DynamoTable = firstNonEmpty(getenv("CALLCOACH_DYNAMODB_TABLE"), c.Storage.DynamoTable)
	c.Report.OutputDir = firstNonEmpty(getenv("CALLCOACH_OUTPUT_DIR"), c.Report.OutputDir)
	c.Logging.Level = firstNonEmpty(getenv("CALLCOACH_LOG_LEVEL"), c.Logging.Level)

	if v := getenv("CALLCOACH_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return apperr.Invalid("CALLCOACH_ITERATIONS", v, "must be an integer")
		}
		c.Learning.Iterations = n
	}
	return nil
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	switch c.Model.Provider {
	case ProviderNone, llm.ProviderClaude, llm.ProviderOpenAI, llm.ProviderGemini, llm.ProviderNova:
	default:
		return apperr.Invalid("model.provider", c.Model.Provider, "must be none, claude, openai, gemini or nova")
	}
	switch c.TTS.Provider {
	case ProviderNone, "mock", "elevenlabs", "google", "polly":
	default:
		return apperr.Invalid("tts.provider", c.TTS.Provider, "must be none, mock, elevenlabs, google or polly")
	}
	if c.Dialogue.MaxTurns < 1 {
		return apperr.Invalid("dialogue.max_turns", c.Dialogue.MaxTurns, "must be at least 1")
	}
	if c.Learning.Iterations < 1 {
		return apperr.Invalid("learning.iterations", c.Learning.Iterations, "must be at least 1")
	}
	if c.Model.MaxAttempts < 1 {
		return apperr.Invalid("model.max_attempts", c.Model.MaxAttempts, "must be at least 1")
	}
	if c.TTS.Speed <= 0 || c.TTS.Speed > 4 {
		return apperr.Invalid("tts.speed", c.TTS.Speed, "must be in (0, 4]")
	}
	if c.TTS.CacheMB < 0 {
		return apperr.Invalid("tts.cache_mb", c.TTS.CacheMB, "must not be negative")
	}
	if _, err := observability.ParseLevel(c.Logging.Level); err != nil {
		return apperr.Invalid("logging.level", c.Logging.Level, "must be debug, info, warn or error")
	}
	if c.Report.S3Bucket != "" && strings.TrimSpace(c.Report.OutputDir) == "" {
		return apperr.Invalid("report.output_dir", c.Report.OutputDir, "is required when uploading reports")
	}
	return nil
}

// ModelEnabled reports whether a model provider is configured.
func (c Config) ModelEnabled() bool { return c.Model.Provider != ProviderNone }

// TTSEnabled reports whether utterances are synthesized.
func (c Config) TTSEnabled() bool { return c.TTS.Provider != ProviderNone }

// LLM returns the completer settings for the configured provider.
func (c Config) LLM() llm.Config {
	cfg := llm.Config{
		Provider:    c.Model.Provider,
		Model:       c.Model.Model,
		BaseURL:     c.Model.BaseURL,
		Region:      c.Model.Region,
		MaxAttempts: c.Model.MaxAttempts,
		Timeout:     c.Model.Timeout,
	}
	switch c.Model.Provider {
	case llm.ProviderClaude:
		cfg.APIKey = c.Keys.Anthropic
	case llm.ProviderOpenAI:
		cfg.APIKey = c.Keys.OpenAI
	case llm.ProviderGemini:
		cfg.APIKey = c.Keys.Gemini
	}
	return cfg
}

// Speech returns the TTS provider settings.
func (c Config) Speech() tts.Config {
	cfg := tts.Config{
		Provider:    c.TTS.Provider,
		AgentVoice:  c.TTS.AgentVoice,
		FarmerVoice: c.TTS.FarmerVoice,
		Speed:       c.TTS.Speed,
		Region:      c.TTS.Region,
	}
	if c.TTS.Provider == "elevenlabs" {
		cfg.APIKey = c.Keys.ElevenLabs
	}
	return cfg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
