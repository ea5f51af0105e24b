package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

const (
	pollyDefaultVoiceAgent  = "Kajal"
	pollyDefaultVoiceFarmer = "Aditi"
)

// pollyEngines maps the Hindi voices to the engine each supports.
var pollyEngines = map[string]types.Engine{
	"Kajal": types.EngineNeural,
	"Aditi": types.EngineStandard,
}

type pollyAPI interface {
	SynthesizeSpeech(ctx context.Context, in *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyProvider implements Provider using Amazon Polly Hindi voices.
type PollyProvider struct {
	voices VoiceMap
	client pollyAPI
}

func NewPollyProvider(ctx context.Context, cfg Config) (*PollyProvider, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for Polly: %w", err)
	}
	return newPollyProvider(polly.NewFromConfig(awsCfg), cfg), nil
}

func newPollyProvider(client pollyAPI, cfg Config) *PollyProvider {
	agent := pollyDefaultVoiceAgent
	farmer := pollyDefaultVoiceFarmer
	if cfg.AgentVoice != "" {
		agent = cfg.AgentVoice
	}
	if cfg.FarmerVoice != "" {
		farmer = cfg.FarmerVoice
	}
	return &PollyProvider{
		voices: VoiceMap{
			Agent:  Voice{ID: agent, Name: agent},
			Farmer: Voice{ID: farmer, Name: farmer},
		},
		client: client,
	}
}

func (p *PollyProvider) Name() string { return "polly" }

func (p *PollyProvider) DefaultVoices() VoiceMap { return p.voices }

func (p *PollyProvider) Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error) {
	engine, ok := pollyEngines[voice.ID]
	if !ok {
		engine = types.EngineStandard
	}

	resp, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: types.OutputFormatMp3,
		SampleRate:   aws.String("22050"),
		Text:         aws.String(text),
		TextType:     types.TextTypeText,
		VoiceId:      types.VoiceId(voice.ID),
		LanguageCode: types.LanguageCodeHiIn,
	})
	if err != nil {
		return AudioResult{}, fmt.Errorf("Polly synthesize: %w", err)
	}
	defer resp.AudioStream.Close()

	data, err := io.ReadAll(resp.AudioStream)
	if err != nil {
		return AudioResult{}, fmt.Errorf("Polly read audio: %w", err)
	}
	return AudioResult{Data: data, Format: FormatMP3}, nil
}

func (p *PollyProvider) Close() error { return nil }

func pollyAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "Kajal", Name: "Kajal", Gender: "female", Description: "hi-IN, Neural", DefaultFor: "agent"},
		{ID: "Aditi", Name: "Aditi", Gender: "female", Description: "hi-IN, Standard", DefaultFor: "farmer"},
	}
}
