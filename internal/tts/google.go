package tts

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
)

const (
	googleLanguageCode       = "hi-IN"
	googleDefaultVoiceAgent  = "hi-IN-Wavenet-B"
	googleDefaultVoiceFarmer = "hi-IN-Wavenet-C"
)

// GoogleProvider implements Provider using Google Cloud TTS Hindi voices.
type GoogleProvider struct {
	voices VoiceMap
	client *texttospeech.Client
	speed  float64
}

func NewGoogleProvider(ctx context.Context, cfg Config) (*GoogleProvider, error) {
	agent := googleDefaultVoiceAgent
	farmer := googleDefaultVoiceFarmer
	if cfg.AgentVoice != "" {
		agent = cfg.AgentVoice
	}
	if cfg.FarmerVoice != "" {
		farmer = cfg.FarmerVoice
	}

	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create Google TTS client: %w", err)
	}

	return &GoogleProvider{
		voices: VoiceMap{
			Agent:  Voice{ID: agent, Name: "Wavenet B"},
			Farmer: Voice{ID: farmer, Name: "Wavenet C"},
		},
		client: client,
		speed:  cfg.Speed,
	}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) DefaultVoices() VoiceMap { return p.voices }

func (p *GoogleProvider) Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error) {
	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: googleLanguageCode,
			Name:         voice.ID,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			SpeakingRate:  p.speed,
		},
	}

	resp, err := p.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return AudioResult{}, fmt.Errorf("Google TTS synthesize: %w", err)
	}
	return AudioResult{Data: resp.AudioContent, Format: FormatMP3}, nil
}

func (p *GoogleProvider) Close() error { return p.client.Close() }

func googleAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: "hi-IN-Wavenet-B", Name: "Wavenet B", Gender: "male", Description: "Clear Hindi male voice", DefaultFor: "agent"},
		{ID: "hi-IN-Wavenet-C", Name: "Wavenet C", Gender: "male", Description: "Deeper Hindi male voice", DefaultFor: "farmer"},
		{ID: "hi-IN-Wavenet-A", Name: "Wavenet A", Gender: "female", Description: "Warm Hindi female voice"},
		{ID: "hi-IN-Wavenet-D", Name: "Wavenet D", Gender: "female", Description: "Bright Hindi female voice"},
		{ID: "hi-IN-Neural2-B", Name: "Neural2 B", Gender: "male", Description: "Natural Hindi male voice"},
		{ID: "hi-IN-Neural2-A", Name: "Neural2 A", Gender: "female", Description: "Natural Hindi female voice"},
	}
}
