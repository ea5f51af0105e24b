package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io/v1"
	elevenLabsModelID      = "eleven_multilingual_v2"
	elevenLabsOutputFormat = "mp3_44100_128"
)

// elevenLabsVoices are the two multilingual voices a call uses: a clear
// agent voice and an older, rougher farmer voice.
var elevenLabsVoices = VoiceMap{
	Agent:  Voice{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam"},
	Farmer: Voice{ID: "VR6AewLTigWG4xSOukaG", Name: "Arnold"},
}

type elevenLabsRequest struct {
	Text          string                 `json:"text"`
	ModelID       string                 `json:"model_id"`
	VoiceSettings *elevenLabsVoiceParams `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceParams struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
	Speed           float64 `json:"speed"`
}

// ElevenLabsProvider speaks turns through the ElevenLabs text-to-speech API.
type ElevenLabsProvider struct {
	voices     VoiceMap
	apiKey     string
	baseURL    string
	settings   elevenLabsVoiceParams
	httpClient *http.Client
}

func NewElevenLabsProvider(cfg Config) *ElevenLabsProvider {
	voices := elevenLabsVoices
	if cfg.AgentVoice != "" {
		voices.Agent = Voice{ID: cfg.AgentVoice, Name: cfg.AgentVoice}
	}
	if cfg.FarmerVoice != "" {
		voices.Farmer = Voice{ID: cfg.FarmerVoice, Name: cfg.FarmerVoice}
	}
	base := cfg.BaseURL
	if base == "" {
		base = elevenLabsBaseURL
	}
	speed := cfg.Speed
	if speed == 0 {
		speed = 1.0
	}
	settings := elevenLabsVoiceParams{
		Stability:       0.5,
		SimilarityBoost: 0.5,
		Style:           0.3,
		UseSpeakerBoost: true,
		Speed:           speed,
	}
	return &ElevenLabsProvider{
		voices:     voices,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(base, "/"),
		settings:   settings,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *ElevenLabsProvider) Name() string { return "elevenlabs" }

func (p *ElevenLabsProvider) DefaultVoices() VoiceMap { return p.voices }

func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error) {
	req, err := p.newRequest(ctx, text, voice.ID)
	if err != nil {
		return AudioResult{}, err
	}
	res, err := p.httpClient.Do(req)
	if err != nil {
		return AudioResult{}, fmt.Errorf("elevenlabs: send request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	switch {
	case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError:
		return AudioResult{}, &RetryableError{StatusCode: res.StatusCode, Body: string(body)}
	case res.StatusCode != http.StatusOK:
		return AudioResult{}, fmt.Errorf("elevenlabs: status %d: %s", res.StatusCode, body)
	case err != nil:
		return AudioResult{}, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	return AudioResult{Data: body, Format: FormatMP3}, nil
}

func (p *ElevenLabsProvider) newRequest(ctx context.Context, text, voiceID string) (*http.Request, error) {
	settings := p.settings
	payload, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: elevenLabsModelID, VoiceSettings: &settings})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: encode request: %w", err)
	}
	endpoint := p.baseURL + "/text-to-speech/" + url.PathEscape(voiceID) +
		"?" + url.Values{"output_format": {elevenLabsOutputFormat}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (p *ElevenLabsProvider) Close() error { return nil }

func elevenLabsAvailableVoices() []VoiceInfo {
	return []VoiceInfo{
		{ID: elevenLabsVoices.Agent.ID, Name: elevenLabsVoices.Agent.Name, Gender: "male",
			Description: "Clear and confident, reads as a scheme advisor", DefaultFor: "agent"},
		{ID: elevenLabsVoices.Farmer.ID, Name: elevenLabsVoices.Farmer.Name, Gender: "male",
			Description: "Gravelly older voice for rural callers", DefaultFor: "farmer"},
	}
}
