package tts

import (
	"context"
	"sync"
)

// MockProvider returns a tiny placeholder clip for every request. It keeps
// the audio path of a run exercisable without credentials.
type MockProvider struct {
	mu    sync.Mutex
	texts []string
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) DefaultVoices() VoiceMap {
	return VoiceMap{
		Agent:  Voice{ID: "mock-agent", Name: "Agent"},
		Farmer: Voice{ID: "mock-farmer", Name: "Farmer"},
	}
}

func (p *MockProvider) Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error) {
	if err := ctx.Err(); err != nil {
		return AudioResult{}, err
	}
	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.mu.Unlock()

	// ID3v2 header followed by the voice and text, enough for tooling that
	// sniffs the container.
	data := append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), []byte(voice.ID+":"+text)...)
	return AudioResult{Data: data, Format: FormatMP3}, nil
}

// Texts returns every text synthesized so far.
func (p *MockProvider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

func (p *MockProvider) Close() error { return nil }
