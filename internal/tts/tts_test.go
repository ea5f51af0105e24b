package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/callcoach/internal/dialogue"
)

func TestElevenLabsSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text-to-speech/voice-1", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("xi-api-key"))

		var body elevenLabsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "eleven_multilingual_v2", body.ModelID)
		assert.Equal(t, "Namaste ji", body.Text)

		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	p := NewElevenLabsProvider(Config{APIKey: "key", BaseURL: srv.URL})
	res, err := p.Synthesize(context.Background(), "Namaste ji", Voice{ID: "voice-1"})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), res.Data)
	assert.Equal(t, FormatMP3, res.Format)
}

func TestElevenLabsErrors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	p := NewElevenLabsProvider(Config{BaseURL: srv.URL})
	_, err := p.Synthesize(context.Background(), "x", Voice{ID: "v"})
	var re *RetryableError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusServiceUnavailable, re.StatusCode)

	status.Store(http.StatusUnauthorized)
	_, err = p.Synthesize(context.Background(), "x", Voice{ID: "v"})
	require.Error(t, err)
	assert.False(t, errors.As(err, &re))
}

func TestWithRetry(t *testing.T) {
	var calls int
	err := withRetry(context.Background(), time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return &RetryableError{StatusCode: 429}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	terminal := errors.New("bad request")
	err = withRetry(context.Background(), time.Millisecond, func() error {
		calls++
		return terminal
	})
	assert.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, calls)
}

type countingProvider struct {
	*MockProvider
	calls atomic.Int32
}

func (c *countingProvider) Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error) {
	c.calls.Add(1)
	return c.MockProvider.Synthesize(ctx, text, voice)
}

func TestCachedProvider(t *testing.T) {
	inner := &countingProvider{MockProvider: NewMockProvider()}
	c, err := NewCachedProvider(inner, 0)
	require.NoError(t, err)
	defer c.Close()

	voice := Voice{ID: "a"}
	first, err := c.Synthesize(context.Background(), "Namaste", voice)
	require.NoError(t, err)
	c.Wait()

	second, err := c.Synthesize(context.Background(), "Namaste", voice)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())

	_, err = c.Synthesize(context.Background(), "Namaste", Voice{ID: "b"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, "mock", c.Name())
}

func TestFileVoice(t *testing.T) {
	dir := t.TempDir()
	p := NewMockProvider()
	v := NewFileVoice(p, p.DefaultVoices(), dir, "CALL_1", nil)

	path, err := v.Speak(context.Background(), dialogue.SpeakerCounterpart, 3, "Haan ji")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "CALL_1_farmer_turn03.mp3"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mock-farmer:Haan ji")
	assert.Equal(t, []string{"Haan ji"}, p.Texts())
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Provider: "mock"})
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())

	_, err = NewProvider(context.Background(), Config{Provider: "festival"})
	assert.Error(t, err)

	voices, err := AvailableVoices("elevenlabs")
	require.NoError(t, err)
	require.Len(t, voices, 2)
	defaults := NewElevenLabsProvider(Config{}).DefaultVoices()
	assert.Equal(t, defaults.Agent.ID, voices[0].ID)
	assert.Equal(t, "agent", voices[0].DefaultFor)
	assert.Equal(t, defaults.Farmer.ID, voices[1].ID)
	assert.Equal(t, "farmer", voices[1].DefaultFor)
}
