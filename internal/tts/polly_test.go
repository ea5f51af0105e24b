package tts

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePolly struct {
	in  *polly.SynthesizeSpeechInput
	err error
}

func (f *fakePolly) SynthesizeSpeech(ctx context.Context, in *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &polly.SynthesizeSpeechOutput{AudioStream: io.NopCloser(strings.NewReader("mp3-bytes"))}, nil
}

func TestPollySynthesize(t *testing.T) {
	fake := &fakePolly{}
	p := newPollyProvider(fake, Config{})

	voices := p.DefaultVoices()
	assert.Equal(t, "Kajal", voices.Agent.ID)
	assert.Equal(t, "Aditi", voices.Farmer.ID)

	res, err := p.Synthesize(context.Background(), "Namaste ji", voices.Agent)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), res.Data)
	assert.Equal(t, FormatMP3, res.Format)

	assert.Equal(t, types.EngineNeural, fake.in.Engine)
	assert.Equal(t, types.LanguageCodeHiIn, fake.in.LanguageCode)
	assert.Equal(t, "Namaste ji", *fake.in.Text)

	_, err = p.Synthesize(context.Background(), "Haan ji", voices.Farmer)
	require.NoError(t, err)
	assert.Equal(t, types.EngineStandard, fake.in.Engine)
}

func TestPollyVoiceOverrideAndError(t *testing.T) {
	fake := &fakePolly{err: errors.New("throttled")}
	p := newPollyProvider(fake, Config{AgentVoice: "Custom"})
	assert.Equal(t, "Custom", p.DefaultVoices().Agent.ID)

	_, err := p.Synthesize(context.Background(), "x", p.DefaultVoices().Agent)
	assert.ErrorContains(t, err, "throttled")

	voices, err := AvailableVoices("polly")
	require.NoError(t, err)
	assert.Len(t, voices, 2)
}
