package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/apresai/callcoach/internal/dialogue"
)

// FileVoice writes each utterance of one call to
// <dir>/<callID>_<speaker>_turnNN.<ext> and reports the path.
type FileVoice struct {
	provider Provider
	voices   VoiceMap
	dir      string
	callID   string
	logger   *slog.Logger
}

func NewFileVoice(p Provider, voices VoiceMap, dir, callID string, logger *slog.Logger) *FileVoice {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileVoice{provider: p, voices: voices, dir: dir, callID: callID, logger: logger.With("component", "tts")}
}

// Speak implements dialogue.Voice.
func (v *FileVoice) Speak(ctx context.Context, who dialogue.Speaker, turn int, text string) (string, error) {
	voice := v.voices.Agent
	if who == dialogue.SpeakerCounterpart {
		voice = v.voices.Farmer
	}

	var res AudioResult
	err := WithRetry(ctx, func() error {
		var err error
		res, err = v.provider.Synthesize(ctx, text, voice)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%s tts: %w", v.provider.Name(), err)
	}

	if err := os.MkdirAll(v.dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	path := filepath.Join(v.dir, ClipName(v.callID, string(who), turn, res.Format))
	if err := os.WriteFile(path, res.Data, 0o644); err != nil {
		return "", fmt.Errorf("write clip: %w", err)
	}
	v.logger.DebugContext(ctx, "clip written", "path", path, "bytes", len(res.Data))
	return path, nil
}

// ClipName is the file name of one synthesized utterance.
func ClipName(callID, speaker string, turn int, format AudioFormat) string {
	return fmt.Sprintf("%s_%s_turn%02d.%s", callID, speaker, turn, format)
}
