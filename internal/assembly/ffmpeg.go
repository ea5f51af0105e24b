// Package assembly stitches the per-utterance clips of a call into a single
// recording with FFmpeg.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Audio settings for the assembled call recording. Phone audio is mono.
const (
	AudioBitrate    = "128k"
	AudioSampleRate = "44100"
	AudioChannels   = "1"
	AudioCodec      = "libmp3lame"
	AudioQuality    = "2"
	AudioResampler  = "aresample=resampler=soxr"

	// TurnGap is the pause inserted between consecutive clips, in seconds.
	TurnGap = "0.4"
)

// ErrNoFFmpeg is returned when the ffmpeg binary is not on PATH.
var ErrNoFFmpeg = errors.New("ffmpeg not found on PATH")

type Assembler interface {
	Assemble(ctx context.Context, clips []string, workDir string, output string) error
}

type FFmpegAssembler struct {
	bin string
}

func NewFFmpegAssembler() *FFmpegAssembler {
	return &FFmpegAssembler{bin: "ffmpeg"}
}

// Available reports whether the ffmpeg binary can be found.
func (a *FFmpegAssembler) Available() bool {
	_, err := exec.LookPath(a.bin)
	return err == nil
}

// Assemble concatenates clips in order, separated by a short pause, into
// output. workDir holds the intermediate silence clip and concat list.
func (a *FFmpegAssembler) Assemble(ctx context.Context, clips []string, workDir string, output string) error {
	if len(clips) == 0 {
		return fmt.Errorf("no audio clips to assemble")
	}
	if !a.Available() {
		return ErrNoFFmpeg
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	silencePath := filepath.Join(workDir, "gap.mp3")
	if err := a.run(ctx, silenceArgs(silencePath)); err != nil {
		return fmt.Errorf("generate silence: %w", err)
	}

	listPath := filepath.Join(workDir, "concat.txt")
	if err := buildConcatList(clips, silencePath, listPath); err != nil {
		return fmt.Errorf("build concat list: %w", err)
	}

	if err := a.run(ctx, concatArgs(listPath, output)); err != nil {
		return fmt.Errorf("ffmpeg concat: %w", err)
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("output file not created: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output file is empty")
	}
	return nil
}

func (a *FFmpegAssembler) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, a.bin, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = nil

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w\n%s", err, stderr.String())
	}
	return nil
}

func silenceArgs(output string) []string {
	return []string{
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%s:cl=mono", AudioSampleRate),
		"-t", TurnGap,
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		"-y",
		output,
	}
}

func concatArgs(listPath, output string) []string {
	return []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-af", AudioResampler,
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		"-q:a", AudioQuality,
		"-ar", AudioSampleRate,
		"-ac", AudioChannels,
		"-y",
		output,
	}
}

func buildConcatList(clips []string, silencePath string, listPath string) error {
	var lines []string
	for i, clip := range clips {
		lines = append(lines, concatEntry(clip))
		if i < len(clips)-1 {
			lines = append(lines, concatEntry(silencePath))
		}
	}

	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(listPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}

// concatEntry quotes path for the concat demuxer, escaping single quotes.
func concatEntry(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file '" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}
