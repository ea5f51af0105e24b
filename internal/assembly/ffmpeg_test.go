package assembly

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConcatList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "concat.txt")
	clips := []string{filepath.Join(dir, "a.mp3"), filepath.Join(dir, "farmer's.mp3")}
	gap := filepath.Join(dir, "gap.mp3")

	require.NoError(t, buildConcatList(clips, gap, list))

	data, err := os.ReadFile(list)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "file '"+clips[0]+"'", lines[0])
	assert.Equal(t, "file '"+gap+"'", lines[1])
	assert.Contains(t, lines[2], `farmer'\''s.mp3`)
}

func TestArgs(t *testing.T) {
	assert.Contains(t, strings.Join(silenceArgs("gap.mp3"), " "), "anullsrc=r=44100:cl=mono")
	args := concatArgs("list.txt", "out.mp3")
	assert.Equal(t, "out.mp3", args[len(args)-1])
	assert.Contains(t, args, "concat")
}

func TestAssembleNoClips(t *testing.T) {
	err := NewFFmpegAssembler().Assemble(context.Background(), nil, t.TempDir(), "out.mp3")
	assert.ErrorContains(t, err, "no audio clips")
}

func TestAssembleWithoutFFmpeg(t *testing.T) {
	a := &FFmpegAssembler{bin: "ffmpeg-does-not-exist"}
	err := a.Assemble(context.Background(), []string{"a.mp3"}, t.TempDir(), "out.mp3")
	assert.ErrorIs(t, err, ErrNoFFmpeg)
}
