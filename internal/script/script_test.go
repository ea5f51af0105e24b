package script

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/callcoach/internal/apperr"
)

func TestInitialScript(t *testing.T) {
	s := Initial()
	assert.Equal(t, 1, s.Version)
	assert.Len(t, s.Benefits, 3)
	assert.Equal(t, DefaultTone, s.ToneInstructions)
	assert.Equal(t, DefaultStyle, s.ConversationStyle)
	assert.Empty(t, s.ImprovementLog)
	require.NoError(t, s.Validate())
}

func TestNewRejectsEmptyIntro(t *testing.T) {
	_, err := New(Content{Intro: "  ", CallToAction: "Sunenge?"})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestOpeningLine(t *testing.T) {
	s, err := New(Content{
		Intro:        "Namaste ji.",
		Benefits:     []string{"Subsidy", "Kam bill"},
		CallToAction: "Baat karein?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Namaste ji. Main benefits ye hain: Subsidy. Kam bill. Baat karein?", s.OpeningLine())

	s.Benefits = nil
	assert.Equal(t, "Namaste ji. Baat karein?", s.OpeningLine())
}

func TestNextIsAppendOnly(t *testing.T) {
	s := Initial()
	c := s.Content()
	c.Intro = "Naya intro"

	next := s.Next(c, "note one")
	assert.Equal(t, 2, next.Version)
	assert.Equal(t, []string{"note one"}, next.ImprovementLog)
	assert.Equal(t, "Naya intro", next.Intro)

	// predecessor untouched
	assert.Equal(t, 1, s.Version)
	assert.Empty(t, s.ImprovementLog)
	assert.NotEqual(t, "Naya intro", s.Intro)

	third := next.Next(next.Content())
	assert.Equal(t, 3, third.Version)
	assert.Equal(t, next.ImprovementLog, third.ImprovementLog)
}

func TestContentIsDeepCopy(t *testing.T) {
	s := Initial()
	c := s.Content()
	c.Benefits[0] = "changed"
	assert.NotEqual(t, "changed", s.Benefits[0])
}

func TestSaveLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.json")
	s := Initial().Next(Initial().Content(), "Added trust statement")
	require.NoError(t, SaveScript(s, path))

	loaded, err := LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestVersionLog(t *testing.T) {
	initial := Initial()
	log := NewVersionLog(initial)
	assert.Equal(t, 1, log.Len())

	v2 := initial.Next(initial.Content(), "a", "b")
	require.NoError(t, log.Append(v2, "rules"))

	v3 := v2.Next(v2.Content())
	require.NoError(t, log.Append(v3, "rules"))

	revs := log.Revisions()
	require.Len(t, revs, 3)
	assert.Equal(t, []string{"a", "b"}, revs[1].Notes)
	assert.Empty(t, revs[2].Notes)
	assert.Equal(t, 3, log.Current().Version)
}

func TestVersionLogRejectsSkippedVersion(t *testing.T) {
	initial := Initial()
	log := NewVersionLog(initial)

	skipped := initial.Next(initial.Content()).Next(initial.Content())
	assert.Error(t, log.Append(skipped, "rules"))
	assert.Equal(t, 1, log.Len())
}

func TestVersionLogRejectsRewrittenNotes(t *testing.T) {
	initial := Initial()
	log := NewVersionLog(initial)
	v2 := initial.Next(initial.Content(), "a")
	require.NoError(t, log.Append(v2, "rules"))

	bad := v2.Next(v2.Content(), "b")
	bad.ImprovementLog[0] = "rewritten"
	assert.Error(t, log.Append(bad, "rules"))
}
