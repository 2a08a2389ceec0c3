package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestModerator(t *testing.T, words ...string) Moderator {
	t.Helper()
	moderator, err := NewModerator(words, '*')
	require.NoError(t, err)
	return moderator
}

func TestModerator_CleanMessagePassesThrough(t *testing.T) {
	req := require.New(t)
	moderator := newTestModerator(t, "idiot")

	verdict := moderator.Review("hello there, how are you?")

	req.Equal("hello there, how are you?", verdict.Clean)
	req.Empty(verdict.CensoredWords)
}

func TestModerator_MasksForbiddenWord(t *testing.T) {
	req := require.New(t)
	moderator := newTestModerator(t, "idiot")

	verdict := moderator.Review("you idiot")

	req.Equal("you *****", verdict.Clean)
	req.Equal([]string{"idiot"}, verdict.CensoredWords)
}

func TestModerator_MasksLeetSpeakVariants(t *testing.T) {
	moderator := newTestModerator(t, "idiot")

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"digit substitution", "1d10t", "*****"},
		{"mixed case", "IdIoT", "*****"},
		{"symbol substitution", "!diot", "*****"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			verdict := moderator.Review(tc.input)
			req.Equal(tc.want, verdict.Clean)
			req.NotEmpty(verdict.CensoredWords)
		})
	}
}

func TestModerator_DetectsLanguage(t *testing.T) {
	req := require.New(t)
	moderator := newTestModerator(t, "idiot")

	verdict := moderator.Review("this is a perfectly reasonable english sentence about nothing")

	req.Equal("en", verdict.Lang)
}

func TestLoadWords_EmbeddedLists(t *testing.T) {
	req := require.New(t)

	list, err := LoadWords()
	req.NoError(err)

	req.Contains(list.Languages, "en")
	req.Contains(list.Languages, "fr")
	req.Contains(list.Words, "idiot")
	req.Contains(list.Words, "cretin")

	// Comment lines never leak into the patterns
	for _, word := range list.Words {
		req.NotEmpty(word)
		req.NotContains(word, "#")
	}
}
