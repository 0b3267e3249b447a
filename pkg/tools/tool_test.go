package tools

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncateRunes(t *testing.T) {
	require.Equal(t, "abc", truncateRunes("abc", 10))
	require.Equal(t, "ab", truncateRunes("abcd", 2))

	// A cut that would land inside a multi-byte rune backs up to its start.
	s := strings.Repeat("é", 10) // 2 bytes per rune
	out := truncateRunes(s, 5)
	require.True(t, utf8.ValidString(out))
	require.Equal(t, strings.Repeat("é", 2), out)

	require.Equal(t, "", truncateRunes("é", 1))
}
