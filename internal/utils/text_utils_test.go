package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))

	assert.Equal(t, "short", tp.TruncateText("short", 10))
	assert.Equal(t, "unlimited", tp.TruncateText("unlimited", 0))
	assert.Equal(t, "abcde"+truncationMarker, tp.TruncateText("abcdefghij", 5))

	// The cut never splits a multi-byte rune
	out := tp.TruncateText("ab€cd", 4)
	assert.Equal(t, "ab"+truncationMarker, out)
	assert.True(t, utf8.ValidString(out))

	long := strings.Repeat("x", 3000)
	assert.Len(t, tp.TruncateText(long, 2000), 2000+len(truncationMarker))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zaptest.NewLogger(t))

	assert.Equal(t, "Yes = 80", tp.SanitizeUTF8("Yes = 80"))
	assert.Equal(t, "Yes = 80", tp.SanitizeUTF8("Yes \xff= 80"))
	assert.Equal(t, "  keeps spacing \n", tp.SanitizeUTF8("  keeps spacing \n"))
}
