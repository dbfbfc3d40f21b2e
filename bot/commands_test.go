package bot

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateWishShortWishUntouched(t *testing.T) {
	assert.Equal(t, "a pony 🎂", truncateWish("a pony 🎂"))
	assert.Equal(t, "", truncateWish(""))
}

func TestTruncateWishCapsAtLimit(t *testing.T) {
	long := strings.Repeat("x", maxWishLength+50)
	got := truncateWish(long)
	assert.Len(t, got, maxWishLength)
}

func TestTruncateWishNeverSplitsARune(t *testing.T) {
	// 🎂 is four bytes; a byte-wise cut at any limit not divisible by
	// four would leave the stored wish as invalid UTF-8.
	long := strings.Repeat("🎂", maxWishLength+10)
	got := truncateWish(long)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, maxWishLength, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "🎂"))
}
