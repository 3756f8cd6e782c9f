package sym

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEveryGlyphIsDescribed(t *testing.T) {
	for _, glyph := range All() {
		assert.NotEmpty(t, Describe(glyph), "glyph %s has no description", glyph)
	}
}

func TestGlyphsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, glyph := range All() {
		assert.False(t, seen[glyph], "duplicate glyph %s", glyph)
		seen[glyph] = true
	}
}

func TestDescribeUnknown(t *testing.T) {
	assert.Equal(t, "", Describe("?"))
}
