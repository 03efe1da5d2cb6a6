package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitReturnsSingleChunkWhenUnderLimit(t *testing.T) {
	chunks := Split("short message", 4096)
	assert.Equal(t, []string{"short message"}, chunks)
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40)
	chunks := Split(text, 50)
	require := assert.New(t)
	require.True(len(chunks) >= 2)
	require.True(strings.HasSuffix(chunks[0], "\n\n"))
}

func TestSplitFallsBackToSentenceBoundary(t *testing.T) {
	text := strings.Repeat("x", 30) + ". " + strings.Repeat("y", 30)
	chunks := Split(text, 40)
	assert.True(t, strings.HasSuffix(chunks[0], ". "))
}

func TestSplitNeverCutsBeforeHalfway(t *testing.T) {
	// A boundary right at the start of the window must not produce a tiny
	// first chunk; it should fall through to a later or hard boundary.
	text := "a\n" + strings.Repeat("b", 100)
	chunks := Split(text, 50)
	assert.True(t, len(chunks[0]) >= 25, "first chunk should not be tiny: %q", chunks[0])
}

func TestSplitHardSplitsWhenNoBoundaryExists(t *testing.T) {
	text := strings.Repeat("z", 100)
	chunks := Split(text, 30)
	assert.Len(t, chunks, 4)
	for _, c := range chunks[:3] {
		assert.Len(t, c, 30)
	}
}

func TestSplitReassemblesToOriginalText(t *testing.T) {
	text := strings.Repeat("word ", 200)
	chunks := Split(text, 100)
	assert.Equal(t, text, strings.Join(chunks, ""))
}
