// Package tokencount provides accurate token counting for the Agent Registry's
// token tracker. Ported from the teacher's pkg/utils/tiktoken.go wrapper around
// tiktoken-go/tokenizer, with the same character-count fallback when a model's
// encoding can't be resolved.
package tokencount

import (
	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens for a specific model's encoding.
type Counter struct {
	codec tokenizer.Codec
}

// charsPerTokenEstimate is the fallback ratio used when no codec is available.
const charsPerTokenEstimate = 4

// New creates a Counter for the given model name. Every model maps to the
// GPT-4 encoding today (an approximation for non-OpenAI models); unknown
// names fall back to the same encoding rather than failing, since token
// counting is advisory (it drives WARNING/CRITICAL thresholds, not billing).
func New(model string) *Counter {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return &Counter{}
	}
	_ = model // reserved for future per-model encoding selection
	return &Counter{codec: codec}
}

// Count returns the number of tokens in text, falling back to a character
// estimate if no codec was resolved or the codec errors on this input.
func (c *Counter) Count(text string) int {
	if c == nil || c.codec == nil {
		return len(text) / charsPerTokenEstimate
	}
	n, err := c.codec.Count(text)
	if err != nil {
		return len(text) / charsPerTokenEstimate
	}
	return n
}

// Fits reports whether text's token count is within limit.
func (c *Counter) Fits(text string, limit int) bool {
	return c.Count(text) <= limit
}
