// Package notify implements the Notification Channel (spec §4.9):
// fire-and-forget, rate-limited delivery of user-visible progress text over
// a pluggable transport, splitting oversized messages on content-aware
// boundaries rather than a hard byte cut.
package notify

import (
	"strings"
)

// Split breaks text into chunks of at most maxChars, preferring to split on
// paragraph boundaries, then line boundaries, then sentence terminators,
// then word boundaries, falling back to a hard split only as a last resort.
// A candidate boundary is only used if it falls after the 50%-of-chunk mark,
// so a boundary near the very start of a window never produces a tiny piece
// (spec §4.9).
func Split(text string, maxChars int) []string {
	if maxChars <= 0 {
		return []string{text}
	}
	var chunks []string
	for len(text) > maxChars {
		cut := bestBoundary(text, maxChars)
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// bestBoundary finds where to cut text (len(text) > maxChars) so that the
// first piece ends on the best available boundary at or before maxChars,
// provided that boundary falls after the halfway point of the window.
func bestBoundary(text string, maxChars int) int {
	window := text[:maxChars]
	half := maxChars / 2

	if cut := lastIndexAfter(window, "\n\n", half); cut > 0 {
		return cut
	}
	if cut := lastIndexAfter(window, "\n", half); cut > 0 {
		return cut
	}
	if cut := lastSentenceBoundary(window, half); cut > 0 {
		return cut
	}
	if cut := lastIndexAfter(window, " ", half); cut > 0 {
		return cut
	}
	return maxChars
}

// lastIndexAfter returns the index just past the last occurrence of sep in
// window, if that occurrence starts at or after minIndex; otherwise 0.
func lastIndexAfter(window, sep string, minIndex int) int {
	idx := strings.LastIndex(window, sep)
	if idx < minIndex {
		return 0
	}
	return idx + len(sep)
}

func lastSentenceBoundary(window string, minIndex int) int {
	best := 0
	for _, term := range []string{". ", "! ", "? "} {
		if cut := lastIndexAfter(window, term, minIndex); cut > best {
			best = cut
		}
	}
	return best
}
