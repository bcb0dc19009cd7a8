package chunking

import (
	"strings"

	"github.com/poiesic/vectorpipe/core"
)

// SentenceBoundaryRatio is how far into a window a sentence end must be
// before the window is cut there instead of at the hard boundary.
const SentenceBoundaryRatio = 0.7

// Split cuts text into windows of at most cfg.ChunkSize runes. Consecutive
// windows overlap by cfg.Overlap runes. A window ends after the last '.', '!'
// or '?' inside it when that point lies past SentenceBoundaryRatio of the
// chunk size. Text no longer than ChunkSize is returned as a single chunk.
func Split(text string, cfg core.ChunkConfig) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= cfg.ChunkSize {
		return []string{text}
	}

	minBoundary := int(float64(cfg.ChunkSize) * SentenceBoundaryRatio)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := min(start+cfg.ChunkSize, len(runes))
		if end < len(runes) {
			if cut := lastSentenceEnd(runes[start:end]); cut > minBoundary {
				end = start + cut
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(runes) {
			break
		}
		start = max(end-cfg.Overlap, start+1)
	}
	return chunks
}

// lastSentenceEnd returns the index just past the last sentence-ending
// punctuation in window, or 0 when there is none.
func lastSentenceEnd(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?':
			return i + 1
		}
	}
	return 0
}
