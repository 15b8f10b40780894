package pipeline

import (
	"strings"
	"unicode/utf8"
)

// SplitChunks cuts text into pieces of at most max bytes, preferring to break
// at a blank line, then at a sentence end, before cutting mid-line. Chunk
// order follows document order; the merge step depends on that.
func SplitChunks(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if max <= 0 || len(text) <= max {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + max
		if end >= len(text) {
			end = len(text)
		} else {
			// never cut a rune in half
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			window := text[start:end]
			if i := strings.LastIndex(window, "\n\n"); i > 0 {
				end = start + i
			} else if i := strings.LastIndex(window, ". "); i > 0 {
				end = start + i + 1
			}
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		start = end
		for start < len(text) && (text[start] == '\n' || text[start] == ' ' || text[start] == '\t' || text[start] == '\r') {
			start++
		}
	}
	return chunks
}
