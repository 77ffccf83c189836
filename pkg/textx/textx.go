// Package textx provides small text utilities used across the project.
package textx

import (
	"strings"
)

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	// strip control chars outside tab/newline/carriage return
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// sentence terminators recognized by SplitSentences, CJK and Latin.
const terminators = "。！？.!?"

// SplitSentences segments text into chunks of at most maxLen runes, cutting
// only on sentence boundaries. A single sentence longer than maxLen is
// emitted as its own oversized chunk rather than split mid-sentence.
func SplitSentences(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxLen <= 0 || len([]rune(text)) <= maxLen {
		return []string{text}
	}

	var sentences []string
	var cur []rune
	for _, r := range text {
		cur = append(cur, r)
		if strings.ContainsRune(terminators, r) {
			if s := strings.TrimSpace(string(cur)); s != "" {
				sentences = append(sentences, s)
			}
			cur = cur[:0]
		}
	}
	if s := strings.TrimSpace(string(cur)); s != "" {
		sentences = append(sentences, s)
	}

	var chunks []string
	var buf []rune
	for _, s := range sentences {
		sr := []rune(s)
		if len(buf)+len(sr) > maxLen && len(buf) > 0 {
			chunks = append(chunks, string(buf))
			buf = buf[:0]
		}
		buf = append(buf, sr...)
	}
	if len(buf) > 0 {
		chunks = append(chunks, string(buf))
	}
	return chunks
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
