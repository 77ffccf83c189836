// Package textx contains tests for the text utilities.
package textx

import "testing"

func TestSanitizeText(t *testing.T) {
	in := "he\x00llo\nwo\x7frld\t!"
	got := SanitizeText(in)
	if got != "hello\nworld\t!" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestSplitSentencesShortText(t *testing.T) {
	got := SplitSentences("短文本。", 100)
	if len(got) != 1 || got[0] != "短文本。" {
		t.Fatalf("unexpected: %#v", got)
	}
}

func TestSplitSentencesRespectsBoundaries(t *testing.T) {
	text := "第一句话。第二句话！第三句话？"
	got := SplitSentences(text, 6)
	if len(got) != 3 {
		t.Fatalf("want 3 chunks, got %d: %#v", len(got), got)
	}
	for _, c := range got {
		last := []rune(c)[len([]rune(c))-1]
		if last != '。' && last != '！' && last != '？' {
			t.Fatalf("chunk does not end on a terminator: %q", c)
		}
	}
}

func TestSplitSentencesOversizedSentence(t *testing.T) {
	// one long sentence with no terminator must come back whole
	text := "aaaaaaaaaaaaaaaaaaaa"
	got := SplitSentences(text, 5)
	if len(got) != 1 || got[0] != text {
		t.Fatalf("unexpected: %#v", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := Truncate("hello world", 6); got != "hello…" {
		t.Fatalf("unexpected: %q", got)
	}
}
