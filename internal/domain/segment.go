package domain

import (
	"strings"
	"unicode"
)

// LastSentence returns the last sentence segment of buffer. Segments end at
// '.', '!' or '?' followed by whitespace, or at a full-width '。', '！', '？'.
// Without any terminal punctuation the whole buffer is returned.
func LastSentence(buffer string) string {
	text := strings.TrimSpace(buffer)
	if text == "" {
		return ""
	}

	runes := []rune(text)
	start := 0
	last := ""
	for i, r := range runes {
		boundary := false
		switch r {
		case '。', '！', '？':
			boundary = true
		case '.', '!', '?':
			boundary = i+1 < len(runes) && unicode.IsSpace(runes[i+1])
		}
		if !boundary {
			continue
		}
		if seg := strings.TrimSpace(string(runes[start : i+1])); seg != "" {
			last = seg
		}
		start = i + 1
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		return tail
	}
	return last
}
