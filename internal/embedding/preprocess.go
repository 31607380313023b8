package embedding

import (
	"regexp"
	"strings"
)

const (
	// maxChars approximates the encoder's token window. Korean text runs
	// roughly 1.5 tokens per character, so 2x the window is conservative.
	maxChars = 1024

	// shortTextLimit is the significant-character count under which a memo
	// gets the disambiguating prefix.
	shortTextLimit = 10

	shortMemoPrefix = "짧은 메모: "
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	urlRe        = regexp.MustCompile(`https?://[^\s]+`)
)

// Preprocess normalizes raw note text for encoding: collapses whitespace
// runs, replaces URLs with a sentinel token, and truncates to the model's
// character budget. Returns "" for input with no significant content.
func Preprocess(body string) string {
	text := strings.TrimSpace(body)
	if text == "" {
		return ""
	}

	text = urlRe.ReplaceAllString(text, "[URL]")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if runes := []rune(text); len(runes) > maxChars {
		text = string(runes[:maxChars])
	}

	return text
}

// AugmentShort prefixes very short memos so the encoder does not confuse
// them with fragments of longer documents.
func AugmentShort(text string) string {
	if text == "" {
		return ""
	}
	if len([]rune(strings.TrimSpace(text))) < shortTextLimit {
		return shortMemoPrefix + text
	}
	return text
}
