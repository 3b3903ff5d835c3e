package utils

import (
	"regexp"
	"strings"
)

var (
	// Hiragana, Katakana, CJK unified ideographs, ASCII word characters and
	// whitespace survive; everything else is dropped.
	disallowedChars = regexp.MustCompile(`[^\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FFF}\w\s]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
)

// SanitizeText strips disallowed characters, collapses whitespace runs to a
// single space and trims. SanitizeText(SanitizeText(s)) == SanitizeText(s).
func SanitizeText(s string) string {
	s = disallowedChars.ReplaceAllString(s, "")
	s = whitespaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeGender upper-cases a gender code.
func NormalizeGender(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
