package validators

import (
	"strings"
	"unicode"
)

// SanitizeOptional normalises free-text input: control characters other than
// newline and tab are dropped, surrounding space trimmed, and the result capped
// at maxRunes characters. Blank input becomes nil.
func SanitizeOptional(s *string, maxRunes int) *string {
	if s == nil {
		return nil
	}
	cleaned := strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, *s))
	if cleaned == "" {
		return nil
	}
	if maxRunes > 0 {
		if runes := []rune(cleaned); len(runes) > maxRunes {
			cleaned = strings.TrimSpace(string(runes[:maxRunes]))
		}
	}
	return &cleaned
}
