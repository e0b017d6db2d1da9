// Package sanitize normalises free text before it reaches a collaborator or a
// response body.
package sanitize

import (
	"strings"
	"unicode"
)

// Text drops every non-printable rune from s, trims surrounding whitespace and
// returns fallback when nothing is left.
func Text(s, fallback string) string {
	clean := strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s))
	if clean == "" {
		return fallback
	}
	return clean
}

// Optional treats a nil pointer as the empty string.
func Optional(s *string, fallback string) string {
	if s == nil {
		return Text("", fallback)
	}
	return Text(*s, fallback)
}

// Maybe returns nil when s sanitizes to nothing.
func Maybe(s string) *string {
	clean := Text(s, "")
	if clean == "" {
		return nil
	}
	return &clean
}
