package core

import (
	"strings"
	"unicode"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanUpperString trims `s` and upper-cases it.
func CleanUpperString(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// HumanizeField turns a camelCase field name into a sentence-cased label, e.g. "classLevel" -> "Class level".
func HumanizeField(field string) string {
	if field == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range field {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
