package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ApplyTextCase transforms s the way the editor preview does.
// "capitalize" only raises the first letter of each word and leaves the rest untouched.
func ApplyTextCase(s string, textCase string) string {
	switch textCase {
	case "uppercase":
		return strings.ToUpper(s)
	case "lowercase":
		return strings.ToLower(s)
	case "capitalize":
		return capitalizeWords(s)
	default:
		return s
	}
}

func capitalizeWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	atWordStart := true
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if unicode.IsSpace(r) {
			atWordStart = true
			b.WriteRune(r)
			continue
		}
		if atWordStart {
			r = unicode.ToTitle(r)
			atWordStart = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
