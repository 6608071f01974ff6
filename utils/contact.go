package utils

import (
	"strings"
	"unicode"
)

// NormalizeEmail lowercases and trims an email for case-insensitive comparison
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MobileDigits keeps only the digits of a phone number so that
// "+1 (555) 010-2030" and "15550102030" compare equal
func MobileDigits(mobile string) string {
	var b strings.Builder
	b.Grow(len(mobile))
	for _, r := range mobile {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeName lowercases and collapses internal whitespace
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// NormalizeCertificateID compares registration numbers case-insensitively
func NormalizeCertificateID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// LooksLikeEmail is a cheap pre-check used to skip mobile matching
func LooksLikeEmail(contact string) bool {
	at := strings.IndexByte(contact, '@')
	return at > 0 && at < len(contact)-1
}

// MaskEmail hides most of the local part: "jane.doe@x.org" -> "j***e@x.org"
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return ""
	}
	local := []rune(email[:at])
	if len(local) <= 2 {
		return string(local[0]) + "***" + email[at:]
	}
	return string(local[0]) + "***" + string(local[len(local)-1]) + email[at:]
}

// MaskContact masks a verification contact for logs: emails keep their
// domain, anything else keeps initials only
func MaskContact(contact string) string {
	if LooksLikeEmail(contact) {
		return MaskEmail(contact)
	}
	return MaskName(contact)
}

// MaskName keeps initials only: "Jane Doe" -> "J*** D***"
func MaskName(name string) string {
	parts := strings.Fields(name)
	for i, p := range parts {
		r := []rune(p)
		if unicode.IsLetter(r[0]) || unicode.IsDigit(r[0]) {
			parts[i] = string(r[0]) + "***"
		} else {
			parts[i] = "***"
		}
	}
	return strings.Join(parts, " ")
}
