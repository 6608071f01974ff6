package utils

import (
	"path"
	"regexp"
	"strings"
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}._ -]+`)
	nonASCIIFilename    = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	dashRuns            = regexp.MustCompile(`-{2,}`)
)

// SanitizeFilenamePart keeps letters and digits of any script, strips
// characters that break headers or file systems and collapses whitespace
// runs into single dashes
func SanitizeFilenamePart(s string) string {
	s = unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.Join(strings.Fields(s), "-")
	s = strings.Trim(s, ".-")
	return s
}

// ASCIIFilename is the fallback for clients that ignore filename*.
// Example: "Конференция-REG-1.pdf" -> "REG-1.pdf"
func ASCIIFilename(name string) string {
	ext := path.Ext(name)
	base := nonASCIIFilename.ReplaceAllString(strings.TrimSuffix(name, ext), "")
	base = strings.Trim(dashRuns.ReplaceAllString(base, "-"), ".-")
	if base == "" {
		base = "certificate"
	}
	return base + nonASCIIFilename.ReplaceAllString(ext, "")
}

// IsASCII reports whether s needs no RFC 5987 encoding
func IsASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// CertificateFilename builds {templateName}-{certificateId}.pdf
// Example: "Annual Summit 2024", "REG-001" -> "Annual-Summit-2024-REG-001.pdf"
func CertificateFilename(templateName, certificateID string) string {
	return certificateBase(templateName, certificateID) + ".pdf"
}

// PreviewFilename is the PNG counterpart of CertificateFilename
func PreviewFilename(templateName, certificateID string) string {
	return certificateBase(templateName, certificateID) + ".png"
}

func certificateBase(templateName, certificateID string) string {
	name := SanitizeFilenamePart(templateName)
	if name == "" {
		name = "certificate"
	}
	id := SanitizeFilenamePart(certificateID)
	if id == "" {
		return name
	}
	return name + "-" + id
}
