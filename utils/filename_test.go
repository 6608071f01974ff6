package utils

import "testing"

func TestCertificateFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		template, id, want string
	}{
		{"Annual Summit 2024", "REG-001", "Annual-Summit-2024-REG-001.pdf"},
		{"Конференция 2026", "ATT-1", "Конференция-2026-ATT-1.pdf"},
		{"東京 サミット", "A/1", "東京-サミット-A1.pdf"},
		{`Bad "quotes"; here`, "X", "Bad-quotes-here-X.pdf"},
		{"  ", "ATT-1", "certificate-ATT-1.pdf"},
		{"Summit", "", "Summit.pdf"},
	}
	for _, tt := range tests {
		if got := CertificateFilename(tt.template, tt.id); got != tt.want {
			t.Errorf("CertificateFilename(%q, %q): expected %q, got %q", tt.template, tt.id, tt.want, got)
		}
	}
	if got := PreviewFilename("Summit", "ATT-1"); got != "Summit-ATT-1.png" {
		t.Errorf("Expected Summit-ATT-1.png, got %s", got)
	}
}

func TestASCIIFilename(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Summit-ATT-1.pdf":           "Summit-ATT-1.pdf",
		"Конференция-2026-ATT-1.pdf": "2026-ATT-1.pdf",
		"Café-Noir-ATT-1.pdf":        "Caf-Noir-ATT-1.pdf",
		"東京.pdf":                     "certificate.pdf",
	}
	for in, want := range tests {
		if got := ASCIIFilename(in); got != want {
			t.Errorf("ASCIIFilename(%q): expected %q, got %q", in, want, got)
		}
	}
	if IsASCII("東京") || !IsASCII("Tokyo-1.pdf") {
		t.Error("Expected IsASCII to tell scripts apart")
	}
}
