package utils

import "testing"

func TestMaskContact(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"jane.doe@example.org": "j***e@example.org",
		"Jane Doe":             "J*** D***",
		"ATT-0042":             "A***",
		"+44 20 7946 0000":     "*** 2*** 7*** 0***",
		"":                     "",
	}
	for in, want := range tests {
		if got := MaskContact(in); got != want {
			t.Errorf("MaskContact(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestMobileDigits(t *testing.T) {
	t.Parallel()

	if got := MobileDigits("+44 (20) 7946-0000"); got != "442079460000" {
		t.Errorf("Expected 442079460000, got %s", got)
	}
	if got := NormalizeEmail("  Jane.Doe@Example.ORG "); got != "jane.doe@example.org" {
		t.Errorf("Expected a lowercased email, got %s", got)
	}
}
