package validation

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"buyer@example.com", true},
		{"a@b.co", true},
		{"first.last+tag@sub.example.org", true},
		{"", false},
		{"no-at-sign", false},
		{"no-domain@", false},
		{"@no-local.com", false},
		{"spaces in@example.com", false},
		{"no-tld@example", false},
	}

	for _, tt := range tests {
		if got := IsValidEmail(tt.email); got != tt.valid {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.valid)
		}
	}
}
