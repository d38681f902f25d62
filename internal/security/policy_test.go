package security

import "testing"

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"valid", "Abcdef12", nil},
		{"valid long", "correct Horse battery 9", nil},
		{"too short", "Abcde12", ErrPasswordTooShort},
		{"empty", "", ErrPasswordTooShort},
		{"no uppercase", "abcdef12", ErrPasswordNoUpper},
		{"no digit", "Abcdefgh", ErrPasswordNoDigit},
		{"symbols not required", "Abcdefg1", nil},
		{"multibyte counts runes", "Äbcdefg1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidatePassword(tt.password); got != tt.want {
				t.Errorf("ValidatePassword(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}
