package security

import (
	"errors"
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the minimum number of characters in a password.
const MinPasswordLength = 8

// Password policy failures. Messages are safe to show to the caller.
var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordNoUpper  = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNoDigit  = errors.New("password must contain at least one number")
)

// ValidatePassword applies the password policy: at least 8 characters, one uppercase letter, and one digit.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	var hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper {
		return ErrPasswordNoUpper
	}
	if !hasDigit {
		return ErrPasswordNoDigit
	}
	return nil
}
