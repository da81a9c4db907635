package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks password policy. It does not mutate input.
func (c Config) Validate(password string) error {
	// Minimum counts characters; maximum also caps bytes because bcrypt does.
	n := utf8.RuneCountInString(password)

	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength || len(password) > maxInputBytes {
		return ErrPasswordTooLong
	}

	if c.Policy.RejectVeryWeak {
		if looksVeryWeak(password) {
			return ErrWeakPassword
		}
	}

	return nil
}

// looksVeryWeak catches only the most obvious choices.
func looksVeryWeak(pw string) bool {
	s := strings.ToLower(strings.TrimSpace(pw))
	if s == "" {
		return true
	}

	runes := []rune(s)
	sameChar, onlyDigits := true, true
	for _, r := range runes {
		if r != runes[0] {
			sameChar = false
		}
		if !unicode.IsDigit(r) {
			onlyDigits = false
		}
	}
	if sameChar {
		return true
	}
	// Short all-digit strings are PINs.
	if onlyDigits && len(runes) < 12 {
		return true
	}

	switch s {
	case "password", "password1", "password123", "123456", "123456789", "qwerty", "qwerty123", "letmein", "secret":
		return true
	}
	return false
}
