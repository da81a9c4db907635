package identity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxUsernameLen bounds usernames in characters.
const MaxUsernameLen = 64

// NormalizeUsername performs case-insensitive canonicalization.
// Note: for now we only trim + lower-case.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateUsername checks an already normalized username.
// Usernames appear in URL paths, so whitespace, control characters and '/' are rejected.
func ValidateUsername(s string) error {
	if s == "" {
		return invalid("identity.ValidateUsername", "username is required")
	}
	if utf8.RuneCountInString(s) > MaxUsernameLen {
		return invalid("identity.ValidateUsername", "username too long")
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '/' || r == '?' || r == '#' {
			return invalid("identity.ValidateUsername", "username contains invalid characters")
		}
	}
	return nil
}
