package token

import "errors"

// Public, stable errors for callers.
var (
	ErrSecretMissing  = errors.New("token secret missing")
	ErrSecretTooShort = errors.New("token secret too short")

	// ErrUnauthenticated covers every verification failure. Callers must not
	// be able to tell a bad signature from a malformed or expired token.
	ErrUnauthenticated = errors.New("unauthenticated")
)
