package app

import (
	"errors"
	"fmt"

	"messagely/cmd/security/password"
	"messagely/cmd/security/token"
)

// Security holds the credential settings the server refuses to start without.
type Security struct {
	Password password.Config
	Tokens   token.Config
}

// LoadSecurityConfig reads password and token settings from the environment.
// It fails fast: a missing or short signing secret is never replaced by a
// generated or default one.
func LoadSecurityConfig() (Security, error) {
	pw, err := password.FromEnv()
	if err != nil {
		return Security{}, fmt.Errorf("security policy: %w", err)
	}

	tc, err := token.ConfigFromEnv()
	if err != nil {
		switch {
		case errors.Is(err, token.ErrSecretMissing):
			return Security{}, fmt.Errorf("security policy: %s is missing", token.SecretEnvKey)
		case errors.Is(err, token.ErrSecretTooShort):
			return Security{}, fmt.Errorf("security policy: %s is too short (min %d bytes)", token.SecretEnvKey, token.MinSecretBytes)
		default:
			return Security{}, fmt.Errorf("security policy: %w", err)
		}
	}

	return Security{Password: pw, Tokens: tc}, nil
}
