package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hash validates password against the policy and returns its bcrypt hash
// computed at the configured work factor.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}

	cost := c.WorkFactor
	if cost < bcrypt.MinCost {
		cost = DefaultWorkFactor
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(h), nil
}

// DummyHash returns a hash at the configured work factor that no policy-valid
// password is expected to match. Comparing against it costs the same as a
// real verification.
func (c Config) DummyHash() (string, error) {
	cost := c.WorkFactor
	if cost < bcrypt.MinCost {
		cost = DefaultWorkFactor
	}
	h, err := bcrypt.GenerateFromPassword([]byte("messagely-dummy-password-for-timing"), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(h), nil
}

// Verify checks whether password matches the given bcrypt hash.
// Returns (true, nil) for a match, (false, nil) for mismatch,
// and (false, ErrInvalidHash) for malformed or out-of-bounds hashes.
func (c Config) Verify(encodedHash, password string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, ErrInvalidHash
	}

	// Hashes at any ordinary factor stay verifiable; wildly higher ones would
	// let a tampered row burn CPU.
	if !withinReasonableBounds(cost, c.WorkFactor) {
		return false, ErrInvalidHash
	}

	err = bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrInvalidHash
	}
}

// withinReasonableBounds caps the cost a stored hash may demand. The cap never
// drops below twice DefaultWorkFactor, so lowering the configured factor keeps
// existing hashes verifiable.
func withinReasonableBounds(got, configured int) bool {
	if configured < bcrypt.MinCost {
		configured = DefaultWorkFactor
	}
	limit := max(configured, DefaultWorkFactor) * 2
	if limit > bcrypt.MaxCost {
		limit = bcrypt.MaxCost
	}
	return got >= bcrypt.MinCost && got <= limit
}
