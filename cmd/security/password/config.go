package password

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultWorkFactor is the bcrypt cost used when nothing else is configured.
// Each increment doubles the work per hash.
const DefaultWorkFactor = 12

// maxInputBytes is the bcrypt input limit; longer inputs are rejected instead of truncated.
const maxInputBytes = 72

// Policy controls password validation boundaries.
type Policy struct {
	MinLength int
	MaxLength int
	// If true, reject a handful of trivially guessable passwords.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	WorkFactor int
	Policy     Policy
}

// DefaultConfig returns the baseline used by messagely.
func DefaultConfig() Config {
	return Config{
		WorkFactor: DefaultWorkFactor,
		Policy: Policy{
			MinLength:      6,
			MaxLength:      maxInputBytes,
			RejectVeryWeak: false,
		},
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - MESSAGELY_BCRYPT_WORK_FACTOR
// - MESSAGELY_PASSWORD_MIN_LEN
// - MESSAGELY_PASSWORD_MAX_LEN
// - MESSAGELY_PASSWORD_REJECT_VERY_WEAK (true/false)
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("MESSAGELY_BCRYPT_WORK_FACTOR"); ok {
		n, err := atoiInRange(v, bcrypt.MinCost, bcrypt.MaxCost)
		if err != nil {
			return Config{}, fmt.Errorf("MESSAGELY_BCRYPT_WORK_FACTOR: %w", err)
		}
		cfg.WorkFactor = n
	}

	if v, ok := os.LookupEnv("MESSAGELY_PASSWORD_MIN_LEN"); ok {
		n, err := atoiInRange(v, 1, maxInputBytes)
		if err != nil {
			return Config{}, fmt.Errorf("MESSAGELY_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}

	if v, ok := os.LookupEnv("MESSAGELY_PASSWORD_MAX_LEN"); ok {
		n, err := atoiInRange(v, 1, maxInputBytes)
		if err != nil {
			return Config{}, fmt.Errorf("MESSAGELY_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}

	if v, ok := os.LookupEnv("MESSAGELY_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("MESSAGELY_PASSWORD_REJECT_VERY_WEAK: invalid boolean")
		}
		cfg.Policy.RejectVeryWeak = b
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

func atoiInRange(s string, minVal, maxVal int) (int, error) {
	i64, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}
