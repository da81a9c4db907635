package token

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SecretEnvKey is the env var name for the signing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	SecretEnvKey = "MESSAGELY_TOKEN_SECRET"
	IssuerEnvKey = "MESSAGELY_TOKEN_ISSUER"
	TTLEnvKey    = "MESSAGELY_TOKEN_TTL"

	// MinSecretBytes is the floor enforced for HS256 secrets.
	MinSecretBytes = 32
)

// Config configures a Manager.
type Config struct {
	Secret []byte
	Issuer string
	// TTL <= 0 issues tokens without an exp claim.
	TTL time.Duration
}

// Claims is the token payload.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens. It is safe for concurrent use.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	parser *jwt.Parser
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrSecretMissing
	}
	if len(cfg.Secret) < MinSecretBytes {
		return nil, ErrSecretTooShort
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Manager{
		secret: secret,
		issuer: strings.TrimSpace(cfg.Issuer),
		ttl:    cfg.TTL,
	}, nil
}

// TTL reports the configured lifetime; 0 means tokens do not expire.
func (m *Manager) TTL() time.Duration {
	if m.ttl < 0 {
		return 0
	}
	return m.ttl
}

// Issue returns a signed token asserting username.
func (m *Manager) Issue(username string, now time.Time) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("token: empty username")
	}

	now = now.UTC()
	rc := jwt.RegisteredClaims{
		Subject:  username,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if m.issuer != "" {
		rc.Issuer = m.issuer
	}
	if m.ttl > 0 {
		rc.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Username: username, RegisteredClaims: rc})
	s, err := t.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return s, nil
}

// Verify checks the signature and registered claims and returns the asserted
// username. Any failure yields ErrUnauthenticated.
func (m *Manager) Verify(raw string, now time.Time) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		// Loose base64url ignores the spare bits of the final signature
		// character, so distinct strings would decode to the same MAC.
		jwt.WithStrictDecoding(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	t, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || t == nil || !t.Valid {
		return "", ErrUnauthenticated
	}

	username := strings.TrimSpace(claims.Username)
	if username == "" {
		return "", ErrUnauthenticated
	}
	if claims.Subject != "" && claims.Subject != username {
		return "", ErrUnauthenticated
	}
	return username, nil
}

// SecretFromEnv returns the configured secret bytes (trimmed), enforcing a
// minimum byte length.
// If the env var is missing/blank -> ErrSecretMissing.
// If too short -> ErrSecretTooShort.
func SecretFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(SecretEnvKey))
	if raw == "" {
		return nil, ErrSecretMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrSecretTooShort
	}
	return b, nil
}

// ConfigFromEnv builds a Config from the MESSAGELY_TOKEN_* variables.
func ConfigFromEnv() (Config, error) {
	secret, err := SecretFromEnv(MinSecretBytes)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Secret: secret,
		Issuer: strings.TrimSpace(os.Getenv(IssuerEnvKey)),
	}

	if v := strings.TrimSpace(os.Getenv(TTLEnvKey)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("%s: invalid duration %q", TTLEnvKey, v)
		}
		cfg.TTL = d
	}
	return cfg, nil
}
