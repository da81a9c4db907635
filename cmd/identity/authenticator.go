package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"messagely/cmd/security/password"
)

const maxNameLen = 100

// RegisterInput is a registration request as received from a client.
type RegisterInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// Authenticator registers identities and verifies passwords against stored hashes.
type Authenticator struct {
	store Store
	pw    password.Config
	now   func() time.Time

	// dummyHash is compared against when the username is unknown.
	dummyHash string
}

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithAuthClock overrides the time source used for join and login timestamps.
func WithAuthClock(now func() time.Time) AuthenticatorOption {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAuthenticator returns an Authenticator over store using the given password config.
func NewAuthenticator(store Store, pw password.Config, opts ...AuthenticatorOption) (*Authenticator, error) {
	if store == nil {
		return nil, fmt.Errorf("identity: nil store")
	}
	dummy, err := pw.DummyHash()
	if err != nil {
		return nil, fmt.Errorf("identity: dummy hash: %w", err)
	}
	a := &Authenticator{
		store:     store,
		pw:        pw,
		now:       func() time.Time { return time.Now().UTC() },
		dummyHash: dummy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Register validates in, hashes the password and creates the identity.
func (a *Authenticator) Register(ctx context.Context, in RegisterInput) (User, error) {
	const op = "identity.Register"

	username := NormalizeUsername(in.Username)
	if err := ValidateUsername(username); err != nil {
		return User{}, err
	}

	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	phone := strings.TrimSpace(in.Phone)
	if first == "" || last == "" {
		return User{}, invalid(op, "first_name and last_name are required")
	}
	if utf8.RuneCountInString(first) > maxNameLen || utf8.RuneCountInString(last) > maxNameLen {
		return User{}, invalid(op, "name too long")
	}
	if phone == "" {
		return User{}, invalid(op, "phone is required")
	}

	hash, err := a.pw.Hash(in.Password)
	if err != nil {
		switch {
		case errors.Is(err, password.ErrPasswordTooShort),
			errors.Is(err, password.ErrPasswordTooLong),
			errors.Is(err, password.ErrWeakPassword):
			return User{}, invalid(op, err.Error())
		default:
			return User{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	return a.store.CreateUser(ctx, CreateUserInput{
		Username:     username,
		PasswordHash: hash,
		FirstName:    first,
		LastName:     last,
		Phone:        phone,
		Now:          a.now(),
	})
}

// Authenticate reports whether password matches the stored hash for username.
// Unknown users yield (false, nil) after a comparison against a dummy hash, so
// the response time does not reveal whether the username exists.
func (a *Authenticator) Authenticate(ctx context.Context, username, pw string) (bool, error) {
	const op = "identity.Authenticate"

	username = NormalizeUsername(username)
	if username == "" || pw == "" {
		a.burnDummy(pw)
		return false, nil
	}

	creds, err := a.store.GetCredentials(ctx, username)
	if err != nil {
		if IsNotFound(err) {
			a.burnDummy(pw)
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := a.pw.Verify(creds.PasswordHash, pw)
	if err != nil {
		if errors.Is(err, password.ErrInvalidHash) {
			// Corrupt hashes fail closed.
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// RecordLogin stamps the user's last login time. Call only after a successful Authenticate.
func (a *Authenticator) RecordLogin(ctx context.Context, username string) error {
	return a.store.TouchLastLogin(ctx, NormalizeUsername(username), a.now())
}

// GetUser returns the public record for username.
func (a *Authenticator) GetUser(ctx context.Context, username string) (User, error) {
	return a.store.GetUser(ctx, NormalizeUsername(username))
}

// ListUsers returns every registered identity in summary form.
func (a *Authenticator) ListUsers(ctx context.Context) ([]Summary, error) {
	return a.store.ListUsers(ctx)
}

func (a *Authenticator) burnDummy(pw string) {
	_, _ = a.pw.Verify(a.dummyHash, pw)
}
