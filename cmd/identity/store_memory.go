package identity

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It backs tests and database-less runs.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]memoryUser
}

type memoryUser struct {
	user User
	hash string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]memoryUser)}
}

func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if in.Username == "" || in.PasswordHash == "" {
		return User{}, invalid(op, "username and password hash are required")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[in.Username]; exists {
		return User{}, ConflictError{Op: op, Field: "username"}
	}

	u := User{
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		JoinAt:    now.UTC(),
	}
	s.users[in.Username] = memoryUser{user: u, hash: in.PasswordHash}
	return u, nil
}

func (s *MemoryStore) GetCredentials(ctx context.Context, username string) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	mu, ok := s.users[username]
	if !ok {
		return Credentials{}, userNotFound("identity.GetCredentials")
	}
	return Credentials{Username: mu.user.Username, PasswordHash: mu.hash}, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, username string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	mu, ok := s.users[username]
	if !ok {
		return User{}, userNotFound("identity.GetUser")
	}
	return copyUser(mu.user), nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, username string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	mu, ok := s.users[username]
	if !ok {
		return Profile{}, userNotFound("identity.GetProfile")
	}
	return mu.user.Profile(), nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]Summary, 0, len(s.users))
	for _, mu := range s.users {
		out = append(out, Summary{
			Username:  mu.user.Username,
			FirstName: mu.user.FirstName,
			LastName:  mu.user.LastName,
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *MemoryStore) TouchLastLogin(ctx context.Context, username string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.users[username]
	if !ok {
		return userNotFound("identity.TouchLastLogin")
	}
	t := at.UTC()
	mu.user.LastLoginAt = &t
	s.users[username] = mu
	return nil
}

func copyUser(u User) User {
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		u.LastLoginAt = &t
	}
	return u
}
