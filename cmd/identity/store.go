package identity

import (
	"context"
	"time"
)

// User is the public view of a registered identity. It never carries the
// password hash.
type User struct {
	Username    string     `json:"username"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Phone       string     `json:"phone"`
	JoinAt      time.Time  `json:"join_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

// Profile is the expanded participant reference attached to messages.
type Profile struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// Summary is the directory listing entry.
type Summary struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Credentials is the store record consulted by authentication.
// PasswordHash must never be logged or serialized.
type Credentials struct {
	Username     string
	PasswordHash string
}

// Profile projects a user onto its participant reference.
func (u User) Profile() Profile {
	return Profile{
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
	}
}

// CreateUserInput is a fully validated registration; the password is already hashed.
type CreateUserInput struct {
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	Now          time.Time
}

// Store is the identity persistence boundary.
//
// Contract:
// - Username is the primary key; CreateUser on an existing username returns ConflictError{Field: "username"}.
// - Lookups of missing users return NotFoundError{Resource: "user"}.
// - ListUsers is ordered by username.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetCredentials(ctx context.Context, username string) (Credentials, error)
	GetUser(ctx context.Context, username string) (User, error)
	GetProfile(ctx context.Context, username string) (Profile, error)
	ListUsers(ctx context.Context) ([]Summary, error)
	TouchLastLogin(ctx context.Context, username string, at time.Time) error
}
