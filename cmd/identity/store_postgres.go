package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSchema is the Postgres schema used when none is configured.
const DefaultSchema = "messagely"

// PostgresStore implements identity persistence over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - Uniqueness of usernames is enforced by the primary key, never by a read-then-write.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the identity store (default "messagely").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !ValidSchemaName(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
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

	users := PgIdent(s.schema, "users")

	var out User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+users+` (username, password_hash, first_name, last_name, phone, join_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING username, first_name, last_name, phone, join_at`,
		in.Username, in.PasswordHash, in.FirstName, in.LastName, in.Phone, now,
	).Scan(&out.Username, &out.FirstName, &out.LastName, &out.Phone, &out.JoinAt)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	out.JoinAt = out.JoinAt.UTC()
	return out, nil
}

func (s *PostgresStore) GetCredentials(ctx context.Context, username string) (Credentials, error) {
	const op = "identity.GetCredentials"

	users := PgIdent(s.schema, "users")

	var out Credentials
	err := s.pool.QueryRow(ctx,
		`SELECT username, password_hash FROM `+users+` WHERE username = $1`,
		username,
	).Scan(&out.Username, &out.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credentials{}, userNotFound(op)
		}
		return Credentials{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, username string) (User, error) {
	const op = "identity.GetUser"

	users := PgIdent(s.schema, "users")

	var (
		out         User
		lastLoginAt *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT username, first_name, last_name, phone, join_at, last_login_at
		   FROM `+users+`
		  WHERE username = $1`,
		username,
	).Scan(&out.Username, &out.FirstName, &out.LastName, &out.Phone, &out.JoinAt, &lastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, userNotFound(op)
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	out.JoinAt = out.JoinAt.UTC()
	if lastLoginAt != nil {
		t := lastLoginAt.UTC()
		out.LastLoginAt = &t
	}
	return out, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, username string) (Profile, error) {
	const op = "identity.GetProfile"

	users := PgIdent(s.schema, "users")

	var out Profile
	err := s.pool.QueryRow(ctx,
		`SELECT username, first_name, last_name, phone FROM `+users+` WHERE username = $1`,
		username,
	).Scan(&out.Username, &out.FirstName, &out.LastName, &out.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, userNotFound(op)
		}
		return Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]Summary, error) {
	const op = "identity.ListUsers"

	users := PgIdent(s.schema, "users")

	rows, err := s.pool.Query(ctx,
		`SELECT username, first_name, last_name FROM `+users+` ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Summary, error) {
		var s Summary
		err := row.Scan(&s.Username, &s.FirstName, &s.LastName)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresStore) TouchLastLogin(ctx context.Context, username string, at time.Time) error {
	const op = "identity.TouchLastLogin"

	if at.IsZero() {
		at = time.Now().UTC()
	}

	users := PgIdent(s.schema, "users")

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+users+` SET last_login_at = $2 WHERE username = $1`,
		username, at,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return userNotFound(op)
	}
	return nil
}

// ---- helpers ----

// ValidSchemaName checks if a string is a safe Postgres identifier.
func ValidSchemaName(s string) bool {
	return pgIdentRe.MatchString(s)
}

// PgIdent safely quotes a schema-qualified identifier: "schema"."name".
func PgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

// IsForeignKeyViolation reports whether err is a Postgres foreign_key_violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503"
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names. Fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "pk_users", strings.Contains(c, "username"), strings.HasPrefix(c, "users_pkey"):
		return "username", true
	default:
		return "unique", true
	}
}
