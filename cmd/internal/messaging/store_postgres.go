package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"messagely/cmd/identity"
)

// PostgresStore implements Store over PostgreSQL.
// The pgx pool is owned by the caller; this store must NOT close it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema (default identity.DefaultSchema).
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !identity.ValidSchemaName(schema) {
			return fmt.Errorf("messaging: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: identity.DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("messaging: nil pool")
	}
	return st, nil
}

const messageColumns = `id, from_username, to_username, body, sent_at, read_at`

func (s *PostgresStore) Create(ctx context.Context, in CreateInput) (Message, error) {
	const op = "messaging.Create"

	sentAt := in.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	messages := identity.PgIdent(s.schema, "messages")

	row := s.pool.QueryRow(ctx,
		`INSERT INTO `+messages+` (from_username, to_username, body, sent_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+messageColumns,
		in.FromUsername, in.ToUsername, in.Body, sentAt,
	)
	m, err := scanMessage(row)
	if err != nil {
		if identity.IsForeignKeyViolation(err) {
			return Message{}, opErr(op, ErrRecipientNotFound, "")
		}
		return Message{}, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Message, error) {
	const op = "messaging.Get"

	messages := identity.PgIdent(s.schema, "messages")

	m, err := scanMessage(s.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM `+messages+` WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, opErr(op, ErrNotFound, "")
		}
		return Message{}, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// MarkRead relies on the read_at IS NULL predicate so that of any number of
// concurrent callers exactly one row update happens.
func (s *PostgresStore) MarkRead(ctx context.Context, id int64, at time.Time) (Message, error) {
	const op = "messaging.MarkRead"

	messages := identity.PgIdent(s.schema, "messages")

	m, err := scanMessage(s.pool.QueryRow(ctx,
		`UPDATE `+messages+`
		    SET read_at = $2
		  WHERE id = $1 AND read_at IS NULL
		  RETURNING `+messageColumns,
		id, at,
	))
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Message{}, fmt.Errorf("%s: %w", op, err)
	}

	// Nothing updated: either missing or already read.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+messages+` WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return Message{}, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return Message{}, opErr(op, ErrNotFound, "")
	}
	return Message{}, opErr(op, ErrAlreadyRead, "")
}

func (s *PostgresStore) ListFrom(ctx context.Context, username string) ([]Message, error) {
	return s.list(ctx, "messaging.ListFrom", "from_username", username)
}

func (s *PostgresStore) ListTo(ctx context.Context, username string) ([]Message, error) {
	return s.list(ctx, "messaging.ListTo", "to_username", username)
}

func (s *PostgresStore) list(ctx context.Context, op, column, username string) ([]Message, error) {
	messages := identity.PgIdent(s.schema, "messages")

	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM `+messages+` WHERE `+pgx.Identifier{column}.Sanitize()+` = $1 ORDER BY id`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		return scanMessage(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var (
		m      Message
		readAt *time.Time
	)
	if err := row.Scan(&m.ID, &m.FromUsername, &m.ToUsername, &m.Body, &m.SentAt, &readAt); err != nil {
		return Message{}, err
	}
	m.SentAt = m.SentAt.UTC()
	if readAt != nil {
		t := readAt.UTC()
		m.ReadAt = &t
	}
	return m, nil
}
