package messaging

import (
	"context"
	"time"
)

// CreateInput is a validated message ready for persistence.
type CreateInput struct {
	FromUsername string
	ToUsername   string
	Body         string
	SentAt       time.Time
}

// Store is the message persistence boundary.
//
// Contract:
// - Create assigns a unique, increasing ID. A missing recipient yields ErrRecipientNotFound.
// - Get on a missing ID yields ErrNotFound.
// - MarkRead sets read_at only while it is unset, atomically. If the row exists
//   but is already read it yields ErrAlreadyRead and leaves read_at untouched.
// - ListFrom/ListTo are ordered by ID.
type Store interface {
	Create(ctx context.Context, in CreateInput) (Message, error)
	Get(ctx context.Context, id int64) (Message, error)
	MarkRead(ctx context.Context, id int64, at time.Time) (Message, error)
	ListFrom(ctx context.Context, username string) ([]Message, error)
	ListTo(ctx context.Context, username string) ([]Message, error)
}
