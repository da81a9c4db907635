package messaging

import (
	"context"
	"sync"
	"time"

	"messagely/cmd/identity"
)

// MemoryStore is an in-process Store for tests and database-less runs.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]Message
	order  []int64

	// users, when set, stands in for the recipient foreign key.
	users identity.ProfileLookup
}

// NewMemoryStore returns an empty store. users may be nil; when set, Create
// rejects recipients it cannot find.
func NewMemoryStore(users identity.ProfileLookup) *MemoryStore {
	return &MemoryStore{
		byID:  make(map[int64]Message),
		users: users,
	}
}

func (s *MemoryStore) Create(ctx context.Context, in CreateInput) (Message, error) {
	const op = "messaging.Create"

	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	if s.users != nil {
		if _, err := s.users.GetProfile(ctx, in.ToUsername); err != nil {
			if identity.IsNotFound(err) {
				return Message{}, opErr(op, ErrRecipientNotFound, "")
			}
			return Message{}, err
		}
	}

	sentAt := in.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	m := Message{
		ID:           s.nextID,
		FromUsername: in.FromUsername,
		ToUsername:   in.ToUsername,
		Body:         in.Body,
		SentAt:       sentAt.UTC(),
	}
	s.byID[m.ID] = m
	s.order = append(s.order, m.ID)
	return m, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return Message{}, opErr("messaging.Get", ErrNotFound, "")
	}
	return copyMessage(m), nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, id int64, at time.Time) (Message, error) {
	const op = "messaging.MarkRead"

	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return Message{}, opErr(op, ErrNotFound, "")
	}
	if m.ReadAt != nil {
		return Message{}, opErr(op, ErrAlreadyRead, "")
	}
	t := at.UTC()
	m.ReadAt = &t
	s.byID[id] = m
	return copyMessage(m), nil
}

func (s *MemoryStore) ListFrom(ctx context.Context, username string) ([]Message, error) {
	return s.list(ctx, func(m Message) bool { return m.FromUsername == username })
}

func (s *MemoryStore) ListTo(ctx context.Context, username string) ([]Message, error) {
	return s.list(ctx, func(m Message) bool { return m.ToUsername == username })
}

func (s *MemoryStore) list(ctx context.Context, keep func(Message) bool) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, 0)
	for _, id := range s.order {
		if m := s.byID[id]; keep(m) {
			out = append(out, copyMessage(m))
		}
	}
	return out, nil
}

func copyMessage(m Message) Message {
	if m.ReadAt != nil {
		t := *m.ReadAt
		m.ReadAt = &t
	}
	return m
}
