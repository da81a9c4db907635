package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"messagely/cmd/identity"
)

// ParticipantResolver expands usernames into profiles.
type ParticipantResolver interface {
	Resolve(ctx context.Context, username string) (identity.Profile, error)
	ResolveInto(ctx context.Context, cache identity.ProfileCache, username string) (identity.Profile, error)
	ResolveMany(ctx context.Context, usernames []string) (map[string]identity.Profile, error)
}

// Service enforces message access rules on top of a Store.
//
// Callers pass the authenticated username; it is never taken from request data.
type Service struct {
	store     Store
	resolver  ParticipantResolver
	notifier  Notifier
	decisions DecisionRecorder
	now       func() time.Time
}

// Option configures the Service.
type Option func(*Service) error

// WithNotifier sets the live-delivery sink for message events.
func WithNotifier(n Notifier) Option {
	return func(s *Service) error {
		if n == nil {
			return fmt.Errorf("messaging: nil notifier")
		}
		s.notifier = n
		return nil
	}
}

// WithDecisionRecorder sets the sink for authorization outcomes.
func WithDecisionRecorder(r DecisionRecorder) Option {
	return func(s *Service) error {
		if r == nil {
			return fmt.Errorf("messaging: nil decision recorder")
		}
		s.decisions = r
		return nil
	}
}

// WithClock overrides the time source for sent_at and read_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return fmt.Errorf("messaging: nil clock")
		}
		s.now = now
		return nil
	}
}

// NewService constructs a Service.
func NewService(store Store, resolver ParticipantResolver, opts ...Option) (*Service, error) {
	if store == nil || resolver == nil {
		return nil, fmt.Errorf("messaging: store and resolver are required")
	}
	s := &Service{
		store:     store,
		resolver:  resolver,
		notifier:  nopNotifier{},
		decisions: nopRecorder{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Compose stores a message from sender to in.ToUsername.
func (s *Service) Compose(ctx context.Context, sender string, in ComposeInput) (Message, error) {
	const op = "messaging.Compose"

	if sender == "" {
		return Message{}, opErr(op, ErrForbidden, "no caller")
	}
	to := identity.NormalizeUsername(in.ToUsername)
	if to == "" {
		return Message{}, opErr(op, ErrInvalidInput, "to_username is required")
	}
	if strings.TrimSpace(in.Body) == "" {
		return Message{}, opErr(op, ErrInvalidInput, "body is required")
	}
	if utf8.RuneCountInString(in.Body) > MaxBodyLen {
		return Message{}, opErr(op, ErrInvalidInput, fmt.Sprintf("body exceeds %d characters", MaxBodyLen))
	}

	if _, err := s.resolver.Resolve(ctx, to); err != nil {
		if identity.IsNotFound(err) {
			return Message{}, opErr(op, ErrRecipientNotFound, "")
		}
		return Message{}, fmt.Errorf("%s: %w", op, err)
	}

	m, err := s.store.Create(ctx, CreateInput{
		FromUsername: sender,
		ToUsername:   to,
		Body:         in.Body,
		SentAt:       s.now(),
	})
	if err != nil {
		return Message{}, err
	}

	s.notifier.Publish(ctx, Event{Type: EventMessageNew, Recipient: m.ToUsername, Message: m})
	return m, nil
}

// Fetch returns message id with both participants expanded, if caller took part in it.
func (s *Service) Fetch(ctx context.Context, id int64, caller string) (ExpandedMessage, error) {
	const op = "messaging.Fetch"

	m, err := s.store.Get(ctx, id)
	if err != nil {
		return ExpandedMessage{}, err
	}

	allowed := CanRead(caller, m)
	s.decisions.RecordDecision(ActionFetch, allowed)
	if !allowed {
		return ExpandedMessage{}, opErr(op, ErrForbidden, "")
	}

	cache := identity.NewProfileCache()
	from, err := s.resolver.ResolveInto(ctx, cache, m.FromUsername)
	if err != nil {
		return ExpandedMessage{}, fmt.Errorf("%s: resolve sender: %w", op, err)
	}
	to, err := s.resolver.ResolveInto(ctx, cache, m.ToUsername)
	if err != nil {
		return ExpandedMessage{}, fmt.Errorf("%s: resolve recipient: %w", op, err)
	}
	return m.expand(&from, &to), nil
}

// MarkRead records that the recipient read message id. It succeeds once;
// later calls return ErrAlreadyRead and the first timestamp stands.
func (s *Service) MarkRead(ctx context.Context, id int64, caller string) (Message, error) {
	const op = "messaging.MarkRead"

	m, err := s.store.Get(ctx, id)
	if err != nil {
		return Message{}, err
	}

	allowed := CanMarkRead(caller, m)
	s.decisions.RecordDecision(ActionMarkRead, allowed)
	if !allowed {
		return Message{}, opErr(op, ErrForbidden, "")
	}
	if m.ReadAt != nil {
		return Message{}, opErr(op, ErrAlreadyRead, "")
	}

	updated, err := s.store.MarkRead(ctx, id, s.now())
	if err != nil {
		return Message{}, err
	}

	s.notifier.Publish(ctx, Event{Type: EventMessageRead, Recipient: updated.FromUsername, Message: updated})
	return updated, nil
}

// ListFrom returns messages owner sent, each with its recipient expanded.
func (s *Service) ListFrom(ctx context.Context, caller, owner string) ([]ExpandedMessage, error) {
	msgs, err := s.mailbox(ctx, "messaging.ListFrom", caller, owner, s.store.ListFrom)
	if err != nil {
		return nil, err
	}
	return s.expandCounterparts(ctx, "messaging.ListFrom", msgs, func(m Message) string { return m.ToUsername }, false)
}

// ListTo returns messages owner received, each with its sender expanded.
func (s *Service) ListTo(ctx context.Context, caller, owner string) ([]ExpandedMessage, error) {
	msgs, err := s.mailbox(ctx, "messaging.ListTo", caller, owner, s.store.ListTo)
	if err != nil {
		return nil, err
	}
	return s.expandCounterparts(ctx, "messaging.ListTo", msgs, func(m Message) string { return m.FromUsername }, true)
}

func (s *Service) mailbox(
	ctx context.Context,
	op, caller, owner string,
	list func(context.Context, string) ([]Message, error),
) ([]Message, error) {
	owner = identity.NormalizeUsername(owner)

	allowed := CanViewMailbox(caller, owner)
	s.decisions.RecordDecision(ActionMailbox, allowed)
	if !allowed {
		return nil, opErr(op, ErrForbidden, "")
	}
	return list(ctx, owner)
}

func (s *Service) expandCounterparts(
	ctx context.Context,
	op string,
	msgs []Message,
	counterpart func(Message) string,
	counterpartIsSender bool,
) ([]ExpandedMessage, error) {
	names := make([]string, 0, len(msgs))
	for _, m := range msgs {
		names = append(names, counterpart(m))
	}

	profiles, err := s.resolver.ResolveMany(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]ExpandedMessage, 0, len(msgs))
	for _, m := range msgs {
		p, ok := profiles[counterpart(m)]
		if !ok {
			return nil, fmt.Errorf("%s: %w", op, errors.New("counterpart missing from resolution"))
		}
		if counterpartIsSender {
			out = append(out, m.expand(&p, nil))
		} else {
			out = append(out, m.expand(nil, &p))
		}
	}
	return out, nil
}
