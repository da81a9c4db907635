package messaging

import "context"

// Event types published to participants.
const (
	EventMessageNew  = "message.new"
	EventMessageRead = "message.read"
)

// Event is a best-effort notification about a message.
type Event struct {
	Type      string
	Recipient string
	Message   Message
}

// Notifier delivers events to connected users. Implementations must not block
// on slow consumers; delivery failures never affect the operation.
type Notifier interface {
	Publish(ctx context.Context, ev Event)
}

// Authorization actions reported to a DecisionRecorder.
const (
	ActionFetch    = "fetch"
	ActionMarkRead = "mark_read"
	ActionMailbox  = "mailbox"
)

// DecisionRecorder observes authorization outcomes.
type DecisionRecorder interface {
	RecordDecision(action string, allowed bool)
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, Event) {}

type nopRecorder struct{}

func (nopRecorder) RecordDecision(string, bool) {}
