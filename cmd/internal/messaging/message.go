// Package messaging owns direct messages and the rules deciding who may read
// and acknowledge them.
package messaging

import (
	"time"

	"messagely/cmd/identity"
)

// MaxBodyLen bounds message bodies in characters.
const MaxBodyLen = 4000

// Message is a stored direct message.
type Message struct {
	ID           int64      `json:"id"`
	FromUsername string     `json:"from_username"`
	ToUsername   string     `json:"to_username"`
	Body         string     `json:"body"`
	SentAt       time.Time  `json:"sent_at"`
	ReadAt       *time.Time `json:"read_at"`
}

// ExpandedMessage is a message with its participants resolved to profiles.
// Mailbox listings set only the counterpart.
type ExpandedMessage struct {
	ID       int64             `json:"id"`
	Body     string            `json:"body"`
	SentAt   time.Time         `json:"sent_at"`
	ReadAt   *time.Time        `json:"read_at"`
	FromUser *identity.Profile `json:"from_user,omitempty"`
	ToUser   *identity.Profile `json:"to_user,omitempty"`
}

// ComposeInput is a new message from the authenticated caller.
type ComposeInput struct {
	ToUsername string
	Body       string
}

func (m Message) expand(from, to *identity.Profile) ExpandedMessage {
	return ExpandedMessage{
		ID:       m.ID,
		Body:     m.Body,
		SentAt:   m.SentAt,
		ReadAt:   m.ReadAt,
		FromUser: from,
		ToUser:   to,
	}
}
