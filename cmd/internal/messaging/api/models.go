package messagingapi

import (
	"time"

	"messagely/cmd/internal/messaging"
)

type composeRequest struct {
	ToUsername string `json:"to_username"`
	Body       string `json:"body"`
}

type messageEnvelope struct {
	Message messaging.Message `json:"message"`
}

type expandedEnvelope struct {
	Message messaging.ExpandedMessage `json:"message"`
}

type messagesEnvelope struct {
	Messages []messaging.ExpandedMessage `json:"messages"`
}

type readReceipt struct {
	ID     int64      `json:"id"`
	ReadAt *time.Time `json:"read_at"`
}

type readEnvelope struct {
	Message readReceipt `json:"message"`
}
