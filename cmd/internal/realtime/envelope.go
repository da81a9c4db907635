package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ProtocolVersion is embedded into every envelope.
const ProtocolVersion = 1

// Envelope types (wire-stable).
const (
	// TypeHello starts a session handshake (client -> server).
	TypeHello = "hello"
	// TypeHelloAck acknowledges the handshake (server -> client).
	TypeHelloAck = "hello.ack"

	// TypeMessageNew tells a recipient a message was sent to them.
	TypeMessageNew = "message.new"
	// TypeMessageRead tells a sender the recipient marked a message read.
	TypeMessageRead = "message.read"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

var allowedTypes = map[string]struct{}{
	TypeHello:       {},
	TypeHelloAck:    {},
	TypeMessageNew:  {},
	TypeMessageRead: {},
	TypeError:       {},
}

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// Validate checks the fields every inbound envelope must carry.
func (e Envelope) Validate() error {
	if e.V != ProtocolVersion {
		return fmt.Errorf("invalid protocol version: got=%d want=%d", e.V, ProtocolVersion)
	}
	if e.Type == "" {
		return errors.New("missing type")
	}
	if _, ok := allowedTypes[e.Type]; !ok {
		return fmt.Errorf("unsupported type: %s", e.Type)
	}
	if e.ID == "" {
		return errors.New("missing id")
	}
	if e.TS.IsZero() {
		return errors.New("missing ts")
	}
	if e.Payload == nil {
		return errors.New("missing payload")
	}
	return nil
}

type HelloAckPayload struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newEnvelope(typ string, payload json.RawMessage, ts time.Time) Envelope {
	return Envelope{
		V:       ProtocolVersion,
		Type:    typ,
		ID:      NewEnvelopeID(ts),
		TS:      ts,
		Payload: payload,
	}
}
