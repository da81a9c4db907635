package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"messagely/cmd/internal/messaging"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHub_JoinLeaveCount(t *testing.T) {
	h := newTestHub()
	a := NewClient("bob", "s1", 4)
	b := NewClient("bob", "s2", 4)

	if err := h.Join(a); err != nil {
		t.Fatalf("Join a: %v", err)
	}
	if err := h.Join(b); err != nil {
		t.Fatalf("Join b: %v", err)
	}
	if got := h.Count("bob"); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}

	h.Leave(a)
	h.Leave(a)
	if got := h.Count("bob"); got != 1 {
		t.Fatalf("Count after leave = %d, want 1", got)
	}
	h.Leave(b)
	if got := h.Connections(); got != 0 {
		t.Fatalf("Connections = %d, want 0", got)
	}
}

func TestHub_JoinLimit(t *testing.T) {
	h := newTestHub()
	for i := 0; i < maxSessionsPerUser; i++ {
		if err := h.Join(NewClient("bob", NewSessionID(time.Now()), 1)); err != nil {
			t.Fatalf("Join %d: %v", i, err)
		}
	}
	if err := h.Join(NewClient("bob", "one-too-many", 1)); err != ErrTooManySessions {
		t.Fatalf("expected ErrTooManySessions, got %v", err)
	}
	if err := h.Join(NewClient("alice", "other-user", 1)); err != nil {
		t.Fatalf("other user should not be limited: %v", err)
	}
}

func TestHub_PublishRoutesToRecipientOnly(t *testing.T) {
	h := newTestHub()
	bob := NewClient("bob", "s-bob", 4)
	alice := NewClient("alice", "s-alice", 4)
	_ = h.Join(bob)
	_ = h.Join(alice)

	msg := messaging.Message{ID: 7, FromUsername: "alice", ToUsername: "bob", Body: "hi", SentAt: time.Now().UTC()}
	h.Publish(context.Background(), messaging.Event{Type: messaging.EventMessageNew, Recipient: "bob", Message: msg})

	select {
	case env := <-bob.Send:
		if env.Type != TypeMessageNew {
			t.Fatalf("type = %q, want %q", env.Type, TypeMessageNew)
		}
		if err := env.Validate(); err != nil {
			t.Fatalf("published envelope invalid: %v", err)
		}
		var got messaging.Message
		if err := json.Unmarshal(env.Payload, &got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if got.ID != 7 || got.Body != "hi" {
			t.Fatalf("unexpected payload: %+v", got)
		}
	default:
		t.Fatalf("recipient got nothing")
	}

	select {
	case env := <-alice.Send:
		t.Fatalf("sender should not receive %q", env.Type)
	default:
	}
}

func TestHub_PublishReadEvent(t *testing.T) {
	h := newTestHub()
	alice := NewClient("alice", "s-alice", 4)
	_ = h.Join(alice)

	h.Publish(context.Background(), messaging.Event{
		Type:      messaging.EventMessageRead,
		Recipient: "alice",
		Message:   messaging.Message{ID: 3},
	})

	env := <-alice.Send
	if env.Type != TypeMessageRead {
		t.Fatalf("type = %q, want %q", env.Type, TypeMessageRead)
	}
}

func TestHub_SendToDropsWhenQueueFull(t *testing.T) {
	h := newTestHub()
	slow := NewClient("bob", "s-slow", 1)
	_ = h.Join(slow)

	env := newEnvelope(TypeMessageNew, json.RawMessage(`{}`), time.Now().UTC())
	if n := h.SendTo("bob", env); n != 1 {
		t.Fatalf("first send delivered %d, want 1", n)
	}

	done := make(chan int, 1)
	go func() { done <- h.SendTo("bob", env) }()
	select {
	case n := <-done:
		if n != 0 {
			t.Fatalf("full queue delivered %d, want 0", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("SendTo blocked on a full queue")
	}
}

func TestHub_SendToClosedClient(t *testing.T) {
	h := newTestHub()
	c := NewClient("bob", "s1", 4)
	_ = h.Join(c)
	c.Close()

	if n := h.SendTo("bob", newEnvelope(TypeMessageNew, json.RawMessage(`{}`), time.Now().UTC())); n != 0 {
		t.Fatalf("closed client accepted envelope")
	}
	if n := h.SendTo("nobody", newEnvelope(TypeMessageNew, json.RawMessage(`{}`), time.Now().UTC())); n != 0 {
		t.Fatalf("unknown user delivered %d", n)
	}
}

func TestEnvelopeValidate(t *testing.T) {
	now := time.Now().UTC()
	good := Envelope{V: ProtocolVersion, Type: TypeHello, ID: "x", TS: now, Payload: json.RawMessage(`{}`)}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid envelope rejected: %v", err)
	}

	bad := map[string]Envelope{
		"version": {V: 2, Type: TypeHello, ID: "x", TS: now, Payload: json.RawMessage(`{}`)},
		"type":    {V: ProtocolVersion, Type: "conversation.join", ID: "x", TS: now, Payload: json.RawMessage(`{}`)},
		"id":      {V: ProtocolVersion, Type: TypeHello, TS: now, Payload: json.RawMessage(`{}`)},
		"ts":      {V: ProtocolVersion, Type: TypeHello, ID: "x", Payload: json.RawMessage(`{}`)},
		"payload": {V: ProtocolVersion, Type: TypeHello, ID: "x", TS: now},
	}
	for name, env := range bad {
		if err := env.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
