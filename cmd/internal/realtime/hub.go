package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"messagely/cmd/internal/messaging"
)

// ErrTooManySessions is returned by Join when a user already holds the
// maximum number of live sessions.
var ErrTooManySessions = errors.New("realtime: too many sessions")

// Hub tracks live sessions by username and fans events out to them.
// It holds connections only; messages live in the messaging store.
type Hub struct {
	log *slog.Logger
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]map[string]*Client
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]map[string]*Client),
	}
}

// Join registers a client under its username.
func (h *Hub) Join(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	byID, ok := h.sessions[c.Username]
	if !ok {
		byID = make(map[string]*Client)
		h.sessions[c.Username] = byID
	}
	if _, dup := byID[c.SessionID]; !dup && len(byID) >= maxSessionsPerUser {
		return ErrTooManySessions
	}
	byID[c.SessionID] = c
	return nil
}

// Leave removes a client. Unknown clients are ignored.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byID, ok := h.sessions[c.Username]
	if !ok {
		return
	}
	delete(byID, c.SessionID)
	if len(byID) == 0 {
		delete(h.sessions, c.Username)
	}
}

// Count returns the number of live sessions for username.
func (h *Hub) Count(username string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[username])
}

// Connections returns the number of live sessions across all users.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, byID := range h.sessions {
		n += len(byID)
	}
	return n
}

// SendTo offers env to every session of username and returns how many
// accepted it. Slow sessions drop the envelope instead of blocking.
func (h *Hub) SendTo(username string, env Envelope) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.sessions[username]))
	for _, c := range h.sessions[username] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.offer(env) {
			delivered++
			continue
		}
		h.log.Info("ws.send.drop", "session_id", c.SessionID, "type", env.Type)
	}
	return delivered
}

// Publish implements messaging.Notifier.
func (h *Hub) Publish(_ context.Context, ev messaging.Event) {
	var typ string
	switch ev.Type {
	case messaging.EventMessageNew:
		typ = TypeMessageNew
	case messaging.EventMessageRead:
		typ = TypeMessageRead
	default:
		h.log.Warn("ws.publish.unknown_event", "type", ev.Type)
		return
	}

	payload, err := json.Marshal(ev.Message)
	if err != nil {
		h.log.Error("ws.publish.encode_fail", "err", err)
		return
	}
	h.SendTo(ev.Recipient, newEnvelope(typ, payload, h.now()))
}
