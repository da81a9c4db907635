// Package messagingapi exposes direct messages and per-user mailboxes over HTTP.
package messagingapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"messagely/cmd/internal/httpapi"
	"messagely/cmd/internal/messaging"
)

// Handler wires HTTP message endpoints to the messaging service.
type Handler struct {
	log          *slog.Logger
	svc          *messaging.Service
	maxBodyBytes int64
}

// NewHandler constructs a messaging Handler.
func NewHandler(log *slog.Logger, svc *messaging.Service, maxBodyBytes int64) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if svc == nil {
		return nil, errors.New("messaging api: nil service")
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = 64 << 10
	}
	return &Handler{log: log, svc: svc, maxBodyBytes: maxBodyBytes}, nil
}

// Register wires message routes onto r; every route requires authed.
func (h *Handler) Register(r chi.Router, authed func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authed)
		r.Post("/messages", h.handleCompose)
		r.Get("/messages/{id}", h.handleFetch)
		r.Post("/messages/{id}/read", h.handleMarkRead)
		r.Get("/users/{username}/from", h.handleListFrom)
		r.Get("/users/{username}/to", h.handleListTo)
	})
}

func (h *Handler) handleCompose(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req composeRequest
	if err := httpapi.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidJSON, "invalid request body")
		return
	}

	m, err := h.svc.Compose(r.Context(), caller, messaging.ComposeInput{ToUsername: req.ToUsername, Body: req.Body})
	if err != nil {
		h.writeServiceError(w, r, "messages.compose", err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, messageEnvelope{Message: m})
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := messageID(w, r)
	if !ok {
		return
	}

	m, err := h.svc.Fetch(r.Context(), id, caller)
	if err != nil {
		h.writeServiceError(w, r, "messages.fetch", err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, expandedEnvelope{Message: m})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := messageID(w, r)
	if !ok {
		return
	}

	m, err := h.svc.MarkRead(r.Context(), id, caller)
	if err != nil {
		h.writeServiceError(w, r, "messages.mark_read", err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, readEnvelope{Message: readReceipt{ID: m.ID, ReadAt: m.ReadAt}})
}

func (h *Handler) handleListFrom(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	msgs, err := h.svc.ListFrom(r.Context(), caller, chi.URLParam(r, "username"))
	if err != nil {
		h.writeServiceError(w, r, "messages.list_from", err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, messagesEnvelope{Messages: msgs})
}

func (h *Handler) handleListTo(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	msgs, err := h.svc.ListTo(r.Context(), caller, chi.URLParam(r, "username"))
	if err != nil {
		h.writeServiceError(w, r, "messages.list_to", err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, messagesEnvelope{Messages: msgs})
}

// ---- helpers ----

func requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := httpapi.CallerFrom(r.Context())
	if !ok {
		httpapi.WriteUnauthenticated(w)
		return "", false
	}
	return caller, true
}

func messageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpapi.WriteError(w, http.StatusNotFound, httpapi.CodeNotFound, "message not found")
		return 0, false
	}
	return id, true
}
