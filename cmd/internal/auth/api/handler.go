// Package authapi exposes registration, login and the user directory over HTTP.
package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"messagely/cmd/identity"
	"messagely/cmd/internal/httpapi"
	"messagely/cmd/security/token"
)

// Handler wires HTTP auth endpoints to the authenticator and token manager.
type Handler struct {
	log    *slog.Logger
	cfg    Config
	auth   *identity.Authenticator
	tokens *token.Manager
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, auth *identity.Authenticator, tokens *token.Manager) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if auth == nil {
		return nil, errors.New("auth: nil authenticator")
	}
	if tokens == nil {
		return nil, errors.New("auth: nil token manager")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	return &Handler{log: log, cfg: cfg, auth: auth, tokens: tokens}, nil
}

// Register wires auth routes onto r. authed guards the user directory routes.
func (h *Handler) Register(r chi.Router, authed func(http.Handler) http.Handler) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(authed)
		r.Get("/users", h.handleListUsers)
		r.Get("/users/{username}", h.handleGetUser)
	})
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpapi.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidJSON, "invalid request body")
		return
	}

	ctx := r.Context()
	u, err := h.auth.Register(ctx, identity.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrDuplicateIdentity):
			httpapi.WriteError(w, http.StatusConflict, httpapi.CodeDuplicateIdentity, "username already taken")
		case identity.IsInvalidInput(err):
			httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidRequest, invalidMessage(err))
		default:
			h.log.ErrorContext(ctx, "auth.register.fail", "err", err)
			httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeServerError, "internal error")
		}
		return
	}

	tok, err := h.tokens.Issue(u.Username, time.Now().UTC())
	if err != nil {
		h.log.ErrorContext(ctx, "auth.register.token.fail", "err", err)
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeServerError, "internal error")
		return
	}

	h.auditRegister(ctx, u.Username, clientIP(r, h.cfg.TrustProxy))
	httpapi.WriteJSON(w, http.StatusCreated, tokenResponse{Token: tok})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpapi.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidJSON, "invalid request body")
		return
	}

	username := identity.NormalizeUsername(req.Username)
	if username == "" || req.Password == "" {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeInvalidRequest, "username and password are required")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)

	ok, err := h.auth.Authenticate(ctx, username, req.Password)
	if err != nil {
		h.log.ErrorContext(ctx, "auth.login.lookup.fail", "err", err)
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeServerError, "internal error")
		return
	}
	if !ok {
		// Same response for unknown user and wrong password.
		h.auditLoginFailed(ctx, username, ip, "invalid_credentials")
		httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeUnauthenticated, "invalid credentials")
		return
	}

	if err := h.auth.RecordLogin(ctx, username); err != nil {
		h.log.ErrorContext(ctx, "auth.login.record.fail", "err", err)
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeServerError, "internal error")
		return
	}

	tok, err := h.tokens.Issue(username, time.Now().UTC())
	if err != nil {
		h.log.ErrorContext(ctx, "auth.login.token.fail", "err", err)
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeServerError, "internal error")
		return
	}

	h.auditLoginSuccess(ctx, username, ip)
	httpapi.WriteJSON(w, http.StatusOK, tokenResponse{Token: tok})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := h.auth.ListUsers(ctx)
	if err != nil {
		h.log.ErrorContext(ctx, "users.list.fail", "err", err)
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeServerError, "internal error")
		return
	}
	if users == nil {
		users = []identity.Summary{}
	}
	httpapi.WriteJSON(w, http.StatusOK, usersEnvelope{Users: users})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, _ := httpapi.CallerFrom(ctx)
	target := identity.NormalizeUsername(chi.URLParam(r, "username"))

	if caller == "" || caller != target {
		httpapi.WriteError(w, http.StatusForbidden, httpapi.CodeForbidden, "not allowed")
		return
	}

	u, err := h.auth.GetUser(ctx, target)
	if err != nil {
		if identity.IsNotFound(err) {
			httpapi.WriteError(w, http.StatusNotFound, httpapi.CodeNotFound, "user not found")
			return
		}
		h.log.ErrorContext(ctx, "users.get.fail", "err", err)
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeServerError, "internal error")
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, userEnvelope{User: toUserResponse(u)})
}

// invalidMessage returns the client-safe part of an invalid-input error.
func invalidMessage(err error) string {
	var oe identity.OpError
	if errors.As(err, &oe) && strings.TrimSpace(oe.Msg) != "" {
		return oe.Msg
	}
	return "invalid request"
}
