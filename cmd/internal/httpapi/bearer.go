package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// TokenVerifier turns a bearer token into the username it asserts.
type TokenVerifier interface {
	Verify(raw string, now time.Time) (string, error)
}

type callerKey struct{}

// WithCaller returns a context carrying the authenticated username.
func WithCaller(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, callerKey{}, username)
}

// CallerFrom returns the authenticated username placed by RequireBearer.
func CallerFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(callerKey{}).(string)
	return v, ok && v != ""
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// WriteUnauthenticated writes the single 401 body used for every token
// failure. Missing, malformed, tampered and expired tokens all look the same.
func WriteUnauthenticated(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthenticated, "unauthenticated")
}

// RequireBearer rejects requests without a valid bearer token and stores the
// verified username on the request context. The reason for a rejection is
// never revealed to the client.
func RequireBearer(v TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				log.Debug("auth.token.missing", "path", r.URL.Path)
				WriteUnauthenticated(w)
				return
			}
			username, err := v.Verify(raw, time.Now().UTC())
			if err != nil {
				log.Debug("auth.token.reject", "path", r.URL.Path)
				WriteUnauthenticated(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), username)))
		})
	}
}
