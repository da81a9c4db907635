package app

import (
	"net/http"
	"time"

	authapi "messagely/cmd/internal/auth/api"
	"messagely/cmd/internal/httpapi"
	messagingapi "messagely/cmd/internal/messaging/api"
	"messagely/cmd/internal/realtime"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type routes struct {
	log     Logger
	cfg     Config
	dbPool  *pgxpool.Pool
	metrics *Metrics
	tokens  httpapi.TokenVerifier
	auth    *authapi.Handler
	msgs    *messagingapi.Handler
	ws      *realtime.Gateway
}

func newRouter(rt routes) chi.Router {
	r := chi.NewRouter()
	r.Use(
		WithRequestID,
		WithRequestLogging(rt.log, rt.metrics),
		WithRecover(rt.log),
		WithSecurityHeaders,
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpapi.WriteError(w, http.StatusNotFound, httpapi.CodeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpapi.WriteError(w, http.StatusMethodNotAllowed, httpapi.CodeInvalidRequest, "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		dbEnabled := rt.dbPool != nil
		if rt.cfg.ReadinessRequireDB && !dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if dbEnabled {
			if err := PingDB(r.Context(), rt.dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				rt.log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	authed := httpapi.RequireBearer(rt.tokens, rt.log)
	rt.auth.Register(r, authed)
	rt.msgs.Register(r, authed)

	// The gateway authenticates the upgrade itself so browsers can pass the
	// token as a query parameter.
	r.Method(http.MethodGet, "/ws", rt.ws)

	return r
}
