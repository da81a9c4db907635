// Package app wires the messagely server runtime: config, logging, storage,
// HTTP routes and the realtime gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"messagely/cmd/identity"
	authapi "messagely/cmd/internal/auth/api"
	"messagely/cmd/internal/messaging"
	messagingapi "messagely/cmd/internal/messaging/api"
	"messagely/cmd/internal/realtime"
	"messagely/cmd/security/token"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the messagely server runtime. It owns the HTTP handler tree and the
// lifecycle of the DB pool.
type App struct {
	cfg Config
	log Logger

	dbPool *pgxpool.Pool

	hub     *realtime.Hub
	metrics *Metrics
	handler http.Handler
}

// New constructs a fully wired App from config, security settings and logger.
// An empty cfg.DatabaseURL selects in-memory stores.
func New(ctx context.Context, cfg Config, sec Security, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	tokens, err := token.NewManager(sec.Tokens)
	if err != nil {
		return nil, err
	}

	users, messages, pool, err := newStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a, err := assemble(cfg, sec, log, tokens, users, messages, pool)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}
	return a, nil
}

func assemble(
	cfg Config,
	sec Security,
	log Logger,
	tokens *token.Manager,
	users identity.Store,
	messages messaging.Store,
	pool *pgxpool.Pool,
) (*App, error) {
	authn, err := identity.NewAuthenticator(users, sec.Password)
	if err != nil {
		return nil, err
	}
	resolver, err := identity.NewResolver(users)
	if err != nil {
		return nil, err
	}

	hub := realtime.NewHub(log)
	metrics := NewMetrics(hub)

	svc, err := messaging.NewService(messages, resolver,
		messaging.WithNotifier(hub),
		messaging.WithDecisionRecorder(metrics),
	)
	if err != nil {
		return nil, err
	}

	authHandler, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), authn, tokens)
	if err != nil {
		return nil, err
	}
	msgHandler, err := messagingapi.NewHandler(log, svc, cfg.MessageMaxBodyBytes)
	if err != nil {
		return nil, err
	}

	ws := realtime.NewGateway(log, hub, tokens, realtime.GatewayConfigFromEnv())

	handler := newRouter(routes{
		log:     log,
		cfg:     cfg,
		dbPool:  pool,
		metrics: metrics,
		tokens:  tokens,
		auth:    authHandler,
		msgs:    msgHandler,
		ws:      ws,
	})

	return &App{
		cfg:     cfg,
		log:     log,
		dbPool:  pool,
		hub:     hub,
		metrics: metrics,
		handler: handler,
	}, nil
}

// newStores decides between Postgres-backed persistence and in-memory stores.
// The app owns the pool lifecycle; the stores never close it.
func newStores(ctx context.Context, cfg Config, log Logger) (identity.Store, messaging.Store, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		users := identity.NewMemoryStore()
		return users, messaging.NewMemoryStore(users), nil, nil
	}

	pool, err := NewDBPool(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}

	users, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	messages, err := messaging.NewPostgresStore(pool, messaging.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
	return users, messages, pool, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbPool != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.Close()
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown; their
	// sessions end when the request context is cancelled or the peer leaves.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		a.Close()
		return fmt.Errorf("shutdown: %w", err)
	}

	a.Close()
	a.log.Info("server.stopped")
	return nil
}

// Close releases the DB pool. It is safe to call on an in-memory App.
func (a *App) Close() {
	if a.dbPool != nil {
		a.dbPool.Close()
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
