package app

import (
	"time"

	"messagely/cmd/identity"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration

	// DatabaseURL empty selects the in-memory stores.
	DatabaseURL    string
	DBSchema       string
	DBMaxConns     int32
	DBMinConns     int32
	MigrateOnStart bool

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool

	// MessageMaxBodyBytes caps JSON request bodies on the messages API.
	MessageMaxBodyBytes int64
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("MESSAGELY_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("MESSAGELY_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("MESSAGELY_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("MESSAGELY_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("MESSAGELY_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("MESSAGELY_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("MESSAGELY_HTTP_MAX_HEADER_BYTES", 1<<20),
		ShutdownTimeout:   EnvDuration("MESSAGELY_SHUTDOWN_TIMEOUT", 10*time.Second),

		DatabaseURL:    EnvString("MESSAGELY_DATABASE_URL", ""),
		DBSchema:       EnvString("MESSAGELY_DB_SCHEMA", identity.DefaultSchema),
		DBMaxConns:     EnvInt32("MESSAGELY_DB_MAX_CONNS", 10),
		DBMinConns:     EnvInt32("MESSAGELY_DB_MIN_CONNS", 0),
		MigrateOnStart: EnvBool("MESSAGELY_MIGRATE_ON_START", true),

		ReadinessRequireDB: EnvBool("MESSAGELY_READINESS_REQUIRE_DB", false),

		MessageMaxBodyBytes: EnvInt64("MESSAGELY_MESSAGES_MAX_BODY_BYTES", 64<<10),
	}
}
