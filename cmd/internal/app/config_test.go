package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"MESSAGELY_HTTP_ADDR", "MESSAGELY_DATABASE_URL", "MESSAGELY_DB_SCHEMA", "MESSAGELY_MIGRATE_ON_START"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL should default to empty")
	}
	if cfg.DBSchema != "messagely" {
		t.Fatalf("DBSchema=%q", cfg.DBSchema)
	}
	if !cfg.MigrateOnStart {
		t.Fatalf("MigrateOnStart should default to true")
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("ShutdownTimeout=%v", cfg.ShutdownTimeout)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("MESSAGELY_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("MESSAGELY_DB_MAX_CONNS", "25")
	t.Setenv("MESSAGELY_DB_MIN_CONNS", "-1")
	t.Setenv("MESSAGELY_HTTP_READ_TIMEOUT", "bogus")
	t.Setenv("MESSAGELY_READINESS_REQUIRE_DB", "true")

	cfg := LoadConfig()
	if cfg.HTTPAddr != "127.0.0.1:9999" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.DBMaxConns != 25 {
		t.Fatalf("DBMaxConns=%d", cfg.DBMaxConns)
	}
	if cfg.DBMinConns != 0 {
		t.Fatalf("negative DBMinConns should fall back to default, got %d", cfg.DBMinConns)
	}
	if cfg.ReadTimeout != 15*time.Second {
		t.Fatalf("invalid duration should fall back to default, got %v", cfg.ReadTimeout)
	}
	if !cfg.ReadinessRequireDB {
		t.Fatalf("ReadinessRequireDB should be true")
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "MESSAGELY_TEST_FROM_FILE=file-value\nMESSAGELY_TEST_ALREADY_SET=file-value\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	t.Setenv(EnvFileKey, path)
	t.Setenv("MESSAGELY_TEST_ALREADY_SET", "process-value")
	t.Setenv("MESSAGELY_TEST_FROM_FILE", "")
	os.Unsetenv("MESSAGELY_TEST_FROM_FILE")

	if err := LoadEnvFile(); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("MESSAGELY_TEST_FROM_FILE"); got != "file-value" {
		t.Fatalf("MESSAGELY_TEST_FROM_FILE=%q", got)
	}
	if got := os.Getenv("MESSAGELY_TEST_ALREADY_SET"); got != "process-value" {
		t.Fatalf("process env must win, got %q", got)
	}
}

func TestLoadEnvFile_MissingIsIgnored(t *testing.T) {
	t.Setenv(EnvFileKey, filepath.Join(t.TempDir(), "nope.env"))
	if err := LoadEnvFile(); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}
