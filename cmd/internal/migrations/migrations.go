// Package migrations applies messagely's embedded SQL schema with goose.
//
// Migration files use unqualified table names; Up pins search_path to the
// target schema for the duration of the run.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"regexp"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var files embed.FS

var schemaRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// Up creates schema if needed and applies every pending migration into it.
func Up(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	if pool == nil {
		return fmt.Errorf("migrations: nil pool")
	}
	if !schemaRe.MatchString(schema) {
		return fmt.Errorf("migrations: invalid schema identifier")
	}

	if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("migrations: create schema: %w", err)
	}

	// A dedicated pool so search_path applies to every connection goose opens.
	cfg := pool.Config().Copy()
	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 1
	cfg.MinConns = 0

	mpool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("migrations: open pool: %w", err)
	}
	defer mpool.Close()

	db := stdlib.OpenDBFromPool(mpool)
	defer func() { _ = db.Close() }()

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(files)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("migrations: dialect: %w", err)
	}
	goose.SetTableName(schema + ".goose_db_version")

	if err := goose.UpContext(ctx, db, "sql"); err != nil {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}

// Version reports the highest applied migration version in schema.
func Version(ctx context.Context, pool *pgxpool.Pool, schema string) (int64, error) {
	if !schemaRe.MatchString(schema) {
		return 0, fmt.Errorf("migrations: invalid schema identifier")
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect("pgx"); err != nil {
		return 0, fmt.Errorf("migrations: dialect: %w", err)
	}
	goose.SetTableName(schema + ".goose_db_version")

	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("migrations: version: %w", err)
	}
	return v, nil
}
