// Package migrate applies embedded SQL migrations on startup.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/and161185/payables/migrations"
)

type dialect struct {
	sqlDriver string
	goose     string
	dir       string
}

var dialects = map[string]dialect{
	"postgres": {sqlDriver: "pgx", goose: "postgres", dir: "postgres"},
	"sqlite":   {sqlDriver: "sqlite3", goose: "sqlite3", dir: "sqlite"},
}

// Up opens dsn with the given storage driver and runs all pending migrations.
func Up(ctx context.Context, driver, dsn string) error {
	d, ok := dialects[driver]
	if !ok {
		return fmt.Errorf("migrate: unknown driver %q", driver)
	}
	db, err := sql.Open(d.sqlDriver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return Run(ctx, db, driver)
}

// Run applies migrations on an already open handle. SQLite in-memory
// databases need this since a second connection would see an empty schema.
func Run(ctx context.Context, db *sql.DB, driver string) error {
	d, ok := dialects[driver]
	if !ok {
		return fmt.Errorf("migrate: unknown driver %q", driver)
	}
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(d.goose); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, d.dir)
}
