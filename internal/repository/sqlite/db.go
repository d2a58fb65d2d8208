// Package sqlite contains SQLite implementations of repository interfaces,
// meant for single-node and development deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"github.com/and161185/payables/internal/storage"
)

var sqlb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Open opens the database file behind dsn and waits until it answers.
func Open(ctx context.Context, dsn string, connectTimeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// one writer at a time avoids SQLITE_BUSY under concurrent requests
	db.SetMaxOpenConns(1)
	if err := storage.WaitReady(ctx, db.PingContext, connectTimeout); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func isConstraintViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}
