// Package database provides the Postgres connection and schema migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Postgres driver
	_ "github.com/lib/pq"
)

// Open opens a Postgres connection pool. sql.Open does not dial; Ping is
// called here so a bad DATABASE_URL fails at startup instead of on the first
// request.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("[database Open] sql.Open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("[database Open] ping: %w", err)
	}

	return db, nil
}

// Queryer is the subset of *sql.DB and *sql.Tx the repositories need, so the
// same repository code runs inside or outside an explicit transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// WithinTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func WithinTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("[database WithinTx] begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("[database WithinTx] commit: %w", err)
	}
	return nil
}
