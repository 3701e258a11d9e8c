// Package database connects to PostgreSQL for stateful storage. Domain stores
// (definitions, templates) build on the DB handle and its transaction helper.
package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/xerrors"
)

// DB wraps an sqlx handle to PostgreSQL.
type DB struct {
	*sqlx.DB
}

// Connect opens a PostgreSQL connection and verifies it with a ping bound to
// the given context.
func Connect(ctx context.Context, url string) (*DB, error) {
	sdb, err := sql.Open("postgres", url)
	if err != nil {
		return nil, xerrors.Errorf("open postgres: %w", err)
	}
	if err := sdb.PingContext(ctx); err != nil {
		_ = sdb.Close()
		return nil, xerrors.Errorf("ping postgres: %w", err)
	}
	return New(sdb), nil
}

// New wraps an existing database handle.
func New(sdb *sql.DB) *DB {
	return &DB{sqlx.NewDb(sdb, "postgres")}
}

// InTx runs fn inside a transaction. Any error from fn (or a panic) rolls the
// transaction back; a nil return commits it. Isolation is the database
// default; read-committed is sufficient for all stores in this module.
func (db *DB) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return xerrors.Errorf("begin tx: %w", err)
	}
	defer func() {
		// Rollback is a no-op after a successful commit.
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return xerrors.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether the error is a PostgreSQL unique
// constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
