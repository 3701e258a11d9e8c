// Package migrations applies the embedded schema migrations.
package migrations

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"golang.org/x/xerrors"
)

//go:embed *.sql
var migrationFiles embed.FS

func setup(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, ".")
	if err != nil {
		return nil, xerrors.Errorf("create migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "commsd_schema_migrations",
	})
	if err != nil {
		return nil, xerrors.Errorf("create postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, xerrors.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// Up applies all pending migrations. Applying against an up-to-date schema is
// a no-op, not an error.
func Up(db *sql.DB) error {
	m, err := setup(db)
	if err != nil {
		return err
	}
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return xerrors.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Down rolls back every migration. Used by tests to reset state.
func Down(db *sql.DB) error {
	m, err := setup(db)
	if err != nil {
		return err
	}
	err = m.Down()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return xerrors.Errorf("revert migrations: %w", err)
	}
	return nil
}
