// Package dbtestutil provides a real PostgreSQL database for tests:
// COMMSD_TEST_POSTGRES_URL when set, otherwise an ephemeral Docker container.
package dbtestutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/commsd/commsd/database"
	"github.com/commsd/commsd/database/migrations"
	"github.com/commsd/commsd/database/postgres"
)

const urlEnv = "COMMSD_TEST_POSTGRES_URL"

// NewDB connects to the test database, applies migrations and truncates the
// domain tables when the test finishes.
func NewDB(t testing.TB) *database.DB {
	t.Helper()

	url := os.Getenv(urlEnv)
	if url == "" {
		if testing.Short() {
			t.Skipf("%s not set, skipping database test in short mode", urlEnv)
		}
		containerURL, closeFn, err := postgres.Open()
		require.NoError(t, err)
		t.Cleanup(closeFn)
		url = containerURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	require.NoError(t, migrations.Up(db.DB.DB))
	t.Cleanup(func() {
		cleanCtx, cleanCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cleanCancel()
		_, _ = db.ExecContext(cleanCtx, `TRUNCATE communication_definitions, communication_templates CASCADE`)
	})
	return db
}
