package testutil

import (
	"testing"

	"cdr.dev/slog"
	"cdr.dev/slog/sloggers/slogtest"
)

// Logger returns a "standard" testing logger, with debug level and logged
// errors not failing the test. Transports log delivery errors for sends that
// tests intentionally fail, and contexts canceled at teardown would otherwise
// flake the run.
func Logger(t testing.TB) slog.Logger {
	return slogtest.Make(
		t, &slogtest.Options{IgnoreErrors: true},
	).Leveled(slog.LevelDebug)
}
