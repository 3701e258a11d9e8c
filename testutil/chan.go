package testutil

import (
	"context"
	"testing"
)

// RequireReceive requires a value to be received from the channel before the
// context expires.
func RequireReceive[A any](ctx context.Context, t testing.TB, c <-chan A) A {
	t.Helper()
	select {
	case <-ctx.Done():
		t.Fatal("timeout waiting for receive")
		var a A
		return a
	case a := <-c:
		return a
	}
}

// RequireSend requires a value to be sent on the channel before the context
// expires.
func RequireSend[A any](ctx context.Context, t testing.TB, c chan<- A, a A) {
	t.Helper()
	select {
	case <-ctx.Done():
		t.Fatal("timeout waiting for send")
	case c <- a:
	}
}
