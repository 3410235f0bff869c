package deployscript_test

// Compatibility shims for testing.T.Context and testing.T.Chdir, which
// are unavailable on the Go 1.21 toolchain used to build this module.

import (
	"context"
	"testing"
)

// testContext returns a context that is canceled when the test finishes.
func testContext(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
