package config_test

// Compatibility shims for testing.T.Context and testing.T.Chdir, which
// are unavailable on the Go 1.21 toolchain used to build this module.

import (
	"os"
	"testing"
)

// testChdir changes the working directory to dir and restores it when the
// test finishes.
func testChdir(t testing.TB, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("testChdir: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("testChdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("testChdir: restore: %v", err)
		}
	})
}
