package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestExitCodeUnwrapsErrno(t *testing.T) {
	wrapped := fmt.Errorf("config: document-root: %w", syscall.ENOENT)
	if got := exitCode(wrapped); got != int(syscall.ENOENT) {
		t.Fatalf("exitCode = %d, want %d", got, int(syscall.ENOENT))
	}
}

func TestExitCodeUnwrapsPathError(t *testing.T) {
	_, err := os.Stat(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatalf("expected os.Stat to fail")
	}
	wrapped := fmt.Errorf("config: document-root: %w", err)

	if got := exitCode(wrapped); got != int(syscall.ENOENT) {
		t.Fatalf("exitCode = %d, want %d", got, int(syscall.ENOENT))
	}
}

func TestExitCodeFallsBackToOneWithoutErrno(t *testing.T) {
	if got := exitCode(errors.New("worker-count must be >= 1")); got != 1 {
		t.Fatalf("exitCode = %d, want 1", got)
	}
}
