// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"voiceforge/internal/config"
	"voiceforge/internal/queue"
)

// NewConfig returns a validated config rooted in a per-test temp directory,
// with intervals tightened so polling tests run quickly.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(root, "staging")
	cfg.Paths.VoicesDir = filepath.Join(root, "voices")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Workflow.QueuePollIntervalSeconds = 1
	cfg.Workflow.ErrorRetryIntervalSeconds = 1
	cfg.Workflow.HeartbeatIntervalSeconds = 1
	cfg.Workflow.HeartbeatTimeoutSeconds = 2
	cfg.Transcription.MinClips = 1

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return cfg
}

// MustOpenStore opens the queue database under the config's log dir.
func MustOpenStore(t *testing.T, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(context.Background(), cfg.QueueDatabasePath())
	if err != nil {
		t.Fatalf("open queue store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// WithStubbedBinaries places executable shell stubs for the named tools on
// PATH so LookPath-based health checks pass without the real tools.
func WithStubbedBinaries(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		stub := filepath.Join(dir, name)
		if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return dir
}

// WriteFile creates path with the given content, making parent directories.
func WriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
