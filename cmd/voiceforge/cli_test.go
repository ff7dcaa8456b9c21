package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voiceforge/internal/checkpoint"
	"voiceforge/internal/config"
	"voiceforge/internal/dataset"
	"voiceforge/internal/queue"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAddAndListLocalSource(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	source := filepath.Join(t.TempDir(), "narrator.wav")
	if err := os.WriteFile(source, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	out, err := runCLI(t, "add", source, "--name", "My Narrator")
	if err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "my_narrator") || !strings.Contains(out, "fetched") {
		t.Errorf("add output = %q", out)
	}

	out, err = runCLI(t, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "My Narrator") {
		t.Errorf("list output = %q", out)
	}

	out, err = runCLI(t, "queue", "list", "--status", "pending")
	if err != nil {
		t.Fatalf("queue list --status: %v\n%s", err, out)
	}
	if !strings.Contains(out, "queue is empty") {
		t.Errorf("filtered list output = %q", out)
	}
}

func TestAddRequiresName(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, err := runCLI(t, "add", "https://example.com/v"); err == nil {
		t.Fatal("expected error without --name")
	}
}

func TestAddRejectsMissingLocalFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, err := runCLI(t, "add", "/nonexistent/audio.wav", "--name", "ghost"); err == nil {
		t.Fatal("expected error for missing local file")
	}
}

func TestQueueRemoveAndClear(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, err := runCLI(t, "add", "https://example.com/v", "--name", "narrator")
	if err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}

	out, err = runCLI(t, "queue", "remove", "1")
	if err != nil {
		t.Fatalf("remove: %v\n%s", err, out)
	}
	if !strings.Contains(out, "removed item 1") {
		t.Errorf("remove output = %q", out)
	}

	out, err = runCLI(t, "queue", "clear")
	if err != nil {
		t.Fatalf("clear: %v\n%s", err, out)
	}
	if !strings.Contains(out, "removed 0 items") {
		t.Errorf("clear output = %q", out)
	}
}

// mutateItem applies fn to item 1 in the queue database the CLI commands use.
func mutateItem(t *testing.T, fn func(cfg *config.Config, item *queue.Item)) {
	t.Helper()
	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	store, err := queue.Open(ctx, cfg.QueueDatabasePath())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	item, err := store.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	fn(cfg, item)
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestCheckpointsFailsWhenNoneExist(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	source := filepath.Join(t.TempDir(), "narrator.wav")
	if err := os.WriteFile(source, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if out, err := runCLI(t, "add", source, "--name", "narrator"); err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}

	mutateItem(t, func(cfg *config.Config, item *queue.Item) {
		layout := dataset.NewLayout(cfg.Paths.StagingDir, item.ID)
		if err := layout.EnsureTree(); err != nil {
			t.Fatalf("EnsureTree: %v", err)
		}
		item.StagingDir = layout.Root
	})

	_, err := runCLI(t, "checkpoints", "1")
	if !errors.Is(err, checkpoint.ErrNoCheckpoints) {
		t.Fatalf("err = %v, want ErrNoCheckpoints", err)
	}
}

func TestCheckpointsListsResumeCandidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	source := filepath.Join(t.TempDir(), "narrator.wav")
	if err := os.WriteFile(source, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if out, err := runCLI(t, "add", source, "--name", "narrator"); err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}

	mutateItem(t, func(cfg *config.Config, item *queue.Item) {
		layout := dataset.NewLayout(cfg.Paths.StagingDir, item.ID)
		if err := layout.EnsureTree(); err != nil {
			t.Fatalf("EnsureTree: %v", err)
		}
		item.StagingDir = layout.Root
		for _, name := range []string{"epoch=9-step=450.ckpt", "epoch=10-step=500.ckpt"} {
			path := filepath.Join(layout.TrainingDir(), name)
			if err := os.WriteFile(path, []byte("ckpt"), 0o644); err != nil {
				t.Fatalf("write checkpoint: %v", err)
			}
		}
	})

	out, err := runCLI(t, "checkpoints", "1")
	if err != nil {
		t.Fatalf("checkpoints: %v\n%s", err, out)
	}
	if !strings.Contains(out, "resume candidate:") || !strings.Contains(out, "epoch=10-step=500.ckpt") {
		t.Errorf("resume candidate missing: %q", out)
	}
}

func TestQueueDescribePrintsJSON(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if out, err := runCLI(t, "add", "https://example.com/v", "--name", "narrator"); err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}

	out, err := runCLI(t, "queue", "describe", "1")
	if err != nil {
		t.Fatalf("describe: %v\n%s", err, out)
	}

	var view struct {
		ID        int64  `json:"id"`
		VoiceName string `json:"voice_name"`
		Status    string `json:"status"`
		SourceURL string `json:"source_url"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if view.ID != 1 || view.VoiceName != "narrator" || view.Status != "pending" {
		t.Errorf("view = %+v", view)
	}
	if view.SourceURL != "https://example.com/v" {
		t.Errorf("source url = %q", view.SourceURL)
	}
}

func TestQueueResetReturnsStuckItems(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if out, err := runCLI(t, "add", "https://example.com/v", "--name", "narrator"); err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}
	mutateItem(t, func(_ *config.Config, item *queue.Item) {
		item.Status = queue.StatusTraining
	})

	// In-flight items are protected from removal.
	if _, err := runCLI(t, "queue", "remove", "1"); err == nil {
		t.Fatal("expected removal of an in-flight item to be refused")
	}

	out, err := runCLI(t, "queue", "reset")
	if err != nil {
		t.Fatalf("reset: %v\n%s", err, out)
	}
	if !strings.Contains(out, "reset 1 stuck items") {
		t.Errorf("reset output = %q", out)
	}

	out, err = runCLI(t, "queue", "list", "--status", "transcribed")
	if err != nil {
		t.Fatalf("queue list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "narrator") {
		t.Errorf("item not returned to stage start: %q", out)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, "config.toml")

	out, err := runCLI(t, "config", "init", "--config", path)
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	out, err = runCLI(t, "config", "validate", "--config", path)
	if err != nil {
		t.Fatalf("config validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "is valid") {
		t.Errorf("validate output = %q", out)
	}
}

func TestStatusOfflineFallsBackToQueue(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, err := runCLI(t, "status")
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	if !strings.Contains(out, "daemon: not running") {
		t.Errorf("status output = %q", out)
	}
}
