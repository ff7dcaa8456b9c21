package training

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"voiceforge/internal/dataset"
	"voiceforge/internal/logging"
	"voiceforge/internal/notifications"
	"voiceforge/internal/queue"
	"voiceforge/internal/services"
	"voiceforge/internal/testsupport"
)

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, notifications.Event, string, string) error { return nil }

func newTestHandler(t *testing.T) (*Handler, *queue.Store, *queue.Item) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	item, err := store.NewLocal(context.Background(), "narrator", "/data/narrator.wav")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	layout := dataset.NewLayout(cfg.Paths.StagingDir, item.ID)
	if err := layout.EnsureTree(); err != nil {
		t.Fatalf("EnsureTree: %v", err)
	}
	item.StagingDir = layout.Root

	return NewHandler(cfg, store, nopNotifier{}, logging.NewNop()), store, item
}

func TestPrepareRequiresManifest(t *testing.T) {
	handler, _, item := newTestHandler(t)

	err := handler.Prepare(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestPrepareRejectsMissingBaseCheckpoint(t *testing.T) {
	handler, _, item := newTestHandler(t)
	layout := dataset.Layout{Root: item.StagingDir}
	testsupport.WriteFile(t, layout.ManifestPath(), []byte("id|text\n"))

	handler.cfg.Training.BaseCheckpoint = filepath.Join(t.TempDir(), "absent.ckpt")
	err := handler.Prepare(context.Background(), item)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestPreparePassesWithDataset(t *testing.T) {
	handler, _, item := newTestHandler(t)
	layout := dataset.Layout{Root: item.StagingDir}
	testsupport.WriteFile(t, layout.ManifestPath(), []byte("id|text\n"))

	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
}

func TestResumeCheckpointPrefersRunDirectory(t *testing.T) {
	handler, _, item := newTestHandler(t)
	layout := dataset.Layout{Root: item.StagingDir}
	runDir := layout.TrainingDir()

	testsupport.WriteFile(t, filepath.Join(runDir, "epoch=5-step=250.ckpt"), []byte("ckpt"))
	testsupport.WriteFile(t, filepath.Join(runDir, "epoch=12-step=600.ckpt"), []byte("ckpt"))

	resume, err := handler.resumeCheckpoint(runDir)
	if err != nil {
		t.Fatalf("resumeCheckpoint: %v", err)
	}
	if filepath.Base(resume) != "epoch=12-step=600.ckpt" {
		t.Errorf("resume = %s", resume)
	}
}

func TestResumeCheckpointFallsBackToBase(t *testing.T) {
	handler, _, item := newTestHandler(t)
	layout := dataset.Layout{Root: item.StagingDir}
	handler.cfg.Training.BaseCheckpoint = "/models/base-medium.ckpt"

	resume, err := handler.resumeCheckpoint(layout.TrainingDir())
	if err != nil {
		t.Fatalf("resumeCheckpoint: %v", err)
	}
	if resume != "/models/base-medium.ckpt" {
		t.Errorf("resume = %s, want base checkpoint", resume)
	}
}

func TestResumeCheckpointDisabledUsesBase(t *testing.T) {
	handler, _, item := newTestHandler(t)
	layout := dataset.Layout{Root: item.StagingDir}
	handler.cfg.Training.Resume = false
	handler.cfg.Training.BaseCheckpoint = "/models/base.ckpt"

	testsupport.WriteFile(t, filepath.Join(layout.TrainingDir(), "epoch=9-step=450.ckpt"), []byte("ckpt"))

	resume, err := handler.resumeCheckpoint(layout.TrainingDir())
	if err != nil {
		t.Fatalf("resumeCheckpoint: %v", err)
	}
	if resume != "/models/base.ckpt" {
		t.Errorf("resume = %s, want base checkpoint when resume disabled", resume)
	}
}

func TestHealthCheck(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	handler.cfg.Training.TrainerBinary = "voiceforge-missing-trainer"
	if health := handler.HealthCheck(context.Background()); health.Ready {
		t.Error("missing trainer should be unhealthy")
	}

	testsupport.WithStubbedBinaries(t, "piper-train")
	handler.cfg.Training.TrainerBinary = "piper-train"
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Errorf("stubbed trainer should be healthy: %s", health.Detail)
	}
}
