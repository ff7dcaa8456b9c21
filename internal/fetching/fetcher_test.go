package fetching

import (
	"context"
	"errors"
	"os"
	"testing"

	"voiceforge/internal/logging"
	"voiceforge/internal/notifications"
	"voiceforge/internal/queue"
	"voiceforge/internal/services"
	"voiceforge/internal/testsupport"
)

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, notifications.Event, string, string) error { return nil }

func newTestHandler(t *testing.T) (*Handler, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return NewHandler(cfg, store, nopNotifier{}, logging.NewNop()), store
}

func TestPrepareCreatesStagingTree(t *testing.T) {
	handler, store := newTestHandler(t)

	item, err := store.NewRemote(context.Background(), "narrator", "https://example.com/v")
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if item.StagingDir == "" {
		t.Fatal("staging dir not assigned")
	}
	info, err := os.Stat(item.StagingDir)
	if err != nil || !info.IsDir() {
		t.Fatalf("staging dir not created: %v", err)
	}
}

func TestPrepareRejectsMissingURL(t *testing.T) {
	handler, store := newTestHandler(t)

	item, err := store.NewLocal(context.Background(), "narrator", "/data/narrator.wav")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	err = handler.Prepare(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestHealthCheck(t *testing.T) {
	handler, _ := newTestHandler(t)

	handler.cfg.Fetch.YtdlpBinary = "voiceforge-missing-ytdlp"
	if health := handler.HealthCheck(context.Background()); health.Ready {
		t.Error("missing yt-dlp should be unhealthy")
	}

	testsupport.WithStubbedBinaries(t, "yt-dlp")
	handler.cfg.Fetch.YtdlpBinary = "yt-dlp"
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Errorf("stubbed yt-dlp should be healthy: %s", health.Detail)
	}
}
