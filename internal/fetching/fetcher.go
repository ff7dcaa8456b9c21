// Package fetching implements the source audio download stage.
package fetching

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"voiceforge/internal/config"
	"voiceforge/internal/dataset"
	"voiceforge/internal/logging"
	"voiceforge/internal/notifications"
	"voiceforge/internal/queue"
	"voiceforge/internal/services"
	"voiceforge/internal/services/ytdlp"
	"voiceforge/internal/stage"
)

const progressPersistInterval = 2 * time.Second

// Handler downloads source audio for remote queue items.
type Handler struct {
	cfg      *config.Config
	store    *queue.Store
	client   *ytdlp.Client
	notifier notifications.Service
	logger   *slog.Logger
}

// NewHandler wires the fetch stage.
func NewHandler(cfg *config.Config, store *queue.Store, notifier notifications.Service, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		store:    store,
		client:   ytdlp.New(cfg.Fetch.YtdlpBinary, cfg.Fetch.AudioFormat, logger),
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "fetching"),
	}
}

// Prepare validates the source URL and creates the item's working tree.
func (h *Handler) Prepare(ctx context.Context, item *queue.Item) error {
	if item.SourceURL == "" {
		return services.Wrap(services.ErrValidation, "fetch", "prepare", "item has no source URL", nil)
	}

	layout := dataset.NewLayout(h.cfg.Paths.StagingDir, item.ID)
	if err := layout.EnsureTree(); err != nil {
		return services.Wrap(services.ErrConfiguration, "fetch", "prepare", "create staging tree", err)
	}
	item.StagingDir = layout.Root
	return nil
}

// Execute downloads the audio track into the item's source directory.
func (h *Handler) Execute(ctx context.Context, item *queue.Item) error {
	layout := dataset.Layout{Root: item.StagingDir}
	log := logging.WithContext(ctx, h.logger)

	timeout := time.Duration(h.cfg.Fetch.TimeoutSeconds) * time.Second
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	lastPersist := time.Time{}
	sourcePath, err := h.client.Fetch(fetchCtx, item.SourceURL, layout.SourceDir(), func(p ytdlp.Progress) {
		item.SetProgress(p.Percent, p.Message)
		if time.Since(lastPersist) < progressPersistInterval {
			return
		}
		lastPersist = time.Now()
		if err := h.store.Update(ctx, item); err != nil {
			log.Warn("persist fetch progress", logging.Error(err))
		}
	})
	if err != nil {
		if fetchCtx.Err() == context.DeadlineExceeded {
			return services.Wrap(services.ErrTimeout, "fetch", "download",
				fmt.Sprintf("exceeded %s", timeout), err)
		}
		return err
	}

	info, err := os.Stat(sourcePath)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "fetch", "verify output", sourcePath, err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "fetch", "verify output",
			fmt.Sprintf("%s is empty", sourcePath), nil)
	}

	item.SourceAudioPath = sourcePath
	item.SetProgress(100, "download complete")
	log.Info("source audio fetched",
		logging.String("path", sourcePath),
		logging.Int64("bytes", info.Size()))

	if err := h.notifier.Publish(ctx, notifications.EventFetchComplete,
		"Source fetched", fmt.Sprintf("%s: source audio downloaded", item.VoiceName)); err != nil {
		log.Warn("notification failed", logging.Error(err))
	}
	return nil
}

// HealthCheck verifies yt-dlp is available.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(h.cfg.Fetch.YtdlpBinary); err != nil {
		return stage.Unhealthy("fetch", fmt.Sprintf("yt-dlp not found: %v", err))
	}
	return stage.Healthy("fetch")
}
