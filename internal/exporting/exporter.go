// Package exporting implements the final stage: converting the trained
// checkpoint to ONNX and publishing it into the voice library.
package exporting

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"voiceforge/internal/config"
	"voiceforge/internal/dataset"
	"voiceforge/internal/fileutil"
	"voiceforge/internal/logging"
	"voiceforge/internal/notifications"
	"voiceforge/internal/queue"
	"voiceforge/internal/services"
	"voiceforge/internal/services/piper"
	"voiceforge/internal/stage"
)

// Handler exports the trained model and installs it in the voices library.
type Handler struct {
	cfg      *config.Config
	store    *queue.Store
	exporter *piper.Exporter
	notifier notifications.Service
	logger   *slog.Logger
}

// NewHandler wires the export stage.
func NewHandler(cfg *config.Config, store *queue.Store, notifier notifications.Service, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		store:    store,
		exporter: piper.NewExporter(cfg.Export.ExporterBinary, logger),
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "exporting"),
	}
}

// Prepare validates the checkpoint, the trainer's model config, and the
// destination in the voice library.
func (h *Handler) Prepare(ctx context.Context, item *queue.Item) error {
	if item.CheckpointPath == "" {
		return services.Wrap(services.ErrValidation, "export", "prepare",
			"item has no trained checkpoint", nil)
	}
	if _, err := os.Stat(item.CheckpointPath); err != nil {
		return services.Wrap(services.ErrValidation, "export", "prepare",
			fmt.Sprintf("checkpoint %s is not readable", item.CheckpointPath), err)
	}

	layout := dataset.Layout{Root: item.StagingDir}
	if _, err := os.Stat(h.modelConfigPath(layout)); err != nil {
		return services.Wrap(services.ErrValidation, "export", "prepare",
			"trainer model config missing from run directory", err)
	}

	if !h.cfg.Export.OverwriteExisting {
		target := h.publishedModelPath(item)
		if _, err := os.Stat(target); err == nil {
			return services.Wrap(services.ErrValidation, "export", "prepare",
				fmt.Sprintf("voice already exists at %s; enable export.overwrite_existing to replace it", target), nil)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrValidation, "export", "prepare", target, err)
		}
	}
	return nil
}

// Execute converts the checkpoint to ONNX in the staging export dir, then
// copies the model and its JSON sidecar into the voice library with digest
// verification.
func (h *Handler) Execute(ctx context.Context, item *queue.Item) error {
	layout := dataset.Layout{Root: item.StagingDir}
	log := logging.WithContext(ctx, h.logger)
	slug := dataset.VoiceSlug(item.VoiceName)

	item.SetProgress(10, "exporting checkpoint to ONNX")
	if err := h.store.Update(ctx, item); err != nil {
		log.Warn("persist progress", logging.Error(err))
	}

	stagedModel := filepath.Join(layout.ExportDir(), slug+".onnx")
	err := h.exporter.Export(ctx, item.CheckpointPath, h.modelConfigPath(layout), stagedModel)
	if err != nil {
		return err
	}

	item.SetProgress(70, "publishing voice")
	if err := h.store.Update(ctx, item); err != nil {
		log.Warn("persist progress", logging.Error(err))
	}

	published := h.publishedModelPath(item)
	if err := fileutil.CopyFileVerified(stagedModel, published); err != nil {
		return services.Wrap(services.ErrValidation, "export", "publish model", published, err)
	}
	if err := fileutil.CopyFileVerified(stagedModel+".json", published+".json"); err != nil {
		return services.Wrap(services.ErrValidation, "export", "publish config", published+".json", err)
	}

	item.ModelPath = published
	item.SetProgress(100, "voice published")
	log.Info("voice published",
		logging.String("voice", dataset.DisplayName(item.VoiceName)),
		logging.String("model", published))

	if err := h.notifier.Publish(ctx, notifications.EventVoiceExported,
		"Voice exported", fmt.Sprintf("%s is ready at %s", dataset.DisplayName(item.VoiceName), published)); err != nil {
		log.Warn("notification failed", logging.Error(err))
	}
	return nil
}

func (h *Handler) modelConfigPath(layout dataset.Layout) string {
	return filepath.Join(layout.TrainingDir(), "config.json")
}

func (h *Handler) publishedModelPath(item *queue.Item) string {
	slug := dataset.VoiceSlug(item.VoiceName)
	return filepath.Join(h.cfg.Paths.VoicesDir, slug, slug+".onnx")
}

// HealthCheck verifies the exporter binary is available.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(h.cfg.Export.ExporterBinary); err != nil {
		return stage.Unhealthy("export", fmt.Sprintf("exporter not found: %v", err))
	}
	return stage.Healthy("export")
}
