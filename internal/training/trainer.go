// Package training implements the fine-tuning stage, including resume from
// the newest saved checkpoint.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"voiceforge/internal/checkpoint"
	"voiceforge/internal/config"
	"voiceforge/internal/dataset"
	"voiceforge/internal/logging"
	"voiceforge/internal/notifications"
	"voiceforge/internal/queue"
	"voiceforge/internal/services"
	"voiceforge/internal/services/piper"
	"voiceforge/internal/stage"
)

const progressPersistInterval = 2 * time.Second

// Handler fine-tunes the voice model on the transcribed dataset.
type Handler struct {
	cfg      *config.Config
	store    *queue.Store
	trainer  *piper.Trainer
	notifier notifications.Service
	logger   *slog.Logger
}

// NewHandler wires the train stage.
func NewHandler(cfg *config.Config, store *queue.Store, notifier notifications.Service, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		store:    store,
		trainer:  piper.NewTrainer(cfg.Training.TrainerBinary, logger),
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "training"),
	}
}

// Prepare validates the dataset and the configured base checkpoint.
func (h *Handler) Prepare(ctx context.Context, item *queue.Item) error {
	layout := dataset.Layout{Root: item.StagingDir}
	if _, err := os.Stat(layout.ManifestPath()); err != nil {
		return services.Wrap(services.ErrValidation, "train", "prepare",
			"transcript manifest missing; item was not transcribed", err)
	}
	if h.cfg.Training.BaseCheckpoint != "" {
		if _, err := os.Stat(h.cfg.Training.BaseCheckpoint); err != nil {
			return services.Wrap(services.ErrConfiguration, "train", "prepare",
				fmt.Sprintf("base checkpoint %s is not readable", h.cfg.Training.BaseCheckpoint), err)
		}
	}
	return nil
}

// Execute runs fine-tuning. When resume is enabled and the run directory
// already holds checkpoints, training continues from the newest one by
// numeric (epoch, step) order; otherwise it starts from the configured base
// checkpoint.
func (h *Handler) Execute(ctx context.Context, item *queue.Item) error {
	layout := dataset.Layout{Root: item.StagingDir}
	log := logging.WithContext(ctx, h.logger)

	resume, err := h.resumeCheckpoint(layout.TrainingDir())
	if err != nil {
		return err
	}
	if resume != "" {
		log.Info("resuming training", logging.String("checkpoint", resume))
	} else {
		log.Info("starting fresh training run",
			logging.String("base_checkpoint", h.cfg.Training.BaseCheckpoint))
	}

	if err := h.notifier.Publish(ctx, notifications.EventTrainingStarted,
		"Training started", fmt.Sprintf("%s: fine-tuning %d clips", item.VoiceName, item.ClipCount)); err != nil {
		log.Warn("notification failed", logging.Error(err))
	}

	timeout := time.Duration(h.cfg.Training.TimeoutSeconds) * time.Second
	trainCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := piper.TrainOptions{
		DatasetDir:       layout.ClipsDir(),
		RunDir:           layout.TrainingDir(),
		ResumeCheckpoint: resume,
		Quality:          h.cfg.Training.Quality,
		BatchSize:        h.cfg.Training.BatchSize,
		MaxEpochs:        h.cfg.Training.MaxEpochs,
		Precision:        h.cfg.Training.Precision,
		CheckpointEpochs: h.cfg.Training.CheckpointEpochs,
		SampleRate:       h.cfg.Audio.SampleRate,
	}

	lastPersist := time.Time{}
	err = h.trainer.Train(trainCtx, opts, func(p piper.TrainProgress) {
		item.SetProgress(p.Percent, p.Message)
		if time.Since(lastPersist) < progressPersistInterval {
			return
		}
		lastPersist = time.Now()
		if err := h.store.Update(ctx, item); err != nil {
			log.Warn("persist training progress", logging.Error(err))
		}
	})
	if err != nil {
		if trainCtx.Err() == context.DeadlineExceeded {
			return services.Wrap(services.ErrTimeout, "train", "fine-tune",
				fmt.Sprintf("exceeded %s", timeout), err)
		}
		return err
	}

	final, err := checkpoint.Latest(layout.TrainingDir())
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "train", "verify output",
			"trainer finished without writing a checkpoint", err)
	}

	item.CheckpointPath = final.Path
	item.SetProgress(100, fmt.Sprintf("trained through epoch %d", final.Epoch))
	log.Info("training complete",
		logging.Int64("epoch", final.Epoch),
		logging.Int64("step", final.Step),
		logging.String("checkpoint", final.Path))

	if err := h.notifier.Publish(ctx, notifications.EventTrainingComplete,
		"Training complete", fmt.Sprintf("%s: reached epoch %d", item.VoiceName, final.Epoch)); err != nil {
		log.Warn("notification failed", logging.Error(err))
	}
	return nil
}

// resumeCheckpoint picks the checkpoint to continue from, or the base
// checkpoint when the run directory is empty. An empty return with resume
// disabled means the trainer starts from scratch.
func (h *Handler) resumeCheckpoint(runDir string) (string, error) {
	if !h.cfg.Training.Resume {
		return h.cfg.Training.BaseCheckpoint, nil
	}
	latest, err := checkpoint.Latest(runDir)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNoCheckpoints) {
			return h.cfg.Training.BaseCheckpoint, nil
		}
		return "", services.Wrap(services.ErrValidation, "train", "select checkpoint", runDir, err)
	}
	return latest.Path, nil
}

// HealthCheck verifies the trainer binary is available.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(h.cfg.Training.TrainerBinary); err != nil {
		return stage.Unhealthy("train", fmt.Sprintf("trainer not found: %v", err))
	}
	return stage.Healthy("train")
}
