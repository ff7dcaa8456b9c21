// Package preparing implements the audio conditioning stage: silence
// removal, fixed-length segmentation, and resampling to the training format.
package preparing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"voiceforge/internal/config"
	"voiceforge/internal/dataset"
	"voiceforge/internal/fileutil"
	"voiceforge/internal/logging"
	"voiceforge/internal/queue"
	"voiceforge/internal/services"
	"voiceforge/internal/services/ffmpeg"
	"voiceforge/internal/stage"
)

// Handler turns one source recording into normalized training clips.
type Handler struct {
	cfg    *config.Config
	store  *queue.Store
	audio  *ffmpeg.Service
	logger *slog.Logger
}

// NewHandler wires the prepare stage.
func NewHandler(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:    cfg,
		store:  store,
		audio:  ffmpeg.New(cfg.Audio.FFmpegBinary, cfg.Audio.FFprobeBinary, logger),
		logger: logging.NewComponentLogger(logger, "preparing"),
	}
}

// Prepare stages the source audio. Local-file items arrive here without a
// working tree, so one is created and the source copied in.
func (h *Handler) Prepare(ctx context.Context, item *queue.Item) error {
	if item.StagingDir == "" {
		layout := dataset.NewLayout(h.cfg.Paths.StagingDir, item.ID)
		if err := layout.EnsureTree(); err != nil {
			return services.Wrap(services.ErrConfiguration, "prepare", "create staging tree", "", err)
		}
		item.StagingDir = layout.Root
	}

	if item.SourceAudioPath == "" {
		if item.SourcePath == "" {
			return services.Wrap(services.ErrValidation, "prepare", "stage source",
				"item has neither fetched audio nor a local source file", nil)
		}
		if _, err := os.Stat(item.SourcePath); err != nil {
			return services.Wrap(services.ErrValidation, "prepare", "stage source",
				fmt.Sprintf("local source %s is not readable", item.SourcePath), err)
		}
		layout := dataset.Layout{Root: item.StagingDir}
		staged := filepath.Join(layout.SourceDir(), "source"+filepath.Ext(item.SourcePath))
		if err := fileutil.CopyFileVerified(item.SourcePath, staged); err != nil {
			return services.Wrap(services.ErrValidation, "prepare", "stage source", "", err)
		}
		item.SourceAudioPath = staged
	}
	return nil
}

// Execute conditions the source into fixed-length clips at the training
// sample rate and channel count.
func (h *Handler) Execute(ctx context.Context, item *queue.Item) error {
	layout := dataset.Layout{Root: item.StagingDir}
	log := logging.WithContext(ctx, h.logger)

	info, err := h.audio.Probe(ctx, item.SourceAudioPath)
	if err != nil {
		return err
	}
	log.Info("source audio probed",
		logging.Float64("duration_seconds", info.DurationSeconds),
		logging.Int("sample_rate", info.SampleRate),
		logging.Int("channels", info.Channels))

	workDir := filepath.Join(layout.Root, "work")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "prepare", "create work directory", "", err)
	}
	defer os.RemoveAll(workDir)

	item.SetProgress(10, "removing silence")
	if err := h.store.Update(ctx, item); err != nil {
		log.Warn("persist progress", logging.Error(err))
	}
	trimmed := filepath.Join(workDir, "trimmed.wav")
	err = h.audio.RemoveSilence(ctx, item.SourceAudioPath, trimmed,
		h.cfg.Audio.SilenceThresholdDB, h.cfg.Audio.SilenceMinSeconds)
	if err != nil {
		return err
	}

	item.SetProgress(40, "segmenting clips")
	if err := h.store.Update(ctx, item); err != nil {
		log.Warn("persist progress", logging.Error(err))
	}
	rawDir := filepath.Join(workDir, "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "prepare", "create raw clip directory", "", err)
	}
	pattern := filepath.Join(rawDir, "clip_%04d.wav")
	if err := h.audio.Segment(ctx, trimmed, pattern, h.cfg.Audio.ClipSeconds); err != nil {
		return err
	}

	rawClips, err := filepath.Glob(filepath.Join(rawDir, "clip_*.wav"))
	if err != nil || len(rawClips) == 0 {
		return services.Wrap(services.ErrValidation, "prepare", "segment",
			"no clips produced; source may be entirely silence", err)
	}
	sort.Strings(rawClips)

	item.SetProgress(60, "resampling clips")
	if err := h.store.Update(ctx, item); err != nil {
		log.Warn("persist progress", logging.Error(err))
	}

	count, err := h.normalizeClips(ctx, item, rawClips, layout)
	if err != nil {
		return err
	}

	item.DatasetDir = layout.ClipsDir()
	item.ClipCount = count
	item.SetProgress(100, fmt.Sprintf("%d clips prepared", count))
	log.Info("clips prepared", logging.Int("clips", count))
	return nil
}

// normalizeClips resamples each raw clip to the training format and names it
// by voice slug, sequence, and content digest. The final partial clip is
// dropped when shorter than half the configured clip length.
func (h *Handler) normalizeClips(ctx context.Context, item *queue.Item, rawClips []string, layout dataset.Layout) (int, error) {
	minSeconds := float64(h.cfg.Audio.ClipSeconds) / 2
	count := 0
	for i, raw := range rawClips {
		if i == len(rawClips)-1 {
			info, err := h.audio.Probe(ctx, raw)
			if err != nil {
				return count, err
			}
			if info.DurationSeconds < minSeconds {
				continue
			}
		}

		resampled := raw + ".norm.wav"
		err := h.audio.Resample(ctx, raw, resampled, h.cfg.Audio.SampleRate, h.cfg.Audio.Channels)
		if err != nil {
			return count, err
		}

		id, err := dataset.ClipID(item.VoiceName, count+1, resampled)
		if err != nil {
			return count, services.Wrap(services.ErrValidation, "prepare", "fingerprint clip", raw, err)
		}
		final := filepath.Join(layout.WavDir(), id+".wav")
		if err := os.Rename(resampled, final); err != nil {
			return count, services.Wrap(services.ErrValidation, "prepare", "place clip", final, err)
		}
		count++
	}

	if count == 0 {
		return 0, services.Wrap(services.ErrValidation, "prepare", "normalize",
			"every clip was dropped during normalization", nil)
	}
	return count, nil
}

// HealthCheck verifies ffmpeg and ffprobe are available.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	for _, binary := range []string{h.cfg.Audio.FFmpegBinary, h.cfg.Audio.FFprobeBinary} {
		if _, err := exec.LookPath(binary); err != nil {
			return stage.Unhealthy("prepare", fmt.Sprintf("%s not found: %v", binary, err))
		}
	}
	return stage.Healthy("prepare")
}
