// Package transcribing implements the clip transcription stage and builds
// the transcript manifest the trainer consumes.
package transcribing

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"voiceforge/internal/config"
	"voiceforge/internal/dataset"
	"voiceforge/internal/logging"
	"voiceforge/internal/notifications"
	"voiceforge/internal/queue"
	"voiceforge/internal/services"
	"voiceforge/internal/services/whisper"
	"voiceforge/internal/stage"
)

const progressPersistInterval = 2 * time.Second

// speechToText is the slice of the whisper service the stage consumes.
type speechToText interface {
	Transcribe(ctx context.Context, wavPath, outputDir string) (whisper.Result, error)
}

// Handler transcribes every prepared clip and writes the manifest.
type Handler struct {
	cfg      *config.Config
	store    *queue.Store
	stt      speechToText
	notifier notifications.Service
	logger   *slog.Logger
}

// NewHandler wires the transcribe stage.
func NewHandler(cfg *config.Config, store *queue.Store, notifier notifications.Service, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:   cfg,
		store: store,
		stt: whisper.New(whisper.Config{
			Binary:   cfg.Transcription.WhisperBinary,
			Model:    cfg.Transcription.Model,
			Language: cfg.Transcription.Language,
			Device:   cfg.Transcription.Device,
		}, logger),
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "transcribing"),
	}
}

// Prepare confirms the item has prepared clips to transcribe.
func (h *Handler) Prepare(ctx context.Context, item *queue.Item) error {
	if item.StagingDir == "" || item.DatasetDir == "" {
		return services.Wrap(services.ErrValidation, "transcribe", "prepare",
			"item has no prepared dataset", nil)
	}
	clips, err := h.listClips(item)
	if err != nil {
		return err
	}
	if len(clips) == 0 {
		return services.Wrap(services.ErrValidation, "transcribe", "prepare",
			"dataset contains no clips", nil)
	}
	return nil
}

// Execute transcribes each clip. Clip IDs carry a content digest, so a
// transcript sidecar left by an earlier pass is still valid for the same
// bytes and is reused instead of re-running whisper. Clips whose
// transcription comes back empty or with too little recognized speech are
// dropped from the manifest rather than failing the build; the build only
// stops when the surviving dataset is smaller than the configured minimum.
func (h *Handler) Execute(ctx context.Context, item *queue.Item) error {
	layout := dataset.Layout{Root: item.StagingDir}
	log := logging.WithContext(ctx, h.logger)

	clips, err := h.listClips(item)
	if err != nil {
		return err
	}

	timeout := time.Duration(h.cfg.Transcription.TimeoutSeconds) * time.Second
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	transcriptDir := filepath.Join(layout.ClipsDir(), "transcripts")
	minSpeechMs := int64(h.cfg.Transcription.MinSpeechSeconds * 1000)
	entries := make([]dataset.Entry, 0, len(clips))
	dropped := 0
	reused := 0
	var totalSpeechMs int64
	lastPersist := time.Time{}

	for i, clip := range clips {
		id := strings.TrimSuffix(filepath.Base(clip), ".wav")

		result, err := whisper.LoadResult(filepath.Join(transcriptDir, id+".json"))
		if err == nil {
			reused++
			log.Debug("transcript reused", logging.String("clip", id))
		} else {
			result, err = h.stt.Transcribe(stageCtx, clip, transcriptDir)
			if err != nil {
				if stageCtx.Err() == context.DeadlineExceeded {
					return services.Wrap(services.ErrTimeout, "transcribe", "whisper",
						fmt.Sprintf("exceeded %s after %d of %d clips", timeout, i, len(clips)), err)
				}
				return err
			}
		}

		text := dataset.SanitizeText(result.CleanText())
		if text == "" {
			dropped++
			log.Debug("clip dropped: empty transcription", logging.String("clip", id))
			continue
		}
		speechMs := result.SpeechMilliseconds()
		if minSpeechMs > 0 && speechMs < minSpeechMs {
			dropped++
			log.Debug("clip dropped: too little speech",
				logging.String("clip", id),
				logging.Int64("speech_ms", speechMs))
			continue
		}
		totalSpeechMs += speechMs
		entries = append(entries, dataset.Entry{ID: id, Text: text})

		item.SetProgress(float64(i+1)/float64(len(clips))*100,
			fmt.Sprintf("transcribed %d of %d clips", i+1, len(clips)))
		if time.Since(lastPersist) >= progressPersistInterval {
			lastPersist = time.Now()
			if err := h.store.Update(ctx, item); err != nil {
				log.Warn("persist transcription progress", logging.Error(err))
			}
		}
	}

	if len(entries) < h.cfg.Transcription.MinClips {
		return services.Wrap(services.ErrValidation, "transcribe", "dataset admission",
			fmt.Sprintf("only %d usable clips after dropping %d empty transcriptions; minimum is %d",
				len(entries), dropped, h.cfg.Transcription.MinClips), nil)
	}

	if err := dataset.WriteManifest(layout.ManifestPath(), entries); err != nil {
		return services.Wrap(services.ErrValidation, "transcribe", "write manifest", "", err)
	}

	if result := dataset.Validate(layout.WavDir(), entries); !result.OK() {
		return services.Wrap(services.ErrValidation, "transcribe", "verify manifest", "", result.Err())
	}

	item.ClipCount = len(entries)
	item.SetProgress(100, fmt.Sprintf("%d clips transcribed, %d dropped", len(entries), dropped))
	log.Info("transcript manifest written",
		logging.Int("clips", len(entries)),
		logging.Int("dropped", dropped),
		logging.Int("reused", reused),
		logging.Int64("speech_ms", totalSpeechMs))

	if err := h.notifier.Publish(ctx, notifications.EventDatasetReady,
		"Dataset ready", fmt.Sprintf("%s: %d clips transcribed", item.VoiceName, len(entries))); err != nil {
		log.Warn("notification failed", logging.Error(err))
	}
	return nil
}

func (h *Handler) listClips(item *queue.Item) ([]string, error) {
	layout := dataset.Layout{Root: item.StagingDir}
	clips, err := filepath.Glob(filepath.Join(layout.WavDir(), "*.wav"))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "transcribe", "list clips", "", err)
	}
	sort.Strings(clips)
	return clips, nil
}

// HealthCheck verifies whisper is available.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(h.cfg.Transcription.WhisperBinary); err != nil {
		return stage.Unhealthy("transcribe", fmt.Sprintf("whisper not found: %v", err))
	}
	return stage.Healthy("transcribe")
}
