package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks every section and returns all problems joined into a
// single error so the operator can fix the file in one pass.
func (c *Config) Validate() error {
	var problems []string

	collect := func(err error) {
		if err != nil {
			problems = append(problems, err.Error())
		}
	}

	collect(c.Paths.validate())
	collect(c.Fetch.validate())
	collect(c.Audio.validate())
	collect(c.Transcription.validate())
	collect(c.Training.validate())
	collect(c.Export.validate())
	collect(c.Workflow.validate())
	collect(c.Logging.validate())

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
}

func (p Paths) validate() error {
	if p.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if p.VoicesDir == "" {
		return errors.New("paths.voices_dir must be set")
	}
	if p.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (f Fetch) validate() error {
	if f.YtdlpBinary == "" {
		return errors.New("fetch.ytdlp_binary must be set")
	}
	if f.TimeoutSeconds <= 0 {
		return errors.New("fetch.timeout_seconds must be positive")
	}
	switch f.AudioFormat {
	case "wav", "flac", "m4a", "mp3", "opus":
	default:
		return fmt.Errorf("fetch.audio_format %q is not a supported extraction format", f.AudioFormat)
	}
	return nil
}

func (a Audio) validate() error {
	if a.FFmpegBinary == "" {
		return errors.New("audio.ffmpeg_binary must be set")
	}
	if a.FFprobeBinary == "" {
		return errors.New("audio.ffprobe_binary must be set")
	}
	if a.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got %d", a.Channels)
	}
	if a.ClipSeconds <= 0 {
		return errors.New("audio.clip_seconds must be positive")
	}
	if a.SilenceThresholdDB >= 0 {
		return fmt.Errorf("audio.silence_threshold_db must be negative, got %g", a.SilenceThresholdDB)
	}
	if a.SilenceMinSeconds <= 0 {
		return errors.New("audio.silence_min_seconds must be positive")
	}
	return nil
}

func (t Transcription) validate() error {
	if t.WhisperBinary == "" {
		return errors.New("transcription.whisper_binary must be set")
	}
	if t.Model == "" {
		return errors.New("transcription.model must be set")
	}
	if t.MinClips <= 0 {
		return errors.New("transcription.min_clips must be positive")
	}
	if t.MinSpeechSeconds < 0 {
		return errors.New("transcription.min_speech_seconds must not be negative")
	}
	if t.TimeoutSeconds <= 0 {
		return errors.New("transcription.timeout_seconds must be positive")
	}
	switch t.Device {
	case "auto", "cpu", "cuda":
	default:
		return fmt.Errorf("transcription.device %q must be auto, cpu, or cuda", t.Device)
	}
	return nil
}

func (t Training) validate() error {
	if t.TrainerBinary == "" {
		return errors.New("training.trainer_binary must be set")
	}
	switch t.Quality {
	case "x-low", "low", "medium", "high":
	default:
		return fmt.Errorf("training.quality %q must be x-low, low, medium, or high", t.Quality)
	}
	if t.BatchSize <= 0 {
		return errors.New("training.batch_size must be positive")
	}
	if t.MaxEpochs <= 0 {
		return errors.New("training.max_epochs must be positive")
	}
	if t.CheckpointEpochs <= 0 {
		return errors.New("training.checkpoint_epochs must be positive")
	}
	if t.TimeoutSeconds <= 0 {
		return errors.New("training.timeout_seconds must be positive")
	}
	switch t.Precision {
	case "16", "32", "bf16":
	default:
		return fmt.Errorf("training.precision %q must be 16, 32, or bf16", t.Precision)
	}
	return nil
}

func (e Export) validate() error {
	if e.ExporterBinary == "" {
		return errors.New("export.exporter_binary must be set")
	}
	return nil
}

func (w Workflow) validate() error {
	if w.QueuePollIntervalSeconds <= 0 {
		return errors.New("workflow.queue_poll_interval_seconds must be positive")
	}
	if w.ErrorRetryIntervalSeconds <= 0 {
		return errors.New("workflow.error_retry_interval_seconds must be positive")
	}
	if w.HeartbeatIntervalSeconds <= 0 {
		return errors.New("workflow.heartbeat_interval_seconds must be positive")
	}
	if w.HeartbeatTimeoutSeconds <= w.HeartbeatIntervalSeconds {
		return errors.New("workflow.heartbeat_timeout_seconds must exceed the heartbeat interval")
	}
	return nil
}

func (l Logging) validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", l.Level)
	}
	switch l.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", l.Format)
	}
	return nil
}
