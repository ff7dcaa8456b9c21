package config

// Default returns a configuration populated with every default value.
// Boolean defaults, and numeric defaults whose zero value is meaningful,
// are set here rather than in applyDefaults so an explicit zero or false
// in the config file survives the backfill pass.
func Default() *Config {
	cfg := &Config{}
	cfg.Transcription.MinSpeechSeconds = 0.5
	cfg.Training.Resume = true
	cfg.Notifications.NotifyFetch = true
	cfg.Notifications.NotifyDataset = true
	cfg.Notifications.NotifyTraining = true
	cfg.Notifications.NotifyExport = true
	cfg.Notifications.NotifyErrors = true
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Paths.StagingDir == "" {
		c.Paths.StagingDir = "~/.local/share/voiceforge/staging"
	}
	if c.Paths.VoicesDir == "" {
		c.Paths.VoicesDir = "~/.local/share/voiceforge/voices"
	}
	if c.Paths.LogDir == "" {
		c.Paths.LogDir = "~/.local/share/voiceforge/logs"
	}

	if c.Fetch.YtdlpBinary == "" {
		c.Fetch.YtdlpBinary = "yt-dlp"
	}
	if c.Fetch.AudioFormat == "" {
		c.Fetch.AudioFormat = "wav"
	}
	if c.Fetch.TimeoutSeconds == 0 {
		c.Fetch.TimeoutSeconds = 1800
	}

	if c.Audio.FFmpegBinary == "" {
		c.Audio.FFmpegBinary = "ffmpeg"
	}
	if c.Audio.FFprobeBinary == "" {
		c.Audio.FFprobeBinary = "ffprobe"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 22050
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.ClipSeconds == 0 {
		c.Audio.ClipSeconds = 10
	}
	if c.Audio.SilenceThresholdDB == 0 {
		c.Audio.SilenceThresholdDB = -35
	}
	if c.Audio.SilenceMinSeconds == 0 {
		c.Audio.SilenceMinSeconds = 1.0
	}

	if c.Transcription.WhisperBinary == "" {
		c.Transcription.WhisperBinary = "whisper"
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = "medium.en"
	}
	if c.Transcription.Language == "" {
		c.Transcription.Language = "en"
	}
	if c.Transcription.Device == "" {
		c.Transcription.Device = "auto"
	}
	if c.Transcription.MinClips == 0 {
		c.Transcription.MinClips = 50
	}
	if c.Transcription.TimeoutSeconds == 0 {
		c.Transcription.TimeoutSeconds = 3600
	}

	if c.Training.TrainerBinary == "" {
		c.Training.TrainerBinary = "piper-train"
	}
	if c.Training.Quality == "" {
		c.Training.Quality = "medium"
	}
	if c.Training.BatchSize == 0 {
		c.Training.BatchSize = 16
	}
	if c.Training.MaxEpochs == 0 {
		c.Training.MaxEpochs = 3000
	}
	if c.Training.Precision == "" {
		c.Training.Precision = "32"
	}
	if c.Training.CheckpointEpochs == 0 {
		c.Training.CheckpointEpochs = 5
	}
	if c.Training.TimeoutSeconds == 0 {
		c.Training.TimeoutSeconds = 86400
	}

	if c.Export.ExporterBinary == "" {
		c.Export.ExporterBinary = "piper-export"
	}

	if c.Workflow.QueuePollIntervalSeconds == 0 {
		c.Workflow.QueuePollIntervalSeconds = 5
	}
	if c.Workflow.ErrorRetryIntervalSeconds == 0 {
		c.Workflow.ErrorRetryIntervalSeconds = 30
	}
	if c.Workflow.HeartbeatIntervalSeconds == 0 {
		c.Workflow.HeartbeatIntervalSeconds = 15
	}
	if c.Workflow.HeartbeatTimeoutSeconds == 0 {
		c.Workflow.HeartbeatTimeoutSeconds = 300
	}

	if c.Notifications.RequestTimeoutSeconds == 0 {
		c.Notifications.RequestTimeoutSeconds = 10
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}
