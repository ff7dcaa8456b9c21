package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// DefaultConfigPath is where the CLI and daemon look for configuration when
// no explicit path is given.
const DefaultConfigPath = "~/.config/voiceforge/config.toml"

// Config captures every tunable for the voice building pipeline. Values are
// loaded from TOML, backfilled from defaults, then validated.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Fetch         Fetch         `toml:"fetch"`
	Audio         Audio         `toml:"audio"`
	Transcription Transcription `toml:"transcription"`
	Training      Training      `toml:"training"`
	Export        Export        `toml:"export"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// Paths groups the directories the pipeline reads and writes.
type Paths struct {
	// StagingDir holds per-voice working trees while a build is in flight.
	StagingDir string `toml:"staging_dir"`
	// VoicesDir receives exported voice models.
	VoicesDir string `toml:"voices_dir"`
	// LogDir holds the queue database, daemon log, lock, and socket.
	LogDir string `toml:"log_dir"`
}

// Fetch controls source audio acquisition.
type Fetch struct {
	YtdlpBinary    string `toml:"ytdlp_binary"`
	AudioFormat    string `toml:"audio_format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Audio controls silence removal, segmentation, and resampling.
type Audio struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	// SampleRate is the output rate in Hz for every training clip.
	SampleRate int `toml:"sample_rate"`
	Channels   int `toml:"channels"`
	// ClipSeconds is the fixed duration of each segmented clip.
	ClipSeconds int `toml:"clip_seconds"`
	// SilenceThresholdDB is the level below which audio counts as silence.
	SilenceThresholdDB float64 `toml:"silence_threshold_db"`
	// SilenceMinSeconds is the minimum quiet run that gets cut.
	SilenceMinSeconds float64 `toml:"silence_min_seconds"`
}

// Transcription controls Whisper invocation and dataset admission.
type Transcription struct {
	WhisperBinary string `toml:"whisper_binary"`
	Model         string `toml:"model"`
	Language      string `toml:"language"`
	Device        string `toml:"device"`
	// MinClips is the smallest usable dataset. Builds with fewer transcribed
	// clips are parked for review instead of trained.
	MinClips int `toml:"min_clips"`
	// MinSpeechSeconds drops clips whose recognized speech, summed over the
	// Whisper segment timestamps, falls below this duration. Zero disables
	// the gate.
	MinSpeechSeconds float64 `toml:"min_speech_seconds"`
	TimeoutSeconds   int     `toml:"timeout_seconds"`
}

// Training controls the fine-tuning run.
type Training struct {
	TrainerBinary string `toml:"trainer_binary"`
	// BaseCheckpoint is the pretrained model fine-tuning starts from when no
	// run checkpoint exists yet.
	BaseCheckpoint   string `toml:"base_checkpoint"`
	Quality          string `toml:"quality"`
	BatchSize        int    `toml:"batch_size"`
	MaxEpochs        int    `toml:"max_epochs"`
	Precision        string `toml:"precision"`
	CheckpointEpochs int    `toml:"checkpoint_epochs"`
	Resume           bool   `toml:"resume"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Export controls ONNX export of a trained checkpoint.
type Export struct {
	ExporterBinary    string `toml:"exporter_binary"`
	OverwriteExisting bool   `toml:"overwrite_existing"`
}

// Workflow tunes the daemon's polling and health monitoring.
type Workflow struct {
	QueuePollIntervalSeconds  int `toml:"queue_poll_interval_seconds"`
	ErrorRetryIntervalSeconds int `toml:"error_retry_interval_seconds"`
	HeartbeatIntervalSeconds  int `toml:"heartbeat_interval_seconds"`
	HeartbeatTimeoutSeconds   int `toml:"heartbeat_timeout_seconds"`
}

// Notifications configures optional ntfy push updates.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	NotifyFetch           bool   `toml:"notify_fetch"`
	NotifyDataset         bool   `toml:"notify_dataset"`
	NotifyTraining        bool   `toml:"notify_training"`
	NotifyExport          bool   `toml:"notify_export"`
	NotifyErrors          bool   `toml:"notify_errors"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Load reads configuration from the given path, or the default location when
// path is empty. It returns the parsed config, the resolved path, and whether
// a file existed there. A missing file yields pure defaults, not an error.
func Load(path string) (*Config, string, bool, error) {
	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.applyDefaults()
			if err := cfg.expandPaths(); err != nil {
				return nil, resolved, false, err
			}
			return cfg, resolved, false, nil
		}
		return nil, resolved, false, fmt.Errorf("read config %s: %w", resolved, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, resolved, true, fmt.Errorf("parse config %s: %w", resolved, err)
	}

	cfg.applyDefaults()
	if err := cfg.expandPaths(); err != nil {
		return nil, resolved, true, err
	}

	return cfg, resolved, true, nil
}

// EnsureDirectories creates the staging, voices, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.VoicesDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// QueueDatabasePath returns the SQLite database location under the log dir.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.LogDir, "queue.db")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "voiceforged.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "voiceforged.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "voiceforged.pid")
}

// CreateSample writes the annotated sample configuration to path. It refuses
// to overwrite an existing file unless force is set.
func CreateSample(path string, force bool) (string, error) {
	resolved, err := resolveConfigPath(path)
	if err != nil {
		return "", err
	}
	if !force {
		if _, err := os.Stat(resolved); err == nil {
			return resolved, fmt.Errorf("config file already exists at %s", resolved)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return resolved, fmt.Errorf("stat config %s: %w", resolved, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return resolved, fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(sampleConfig), 0o644); err != nil {
		return resolved, fmt.Errorf("write sample config: %w", err)
	}
	return resolved, nil
}

func resolveConfigPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("empty path")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	return abs, nil
}

func (c *Config) expandPaths() error {
	for _, entry := range []struct {
		name  string
		value *string
	}{
		{"staging_dir", &c.Paths.StagingDir},
		{"voices_dir", &c.Paths.VoicesDir},
		{"log_dir", &c.Paths.LogDir},
	} {
		if *entry.value == "" {
			continue
		}
		expanded, err := expandPath(*entry.value)
		if err != nil {
			return fmt.Errorf("expand %s: %w", entry.name, err)
		}
		*entry.value = expanded
	}
	if c.Training.BaseCheckpoint != "" {
		expanded, err := expandPath(c.Training.BaseCheckpoint)
		if err != nil {
			return fmt.Errorf("expand base_checkpoint: %w", err)
		}
		c.Training.BaseCheckpoint = expanded
	}
	return nil
}
