package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, resolved, exists, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected no config file at %s", resolved)
	}
	if cfg.Audio.SampleRate != 22050 {
		t.Errorf("sample rate default = %d, want 22050", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 {
		t.Errorf("channels default = %d, want 1", cfg.Audio.Channels)
	}
	if !strings.HasPrefix(cfg.Paths.StagingDir, home) {
		t.Errorf("staging dir %q not expanded under HOME %q", cfg.Paths.StagingDir, home)
	}
}

func TestLoadParsesFileAndBackfillsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	payload := struct {
		Paths struct {
			StagingDir string `toml:"staging_dir"`
		} `toml:"paths"`
		Audio struct {
			ClipSeconds int `toml:"clip_seconds"`
		} `toml:"audio"`
	}{}
	payload.Paths.StagingDir = "~/work/staging"
	payload.Audio.ClipSeconds = 8

	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	path := filepath.Join(home, "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if want := filepath.Join(home, "work", "staging"); cfg.Paths.StagingDir != want {
		t.Errorf("staging dir = %q, want %q", cfg.Paths.StagingDir, want)
	}
	if cfg.Audio.ClipSeconds != 8 {
		t.Errorf("clip seconds = %d, want 8", cfg.Audio.ClipSeconds)
	}
	if cfg.Transcription.Model != "medium.en" {
		t.Errorf("whisper model default = %q, want medium.en", cfg.Transcription.Model)
	}
}

func TestMinSpeechSecondsExplicitZeroSurvives(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(home, "config.toml")
	if err := os.WriteFile(path, []byte("[transcription]\nmin_speech_seconds = 0.0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transcription.MinSpeechSeconds != 0 {
		t.Errorf("min_speech_seconds = %v, want 0 (gate disabled)", cfg.Transcription.MinSpeechSeconds)
	}
	if Default().Transcription.MinSpeechSeconds != 0.5 {
		t.Errorf("default min_speech_seconds = %v, want 0.5", Default().Transcription.MinSpeechSeconds)
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Audio.SilenceThresholdDB = 5
	cfg.Training.Quality = "ultra"
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"silence_threshold_db", "training.quality", "logging.level"} {
		if !strings.Contains(msg, want) {
			t.Errorf("validation error missing %q: %s", want, msg)
		}
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestCreateSampleRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	written, err := CreateSample(path, false)
	if err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if written != path {
		t.Fatalf("sample written to %q, want %q", written, path)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		t.Fatalf("sample config should parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}

	if _, err := CreateSample(path, false); err == nil {
		t.Fatal("expected overwrite refusal")
	}
	if _, err := CreateSample(path, true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
}

func TestSocketAndDatabasePaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.LogDir = "/var/lib/voiceforge/logs"

	if got := cfg.QueueDatabasePath(); got != "/var/lib/voiceforge/logs/queue.db" {
		t.Errorf("queue db path = %q", got)
	}
	if got := cfg.SocketPath(); got != "/var/lib/voiceforge/logs/voiceforged.sock" {
		t.Errorf("socket path = %q", got)
	}
}
