// Package whisper wraps the OpenAI Whisper command line tool for clip
// transcription.
package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"voiceforge/internal/logging"
	"voiceforge/internal/services"
)

// commandContext allows tests to substitute the spawned process.
var commandContext = exec.CommandContext

// Config captures whisper invocation parameters.
type Config struct {
	Binary   string
	Model    string
	Language string
	Device   string
}

// Segment is one timed span of recognized speech. Timestamps are decimal
// seconds; decimals avoid float drift when boundaries are compared or
// converted to milliseconds.
type Segment struct {
	Start decimal.Decimal `json:"start"`
	End   decimal.Decimal `json:"end"`
	Text  string          `json:"text"`
}

// Result is the transcription of one clip.
type Result struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// CleanText returns the whole-clip transcript with whitespace normalized.
func (r Result) CleanText() string {
	return strings.Join(strings.Fields(r.Text), " ")
}

// SpeechDuration sums the recognized segment spans in seconds. Segments
// whose timestamps run backwards are ignored.
func (r Result) SpeechDuration() decimal.Decimal {
	total := decimal.Zero
	for _, seg := range r.Segments {
		if span := seg.End.Sub(seg.Start); span.IsPositive() {
			total = total.Add(span)
		}
	}
	return total
}

// SpeechMilliseconds returns the summed speech time in whole milliseconds.
func (r Result) SpeechMilliseconds() int64 {
	return r.SpeechDuration().Mul(decimal.NewFromInt(1000)).IntPart()
}

// Service invokes whisper.
type Service struct {
	cfg    Config
	logger *slog.Logger
}

// New builds a transcription service.
func New(cfg Config, logger *slog.Logger) *Service {
	return &Service{cfg: cfg, logger: logging.NewComponentLogger(logger, "whisper")}
}

func (s *Service) buildArgs(wavPath, outputDir string) []string {
	args := []string{
		wavPath,
		"--model", s.cfg.Model,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--verbose", "False",
	}
	if s.cfg.Language != "" {
		args = append(args, "--language", s.cfg.Language)
	}
	if s.cfg.Device != "" && s.cfg.Device != "auto" {
		args = append(args, "--device", s.cfg.Device)
		if s.cfg.Device == "cpu" {
			args = append(args, "--fp16", "False")
		}
	}
	return args
}

// Transcribe runs whisper over wavPath and returns the parsed result. The
// JSON sidecar is written into outputDir named after the clip.
func (s *Service) Transcribe(ctx context.Context, wavPath, outputDir string) (Result, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create transcription directory: %w", err)
	}

	cmd := commandContext(ctx, s.cfg.Binary, s.buildArgs(wavPath, outputDir)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := lastLine(output)
		return Result{}, services.Wrap(services.ErrExternalTool, "transcribe", "whisper", detail, err)
	}

	jsonPath := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))+".json")
	result, err := LoadResult(jsonPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "transcribe", "parse output", jsonPath, err)
	}

	s.logger.Debug("clip transcribed",
		logging.String("clip", filepath.Base(wavPath)),
		logging.Int("segments", len(result.Segments)))
	return result, nil
}

// LoadResult parses a whisper JSON output file.
func LoadResult(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read transcription %s: %w", path, err)
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("parse transcription %s: %w", path, err)
	}
	return result, nil
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no tool output"
}
