// Package ffmpeg wraps ffmpeg and ffprobe for audio conditioning.
package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"voiceforge/internal/logging"
	"voiceforge/internal/services"
)

// commandContext allows tests to substitute the spawned process.
var commandContext = exec.CommandContext

// Service invokes ffmpeg and ffprobe.
type Service struct {
	ffmpegBinary  string
	ffprobeBinary string
	logger        *slog.Logger
}

// New builds a service around the configured binaries.
func New(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) *Service {
	return &Service{
		ffmpegBinary:  ffmpegBinary,
		ffprobeBinary: ffprobeBinary,
		logger:        logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// RemoveSilence strips quiet spans from input and writes the result to
// output. Spans quieter than thresholdDB lasting at least minSeconds are cut
// from both the start and the middle of the recording.
func (s *Service) RemoveSilence(ctx context.Context, input, output string, thresholdDB float64, minSeconds float64) error {
	return s.run(ctx, "remove silence", silenceArgs(input, output, thresholdDB, minSeconds))
}

func silenceArgs(input, output string, thresholdDB, minSeconds float64) []string {
	filter := fmt.Sprintf(
		"silenceremove=start_periods=1:start_threshold=%gdB:start_silence=%g:stop_periods=-1:stop_threshold=%gdB:stop_silence=%g",
		thresholdDB, minSeconds, thresholdDB, minSeconds,
	)
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", input,
		"-af", filter,
		output,
	}
}

// Segment splits input into consecutive fixed-length clips using the given
// numbered output pattern, e.g. clips/raw/clip_%04d.wav.
func (s *Service) Segment(ctx context.Context, input, outputPattern string, clipSeconds int) error {
	return s.run(ctx, "segment", segmentArgs(input, outputPattern, clipSeconds))
}

func segmentArgs(input, outputPattern string, clipSeconds int) []string {
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", input,
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%d", clipSeconds),
		"-reset_timestamps", "1",
		outputPattern,
	}
}

// Resample converts input to the training format: the given sample rate and
// channel count as 16-bit PCM wav.
func (s *Service) Resample(ctx context.Context, input, output string, sampleRate, channels int) error {
	return s.run(ctx, "resample", resampleArgs(input, output, sampleRate, channels))
}

func resampleArgs(input, output string, sampleRate, channels int) []string {
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", input,
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-sample_fmt", "s16",
		output,
	}
}

func (s *Service) run(ctx context.Context, operation string, args []string) error {
	s.logger.Debug("running ffmpeg",
		logging.String("operation", operation),
		logging.String("args", strings.Join(args, " ")))

	cmd := commandContext(ctx, s.ffmpegBinary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := lastOutputLine(output)
		return services.Wrap(services.ErrExternalTool, "prepare", operation, detail, err)
	}
	return nil
}

func lastOutputLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "no tool output"
}
