// Package piper wraps the Piper TTS training and export command line tools.
package piper

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"voiceforge/internal/logging"
	"voiceforge/internal/services"
)

// commandContext allows tests to substitute the spawned process.
var commandContext = exec.CommandContext

// TrainOptions parameterizes one fine-tuning run.
type TrainOptions struct {
	// DatasetDir holds wav/ and the transcript manifest.
	DatasetDir string
	// RunDir receives checkpoints and the model config.
	RunDir string
	// ResumeCheckpoint, when set, continues training from this saved state.
	ResumeCheckpoint string
	Quality          string
	BatchSize        int
	MaxEpochs        int
	Precision        string
	CheckpointEpochs int
	SampleRate       int
}

// TrainProgress reports fine-tuning advancement parsed from trainer output.
type TrainProgress struct {
	Epoch   int
	Step    int
	Loss    float64
	Percent float64
	Message string
}

// Trainer invokes the fine-tuning tool.
type Trainer struct {
	binary string
	logger *slog.Logger
}

// NewTrainer builds a trainer around the configured binary.
func NewTrainer(binary string, logger *slog.Logger) *Trainer {
	return &Trainer{binary: binary, logger: logging.NewComponentLogger(logger, "piper-train")}
}

func (t *Trainer) buildArgs(opts TrainOptions) []string {
	args := []string{
		"--dataset-dir", opts.DatasetDir,
		"--output-dir", opts.RunDir,
		"--quality", opts.Quality,
		"--batch-size", strconv.Itoa(opts.BatchSize),
		"--max-epochs", strconv.Itoa(opts.MaxEpochs),
		"--precision", opts.Precision,
		"--checkpoint-epochs", strconv.Itoa(opts.CheckpointEpochs),
		"--sample-rate", strconv.Itoa(opts.SampleRate),
	}
	if opts.ResumeCheckpoint != "" {
		args = append(args, "--resume-from-checkpoint", opts.ResumeCheckpoint)
	}
	return args
}

// Progress lines look like:
// Epoch 42: 100%|##########| 312/312 [01:05<00:00, 4.80it/s, loss=0.42]
var (
	epochPattern = regexp.MustCompile(`Epoch\s+(\d+)`)
	stepPattern  = regexp.MustCompile(`(\d+)/(\d+)`)
	lossPattern  = regexp.MustCompile(`loss=([0-9.]+)`)
)

// Train runs the fine-tuning tool to completion, streaming progress through
// onProgress as epochs advance.
func (t *Trainer) Train(ctx context.Context, opts TrainOptions, onProgress func(TrainProgress)) error {
	cmd := commandContext(ctx, t.binary, t.buildArgs(opts)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("attach stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "train", "start", t.binary, err)
	}

	var lastLine string
	lastEpoch := -1
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lastLine = line
		match := epochPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		epoch, err := strconv.Atoi(match[1])
		if err != nil || epoch == lastEpoch {
			continue
		}
		lastEpoch = epoch

		progress := TrainProgress{Epoch: epoch}
		if m := stepPattern.FindStringSubmatch(line); m != nil {
			progress.Step, _ = strconv.Atoi(m[1])
		}
		if m := lossPattern.FindStringSubmatch(line); m != nil {
			progress.Loss, _ = strconv.ParseFloat(m[1], 64)
		}
		if opts.MaxEpochs > 0 {
			progress.Percent = float64(epoch) / float64(opts.MaxEpochs) * 100
		}
		progress.Message = fmt.Sprintf("epoch %d of %d", epoch, opts.MaxEpochs)
		if progress.Loss > 0 {
			progress.Message += fmt.Sprintf(", loss %.2f", progress.Loss)
		}

		t.logger.Debug("training epoch",
			logging.Int("epoch", epoch),
			logging.Int("step", progress.Step),
			logging.Float64("loss", progress.Loss))
		if onProgress != nil {
			onProgress(progress)
		}
	}

	if err := cmd.Wait(); err != nil {
		detail := t.binary
		if lastLine != "" {
			detail = lastLine
		}
		return services.Wrap(services.ErrExternalTool, "train", "fine-tune", detail, err)
	}
	return nil
}
