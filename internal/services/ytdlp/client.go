// Package ytdlp wraps the yt-dlp command line tool for source audio download.
package ytdlp

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"voiceforge/internal/logging"
	"voiceforge/internal/services"
)

// commandContext allows tests to substitute the spawned process.
var commandContext = exec.CommandContext

// Progress reports download advancement parsed from yt-dlp output.
type Progress struct {
	Percent float64
	Message string
}

// Client invokes yt-dlp.
type Client struct {
	binary string
	format string
	logger *slog.Logger
}

// New builds a client around the given yt-dlp binary and extraction format.
func New(binary, format string, logger *slog.Logger) *Client {
	return &Client{
		binary: binary,
		format: format,
		logger: logging.NewComponentLogger(logger, "ytdlp"),
	}
}

// download progress lines look like:
// [download]  42.3% of 10.50MiB at 1.20MiB/s ETA 00:05
var progressPattern = regexp.MustCompile(`\[download\]\s+([\d.]+)%`)

// Fetch downloads the audio track of url into destDir as source.<format>.
// It returns the path of the extracted file.
func (c *Client) Fetch(ctx context.Context, url, destDir string, onProgress func(Progress)) (string, error) {
	output := filepath.Join(destDir, "source.%(ext)s")
	args := []string{
		"--no-playlist",
		"--extract-audio",
		"--audio-format", c.format,
		"--audio-quality", "0",
		"--newline",
		"--output", output,
		url,
	}

	cmd := commandContext(ctx, c.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("attach stdout: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "fetch", "start", c.binary, err)
	}

	var lastLine string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lastLine = line
		c.logger.Debug("yt-dlp output", logging.String("line", line))
		if onProgress == nil {
			continue
		}
		if match := progressPattern.FindStringSubmatch(line); match != nil {
			if percent, err := strconv.ParseFloat(match[1], 64); err == nil {
				onProgress(Progress{Percent: percent, Message: "downloading"})
			}
		}
	}

	if err := cmd.Wait(); err != nil {
		detail := c.binary
		if lastLine != "" {
			detail = lastLine
		}
		return "", services.Wrap(services.ErrExternalTool, "fetch", "download", detail, err)
	}

	result := filepath.Join(destDir, "source."+c.format)
	matches, err := filepath.Glob(filepath.Join(destDir, "source.*"))
	if err == nil && len(matches) > 0 {
		// yt-dlp can emit a different container than requested for some
		// sources; trust what actually landed on disk.
		result = matches[0]
		for _, match := range matches {
			if strings.HasSuffix(match, "."+c.format) {
				result = match
				break
			}
		}
	}
	return result, nil
}
