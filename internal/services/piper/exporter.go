package piper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"voiceforge/internal/fileutil"
	"voiceforge/internal/logging"
	"voiceforge/internal/services"
)

// Exporter converts a training checkpoint into a deployable ONNX voice.
type Exporter struct {
	binary string
	logger *slog.Logger
}

// NewExporter builds an exporter around the configured binary.
func NewExporter(binary string, logger *slog.Logger) *Exporter {
	return &Exporter{binary: binary, logger: logging.NewComponentLogger(logger, "piper-export")}
}

// Export converts checkpointPath to onnxPath and places the runtime config
// beside it as <onnxPath>.json. configPath is the model config the trainer
// wrote into the run directory.
func (e *Exporter) Export(ctx context.Context, checkpointPath, configPath, onnxPath string) error {
	args := []string{
		"--checkpoint", checkpointPath,
		"--output", onnxPath,
	}

	cmd := commandContext(ctx, e.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := lastOutputLine(output)
		return services.Wrap(services.ErrExternalTool, "export", "onnx", detail, err)
	}

	if _, err := os.Stat(onnxPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "export", "onnx",
			fmt.Sprintf("exporter reported success but %s is missing", onnxPath), err)
	}

	sidecar := onnxPath + ".json"
	if err := fileutil.CopyFileVerified(configPath, sidecar); err != nil {
		return services.Wrap(services.ErrExternalTool, "export", "config sidecar", sidecar, err)
	}

	e.logger.Info("voice exported",
		logging.String("model", onnxPath),
		logging.String("config", sidecar))
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
