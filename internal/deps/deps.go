// Package deps checks for the external tools the pipeline shells out to.
package deps

import (
	"os/exec"

	"voiceforge/internal/config"
)

// Requirement names an external binary and why the pipeline needs it.
type Requirement struct {
	Name     string
	Binary   string
	Purpose  string
	Optional bool
}

// Status is the result of probing one requirement.
type Status struct {
	Requirement
	Found bool
	Path  string
	Err   string
}

// Requirements derives the tool list from configuration.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "yt-dlp", Binary: cfg.Fetch.YtdlpBinary, Purpose: "download source audio"},
		{Name: "ffmpeg", Binary: cfg.Audio.FFmpegBinary, Purpose: "silence removal, segmentation, resampling"},
		{Name: "ffprobe", Binary: cfg.Audio.FFprobeBinary, Purpose: "audio stream inspection"},
		{Name: "whisper", Binary: cfg.Transcription.WhisperBinary, Purpose: "clip transcription"},
		{Name: "trainer", Binary: cfg.Training.TrainerBinary, Purpose: "voice model fine-tuning"},
		{Name: "exporter", Binary: cfg.Export.ExporterBinary, Purpose: "ONNX model export"},
	}
}

// CheckBinaries probes each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	statuses := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{Requirement: req}
		path, err := exec.LookPath(req.Binary)
		if err != nil {
			status.Err = err.Error()
		} else {
			status.Found = true
			status.Path = path
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// AllSatisfied reports whether every required tool resolved.
func AllSatisfied(statuses []Status) bool {
	for _, status := range statuses {
		if !status.Found && !status.Optional {
			return false
		}
	}
	return true
}
