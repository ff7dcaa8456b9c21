package queue

import (
	"fmt"
	"strings"
	"time"
)

// Status tracks a voice build through the pipeline.
type Status string

const (
	StatusPending      Status = "pending"
	StatusFetching     Status = "fetching"
	StatusFetched      Status = "fetched"
	StatusPreparing    Status = "preparing"
	StatusPrepared     Status = "prepared"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusTraining     Status = "training"
	StatusTrained      Status = "trained"
	StatusExporting    Status = "exporting"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusReview       Status = "review"
)

// stageRestartStatuses maps each in-flight status to the status its stage
// restarts from. Training restarts pick up from the newest checkpoint in the
// run directory, so returning to the stage boundary loses no work.
var stageRestartStatuses = map[Status]Status{
	StatusFetching:     StatusPending,
	StatusPreparing:    StatusFetched,
	StatusTranscribing: StatusPrepared,
	StatusTraining:     StatusTranscribed,
	StatusExporting:    StatusTrained,
}

// StageRestartStatuses returns a copy of the processing-to-restart status map.
func StageRestartStatuses() map[Status]Status {
	out := make(map[Status]Status, len(stageRestartStatuses))
	for processing, restart := range stageRestartStatuses {
		out[processing] = restart
	}
	return out
}

// IsProcessing reports whether the status marks an in-flight stage.
func (s Status) IsProcessing() bool {
	_, ok := stageRestartStatuses[s]
	return ok
}

// IsTerminal reports whether the item needs no further work.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case StatusPending, StatusFetching, StatusFetched, StatusPreparing, StatusPrepared,
		StatusTranscribing, StatusTranscribed, StatusTraining, StatusTrained,
		StatusExporting, StatusCompleted, StatusFailed, StatusReview:
		return status, nil
	default:
		return "", fmt.Errorf("unknown status %q", value)
	}
}

// AllStatuses lists every status in pipeline order.
func AllStatuses() []Status {
	return []Status{
		StatusPending, StatusFetching, StatusFetched, StatusPreparing, StatusPrepared,
		StatusTranscribing, StatusTranscribed, StatusTraining, StatusTrained,
		StatusExporting, StatusCompleted, StatusFailed, StatusReview,
	}
}

// Item is one voice build in the queue.
type Item struct {
	ID        int64
	VoiceName string
	// SourceURL is set for remote sources fetched with yt-dlp.
	SourceURL string
	// SourcePath is set for local audio files supplied directly.
	SourcePath string
	Status     Status
	// StagingDir is the per-voice working tree under paths.staging_dir.
	StagingDir string
	// SourceAudioPath is the downloaded or copied source recording.
	SourceAudioPath string
	// DatasetDir holds resampled clips and the transcript manifest.
	DatasetDir string
	// ClipCount is the number of clips admitted into the dataset.
	ClipCount int
	// CheckpointPath is the checkpoint selected for export.
	CheckpointPath string
	// ModelPath is the exported ONNX voice model.
	ModelPath string

	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	ErrorMessage    string
	NeedsReview     bool
	ReviewReason    string

	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastHeartbeat *time.Time
}

// InitProgress resets progress tracking as an item enters a stage.
func (i *Item) InitProgress(stage, message string) {
	i.ProgressStage = stage
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.ErrorMessage = ""
}

// SetProgress updates progress within the current stage.
func (i *Item) SetProgress(percent float64, message string) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	i.ProgressPercent = percent
	if message != "" {
		i.ProgressMessage = message
	}
}

// SetFailed marks the item failed with the given message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
}

// SetReview parks the item for operator attention.
func (i *Item) SetReview(reason string) {
	i.Status = StatusReview
	i.NeedsReview = true
	i.ReviewReason = reason
}

// SourceLabel returns a short human label for the item's source.
func (i *Item) SourceLabel() string {
	if i.SourceURL != "" {
		return i.SourceURL
	}
	return i.SourcePath
}
