package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"voiceforge/internal/queue"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type itemView struct {
	ID              int64   `json:"id"`
	VoiceName       string  `json:"voice_name"`
	Status          string  `json:"status"`
	SourceURL       string  `json:"source_url,omitempty"`
	SourcePath      string  `json:"source_path,omitempty"`
	StagingDir      string  `json:"staging_dir,omitempty"`
	SourceAudioPath string  `json:"source_audio_path,omitempty"`
	DatasetDir      string  `json:"dataset_dir,omitempty"`
	ClipCount       int     `json:"clip_count"`
	CheckpointPath  string  `json:"checkpoint_path,omitempty"`
	ModelPath       string  `json:"model_path,omitempty"`
	ProgressStage   string  `json:"progress_stage,omitempty"`
	ProgressPercent float64 `json:"progress_percent"`
	ProgressMessage string  `json:"progress_message,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	NeedsReview     bool    `json:"needs_review,omitempty"`
	ReviewReason    string  `json:"review_reason,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	LastHeartbeat   string  `json:"last_heartbeat,omitempty"`
}

func newItemView(item *queue.Item) itemView {
	view := itemView{
		ID:              item.ID,
		VoiceName:       item.VoiceName,
		Status:          string(item.Status),
		SourceURL:       item.SourceURL,
		SourcePath:      item.SourcePath,
		StagingDir:      item.StagingDir,
		SourceAudioPath: item.SourceAudioPath,
		DatasetDir:      item.DatasetDir,
		ClipCount:       item.ClipCount,
		CheckpointPath:  item.CheckpointPath,
		ModelPath:       item.ModelPath,
		ProgressStage:   item.ProgressStage,
		ProgressPercent: item.ProgressPercent,
		ProgressMessage: item.ProgressMessage,
		ErrorMessage:    item.ErrorMessage,
		NeedsReview:     item.NeedsReview,
		ReviewReason:    item.ReviewReason,
		CreatedAt:       item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       item.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if item.LastHeartbeat != nil {
		view.LastHeartbeat = item.LastHeartbeat.UTC().Format(time.RFC3339)
	}
	return view
}
