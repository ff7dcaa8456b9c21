package queue

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const itemColumns = `id, voice_name, source_url, source_path, status, staging_dir,
source_audio_path, dataset_dir, clip_count, checkpoint_path, model_path,
progress_stage, progress_percent, progress_message, error_message,
needs_review, review_reason, created_at, updated_at, last_heartbeat`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		item            Item
		sourceURL       sql.NullString
		sourcePath      sql.NullString
		status          string
		stagingDir      sql.NullString
		sourceAudioPath sql.NullString
		datasetDir      sql.NullString
		checkpointPath  sql.NullString
		modelPath       sql.NullString
		progressStage   sql.NullString
		progressMessage sql.NullString
		errorMessage    sql.NullString
		needsReview     int
		reviewReason    sql.NullString
		createdAt       string
		updatedAt       string
		lastHeartbeat   sql.NullString
	)

	err := row.Scan(
		&item.ID, &item.VoiceName, &sourceURL, &sourcePath, &status, &stagingDir,
		&sourceAudioPath, &datasetDir, &item.ClipCount, &checkpointPath, &modelPath,
		&progressStage, &item.ProgressPercent, &progressMessage, &errorMessage,
		&needsReview, &reviewReason, &createdAt, &updatedAt, &lastHeartbeat,
	)
	if err != nil {
		return nil, err
	}

	item.SourceURL = sourceURL.String
	item.SourcePath = sourcePath.String
	item.Status = Status(status)
	item.StagingDir = stagingDir.String
	item.SourceAudioPath = sourceAudioPath.String
	item.DatasetDir = datasetDir.String
	item.CheckpointPath = checkpointPath.String
	item.ModelPath = modelPath.String
	item.ProgressStage = progressStage.String
	item.ProgressMessage = progressMessage.String
	item.ErrorMessage = errorMessage.String
	item.NeedsReview = needsReview != 0
	item.ReviewReason = reviewReason.String

	if item.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if item.UpdatedAt, err = parseTimeString(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if lastHeartbeat.Valid && lastHeartbeat.String != "" {
		hb, err := parseTimeString(lastHeartbeat.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_heartbeat: %w", err)
		}
		item.LastHeartbeat = &hb
	}

	return &item, nil
}

func parseTimeString(value string) (time.Time, error) {
	for _, layout := range []string{timeFormat, time.RFC3339, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(timeFormat)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", count), ", ")
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}
	return args
}
