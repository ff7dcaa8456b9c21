package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrItemNotFound indicates no queue item matched the requested identifier.
var ErrItemNotFound = errors.New("queue item not found")

// NewRemote enqueues a voice build fetched from a URL.
func (s *Store) NewRemote(ctx context.Context, voiceName, sourceURL string) (*Item, error) {
	return s.insert(ctx, voiceName, sourceURL, "", StatusPending)
}

// NewLocal enqueues a voice build from a local audio file. Local sources
// skip the fetch stage and enter the pipeline already fetched.
func (s *Store) NewLocal(ctx context.Context, voiceName, sourcePath string) (*Item, error) {
	return s.insert(ctx, voiceName, "", sourcePath, StatusFetched)
}

func (s *Store) insert(ctx context.Context, voiceName, sourceURL, sourcePath string, status Status) (*Item, error) {
	now := time.Now().UTC().Format(timeFormat)
	result, err := s.execWithRetry(ctx,
		`INSERT INTO items (voice_name, source_url, source_path, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		voiceName, nullableString(sourceURL), nullableString(sourcePath), string(status), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert queue item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read inserted id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches one item.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.queryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrItemNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item %d: %w", id, err)
	}
	return item, nil
}

// Update persists every mutable column of the item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	item.UpdatedAt = time.Now().UTC()
	result, err := s.execWithRetry(ctx,
		`UPDATE items SET
			voice_name = ?, source_url = ?, source_path = ?, status = ?, staging_dir = ?,
			source_audio_path = ?, dataset_dir = ?, clip_count = ?, checkpoint_path = ?,
			model_path = ?, progress_stage = ?, progress_percent = ?, progress_message = ?,
			error_message = ?, needs_review = ?, review_reason = ?, updated_at = ?,
			last_heartbeat = ?
		 WHERE id = ?`,
		item.VoiceName, nullableString(item.SourceURL), nullableString(item.SourcePath),
		string(item.Status), nullableString(item.StagingDir),
		nullableString(item.SourceAudioPath), nullableString(item.DatasetDir), item.ClipCount,
		nullableString(item.CheckpointPath), nullableString(item.ModelPath),
		nullableString(item.ProgressStage), item.ProgressPercent, nullableString(item.ProgressMessage),
		nullableString(item.ErrorMessage), boolToInt(item.NeedsReview), nullableString(item.ReviewReason),
		item.UpdatedAt.Format(timeFormat), nullableTime(item.LastHeartbeat),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update queue item %d: %w", item.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update queue item %d: %w", item.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrItemNotFound, item.ID)
	}
	return nil
}

// List returns items filtered by status, or all items when no statuses given.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		args = statusArgs(statuses)
	}
	query += ` ORDER BY id`

	rows, err := s.queryWithRetry(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// NextForStatuses claims the oldest item in one of the given statuses.
// Returns nil when nothing is ready.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	row := s.queryRow(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE status IN (`+makePlaceholders(len(statuses))+`)
		 ORDER BY id LIMIT 1`,
		statusArgs(statuses)...,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queue item: %w", err)
	}
	return item, nil
}

// Remove deletes a single item.
func (s *Store) Remove(ctx context.Context, id int64) error {
	result, err := s.execWithRetry(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove queue item %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove queue item %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrItemNotFound, id)
	}
	return nil
}

// Counts returns the number of items per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.queryWithRetry(ctx, `SELECT status, COUNT(*) FROM items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count queue items: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}
