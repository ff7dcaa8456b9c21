package queue

import (
	"context"
	"fmt"
	"time"
)

// Clear removes every item from the queue and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	result, err := s.execWithRetry(ctx, `DELETE FROM items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return result.RowsAffected()
}

// ClearCompleted removes completed items.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	result, err := s.execWithRetry(ctx, `DELETE FROM items WHERE status = ?`, string(StatusCompleted))
	if err != nil {
		return 0, fmt.Errorf("clear completed items: %w", err)
	}
	return result.RowsAffected()
}

// ClearFailed removes failed items.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	result, err := s.execWithRetry(ctx, `DELETE FROM items WHERE status = ?`, string(StatusFailed))
	if err != nil {
		return 0, fmt.Errorf("clear failed items: %w", err)
	}
	return result.RowsAffected()
}

// RetryFailed returns failed items to pending (remote sources) or fetched
// (local sources) so the daemon picks them up again.
func (s *Store) RetryFailed(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(timeFormat)
	result, err := s.execWithRetry(ctx,
		`UPDATE items SET
			status = CASE WHEN source_url IS NOT NULL AND source_url != '' THEN ? ELSE ? END,
			error_message = NULL, progress_percent = 0, progress_message = NULL,
			needs_review = 0, review_reason = NULL, updated_at = ?
		 WHERE status = ?`,
		string(StatusPending), string(StatusFetched), now, string(StatusFailed),
	)
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return result.RowsAffected()
}

// UpdateHeartbeat stamps the item's liveness marker.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := s.execWithRetry(ctx,
		`UPDATE items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`, now, now, id)
	if err != nil {
		return fmt.Errorf("update heartbeat for item %d: %w", id, err)
	}
	return nil
}

// ReclaimStale finds items stuck in a processing status with a heartbeat
// older than cutoff and returns them to the stage's start status so a
// restarted daemon can pick them up. It returns the reclaimed item IDs.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time, transitions map[Status]Status) ([]int64, error) {
	var reclaimed []int64
	cutoffStr := cutoff.UTC().Format(timeFormat)
	now := time.Now().UTC().Format(timeFormat)

	for processing, restart := range transitions {
		rows, err := s.queryWithRetry(ctx,
			`SELECT id FROM items
			 WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
			string(processing), cutoffStr,
		)
		if err != nil {
			return nil, fmt.Errorf("find stale items in %s: %w", processing, err)
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan stale item id: %w", err)
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		for _, id := range ids {
			_, err := s.execWithRetry(ctx,
				`UPDATE items SET status = ?, last_heartbeat = NULL, updated_at = ?
				 WHERE id = ? AND status = ?`,
				string(restart), now, id, string(processing),
			)
			if err != nil {
				return reclaimed, fmt.Errorf("reclaim item %d: %w", id, err)
			}
			reclaimed = append(reclaimed, id)
		}
	}
	return reclaimed, nil
}
