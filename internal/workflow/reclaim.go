package workflow

import (
	"context"
	"time"

	"voiceforge/internal/logging"
	"voiceforge/internal/queue"
)

// runReclaimer periodically returns items whose heartbeat went stale to
// their stage's start status. This recovers work orphaned by a daemon crash;
// training restarts pick up from the newest checkpoint rather than from
// scratch.
func (m *Manager) runReclaimer(ctx context.Context) {
	ticker := time.NewTicker(m.heartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.heartbeatTimeout())
			ids, err := m.store.ReclaimStale(ctx, cutoff, queue.StageRestartStatuses())
			if err != nil {
				m.logger.Warn("stale item reclaim failed", logging.Error(err))
				continue
			}
			for _, id := range ids {
				m.logger.Warn("reclaimed stale item", logging.Int64(logging.FieldItemID, id))
			}
		}
	}
}
