package workflow

import (
	"context"
	"errors"
	"time"

	"voiceforge/internal/logging"
	"voiceforge/internal/queue"
	"voiceforge/internal/services"
)

func (m *Manager) runLane(ctx context.Context, ln lane) {
	log := m.logger.With(logging.String(logging.FieldLane, ln.name))
	log.Debug("lane runner started")

	delay := m.pollInterval()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("lane runner stopping")
			return
		case <-timer.C:
		}

		worked, err := m.runOnePass(ctx, ln)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			log.Error("lane pass failed", logging.Error(err))
			delay = m.errorRetryInterval()
		case worked:
			// Something finished; look for follow-on work immediately.
			delay = 0
		default:
			delay = m.pollInterval()
		}
		timer.Reset(delay)
	}
}

// runOnePass claims and processes at most one item in the lane, walking the
// stages in pipeline order so later stages drain before new work starts.
func (m *Manager) runOnePass(ctx context.Context, ln lane) (bool, error) {
	for i := len(ln.stages) - 1; i >= 0; i-- {
		st := ln.stages[i]
		item, err := m.store.NextForStatuses(ctx, st.startStatus)
		if err != nil {
			return false, err
		}
		if item == nil {
			continue
		}
		m.processItem(ctx, ln, st, item)
		return true, nil
	}
	return false, nil
}

func (m *Manager) processItem(ctx context.Context, ln lane, st pipelineStage, item *queue.Item) {
	itemCtx := services.WithItemID(ctx, item.ID)
	itemCtx = services.WithStage(itemCtx, st.name)
	itemCtx = services.WithLane(itemCtx, ln.name)
	log := logging.WithContext(itemCtx, m.logger)

	log.Info("stage starting",
		logging.String(logging.FieldVoice, item.VoiceName),
		logging.String("source", item.SourceLabel()))

	item.Status = st.processingStatus
	item.InitProgress(st.name, "starting")
	now := time.Now().UTC()
	item.LastHeartbeat = &now
	if err := m.store.Update(itemCtx, item); err != nil {
		log.Error("claim item", logging.Error(err))
		return
	}

	err := st.handler.Prepare(itemCtx, item)
	if err == nil {
		err = m.executeWithHeartbeat(itemCtx, st, item)
	}

	if err != nil {
		m.handleFailure(itemCtx, st, item, err)
		return
	}

	item.Status = st.doneStatus
	item.LastHeartbeat = nil
	if err := m.store.Update(itemCtx, item); err != nil {
		log.Error("persist stage completion", logging.Error(err))
		return
	}
	log.Info("stage complete", logging.String("next_status", string(st.doneStatus)))
}

// executeWithHeartbeat runs the stage while a companion goroutine stamps the
// item's liveness marker so a crashed daemon's work can be reclaimed.
func (m *Manager) executeWithHeartbeat(ctx context.Context, st pipelineStage, item *queue.Item) error {
	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.heartbeatInterval())
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatCtx.Done():
				return
			case <-ticker.C:
				if err := m.store.UpdateHeartbeat(ctx, item.ID); err != nil {
					logging.WithContext(ctx, m.logger).Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}()

	err := st.handler.Execute(ctx, item)
	stopHeartbeat()
	<-done
	return err
}
