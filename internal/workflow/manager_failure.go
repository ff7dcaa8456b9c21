package workflow

import (
	"context"
	"fmt"

	"voiceforge/internal/logging"
	"voiceforge/internal/notifications"
	"voiceforge/internal/queue"
	"voiceforge/internal/services"
)

func (m *Manager) handleFailure(ctx context.Context, st pipelineStage, item *queue.Item, stageErr error) {
	log := logging.WithContext(ctx, m.logger)

	status := services.FailureStatus(stageErr)
	if status == queue.StatusReview {
		item.SetReview(stageErr.Error())
	} else {
		item.SetFailed(stageErr.Error())
	}
	item.LastHeartbeat = nil

	if err := m.store.Update(ctx, item); err != nil {
		log.Error("persist stage failure", logging.Error(err))
	}

	log.Error("stage failed",
		logging.String(logging.FieldVoice, item.VoiceName),
		logging.String("outcome", string(status)),
		logging.Error(stageErr))

	event := notifications.EventError
	title := "Voice build failed"
	if status == queue.StatusReview {
		event = notifications.EventReview
		title = "Voice build needs review"
	}
	message := fmt.Sprintf("%s: %s stage: %v", item.VoiceName, st.name, stageErr)
	if err := m.notifier.Publish(ctx, event, title, message); err != nil {
		log.Warn("failure notification not delivered", logging.Error(err))
	}
}
