// Package notifications sends optional push updates through ntfy.sh.
package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"voiceforge/internal/config"
	"voiceforge/internal/logging"
)

// Event classifies what happened so per-event toggles can filter it.
type Event string

const (
	EventFetchComplete    Event = "fetch_complete"
	EventDatasetReady     Event = "dataset_ready"
	EventTrainingStarted  Event = "training_started"
	EventTrainingComplete Event = "training_complete"
	EventVoiceExported    Event = "voice_exported"
	EventError            Event = "error"
	EventReview           Event = "review"
)

// Service delivers pipeline notifications.
type Service interface {
	Publish(ctx context.Context, event Event, title, message string) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is
// configured.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	return &ntfyService{
		url:    "https://ntfy.sh/" + topic,
		cfg:    cfg.Notifications,
		client: &http.Client{Timeout: timeout},
		logger: logging.NewComponentLogger(logger, "notifications"),
	}
}

type ntfyService struct {
	url    string
	cfg    config.Notifications
	client *http.Client
	logger *slog.Logger
}

func (s *ntfyService) Publish(ctx context.Context, event Event, title, message string) error {
	if !s.enabled(event) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Title", title)
	req.Header.Set("Tags", tagsFor(event))
	req.Header.Set("Priority", priorityFor(event))

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("notification delivery failed", logging.Error(err))
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		s.logger.Warn("notification rejected",
			logging.Int("status", resp.StatusCode),
			logging.String("event", string(event)))
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}
	return nil
}

func (s *ntfyService) enabled(event Event) bool {
	switch event {
	case EventFetchComplete:
		return s.cfg.NotifyFetch
	case EventDatasetReady:
		return s.cfg.NotifyDataset
	case EventTrainingStarted, EventTrainingComplete:
		return s.cfg.NotifyTraining
	case EventVoiceExported:
		return s.cfg.NotifyExport
	case EventError, EventReview:
		return s.cfg.NotifyErrors
	default:
		return true
	}
}

func tagsFor(event Event) string {
	switch event {
	case EventVoiceExported:
		return "tada"
	case EventError:
		return "rotating_light"
	case EventReview:
		return "warning"
	case EventTrainingStarted, EventTrainingComplete:
		return "hourglass"
	default:
		return "loudspeaker"
	}
}

func priorityFor(event Event) string {
	switch event {
	case EventError:
		return "high"
	case EventReview:
		return "high"
	default:
		return "default"
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, string, string) error { return nil }
