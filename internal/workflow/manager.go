package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"voiceforge/internal/config"
	"voiceforge/internal/logging"
	"voiceforge/internal/notifications"
	"voiceforge/internal/queue"
	"voiceforge/internal/stage"
)

const (
	// LaneForeground runs the network-bound fetch stage so downloads are
	// not starved by long training runs.
	LaneForeground = "foreground"
	// LaneBackground runs the compute-bound stages sequentially.
	LaneBackground = "background"
)

// Handlers carries one handler per pipeline stage.
type Handlers struct {
	Fetch      stage.Handler
	Prepare    stage.Handler
	Transcribe stage.Handler
	Train      stage.Handler
	Export     stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

type lane struct {
	name   string
	stages []pipelineStage
}

// Manager drives queue items through the pipeline across two lanes.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	notifier notifications.Service
	logger   *slog.Logger

	lanes []lane

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager builds an unstarted manager. Call ConfigureStages before Start.
func NewManager(cfg *config.Config, store *queue.Store, notifier notifications.Service, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "workflow"),
	}
}

// ConfigureStages installs the stage handlers and binds them to the status
// lifecycle.
func (m *Manager) ConfigureStages(handlers Handlers) {
	m.lanes = []lane{
		{
			name: LaneForeground,
			stages: []pipelineStage{
				{"fetch", handlers.Fetch, queue.StatusPending, queue.StatusFetching, queue.StatusFetched},
			},
		},
		{
			name: LaneBackground,
			stages: []pipelineStage{
				{"prepare", handlers.Prepare, queue.StatusFetched, queue.StatusPreparing, queue.StatusPrepared},
				{"transcribe", handlers.Transcribe, queue.StatusPrepared, queue.StatusTranscribing, queue.StatusTranscribed},
				{"train", handlers.Train, queue.StatusTranscribed, queue.StatusTraining, queue.StatusTrained},
				{"export", handlers.Export, queue.StatusTrained, queue.StatusExporting, queue.StatusCompleted},
			},
		},
	}
}

// Start launches the lane runners and the stale-item reclaimer.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("workflow manager already started")
	}
	if len(m.lanes) == 0 {
		return fmt.Errorf("workflow manager has no configured stages")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.started = true

	for _, ln := range m.lanes {
		m.wg.Add(1)
		go func(ln lane) {
			defer m.wg.Done()
			m.runLane(runCtx, ln)
		}(ln)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runReclaimer(runCtx)
	}()

	m.logger.Info("workflow manager started",
		logging.Int("lanes", len(m.lanes)),
		logging.Duration("poll_interval", m.pollInterval()))
	return nil
}

// Stop cancels the runners and waits for in-flight work to unwind.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	m.mu.Lock()
	m.started = false
	m.mu.Unlock()
	m.logger.Info("workflow manager stopped")
}

// Health reports the readiness of every configured stage.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	var healths []stage.Health
	for _, ln := range m.lanes {
		for _, st := range ln.stages {
			healths = append(healths, st.handler.HealthCheck(ctx))
		}
	}
	return healths
}

func (m *Manager) pollInterval() time.Duration {
	return time.Duration(m.cfg.Workflow.QueuePollIntervalSeconds) * time.Second
}

func (m *Manager) errorRetryInterval() time.Duration {
	return time.Duration(m.cfg.Workflow.ErrorRetryIntervalSeconds) * time.Second
}

func (m *Manager) heartbeatInterval() time.Duration {
	return time.Duration(m.cfg.Workflow.HeartbeatIntervalSeconds) * time.Second
}

func (m *Manager) heartbeatTimeout() time.Duration {
	return time.Duration(m.cfg.Workflow.HeartbeatTimeoutSeconds) * time.Second
}
