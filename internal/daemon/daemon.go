// Package daemon runs the long-lived pipeline process: queue store,
// workflow manager, and the control socket.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"voiceforge/internal/config"
	"voiceforge/internal/deps"
	"voiceforge/internal/exporting"
	"voiceforge/internal/fetching"
	"voiceforge/internal/ipc"
	"voiceforge/internal/logging"
	"voiceforge/internal/notifications"
	"voiceforge/internal/preparing"
	"voiceforge/internal/queue"
	"voiceforge/internal/services"
	"voiceforge/internal/training"
	"voiceforge/internal/transcribing"
	"voiceforge/internal/workflow"
)

// Daemon owns the long-running pipeline components.
type Daemon struct {
	cfg     *config.Config
	version string
	logger  *slog.Logger

	lock     *flock.Flock
	store    *queue.Store
	manager  *workflow.Manager
	server   *ipc.Server
	shutdown chan struct{}
}

// New assembles an unstarted daemon.
func New(cfg *config.Config, version string, logger *slog.Logger) *Daemon {
	return &Daemon{
		cfg:      cfg,
		version:  version,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		shutdown: make(chan struct{}, 1),
	}
}

// Run starts every component and blocks until a signal or an IPC shutdown
// request arrives.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	// Each daemon run gets a correlation ID that threads through its logs.
	runID := uuid.NewString()
	ctx = services.WithRequestID(ctx, runID)
	log := logging.WithContext(ctx, d.logger)

	d.lock = flock.New(d.cfg.LockPath())
	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another voiceforged instance holds %s", d.cfg.LockPath())
	}
	defer d.lock.Unlock()

	if err := d.writePIDFile(); err != nil {
		return err
	}
	defer os.Remove(d.cfg.PIDPath())

	d.warnMissingTools(log)

	store, err := queue.Open(ctx, d.cfg.QueueDatabasePath())
	if err != nil {
		return err
	}
	d.store = store
	defer store.Close()

	notifier := notifications.NewService(d.cfg, d.logger)
	d.manager = workflow.NewManager(d.cfg, store, notifier, d.logger)
	d.manager.ConfigureStages(workflow.Handlers{
		Fetch:      fetching.NewHandler(d.cfg, store, notifier, d.logger),
		Prepare:    preparing.NewHandler(d.cfg, store, d.logger),
		Transcribe: transcribing.NewHandler(d.cfg, store, notifier, d.logger),
		Train:      training.NewHandler(d.cfg, store, notifier, d.logger),
		Export:     exporting.NewHandler(d.cfg, store, notifier, d.logger),
	})

	d.server = ipc.NewServer(d.cfg.SocketPath(), d.version, store, d.manager, d.shutdown, d.logger)
	if err := d.server.Start(); err != nil {
		return err
	}
	defer d.server.Stop()

	if err := d.manager.Start(ctx); err != nil {
		return err
	}
	defer d.manager.Stop()

	log.Info("daemon running",
		logging.String("version", d.version),
		logging.Int("pid", os.Getpid()),
		logging.String("socket", d.cfg.SocketPath()))

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		log.Info("signal received, shutting down", logging.String("signal", sig.String()))
	case <-d.shutdown:
		log.Info("shutdown requested over control socket")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down")
	}
	return nil
}

func (d *Daemon) writePIDFile() error {
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(d.cfg.PIDPath(), []byte(pid+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// warnMissingTools logs each unavailable external tool at startup. Missing
// tools do not block the daemon; the owning stage fails its health check and
// items park when that stage runs.
func (d *Daemon) warnMissingTools(log *slog.Logger) {
	for _, status := range deps.CheckBinaries(deps.Requirements(d.cfg)) {
		if status.Found {
			continue
		}
		log.Warn("external tool missing",
			logging.String("tool", status.Name),
			logging.String("binary", status.Binary),
			logging.String("purpose", status.Purpose))
	}
}
