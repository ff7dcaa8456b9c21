package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"voiceforge/internal/config"
	"voiceforge/internal/logging"
	"voiceforge/internal/queue"
)

// app carries loaded configuration into command implementations.
type app struct {
	configFlag     string
	cfg            *config.Config
	resolvedConfig string
	configExists   bool
	logger         *slog.Logger
}

func (a *app) load() error {
	cfg, resolved, exists, err := config.Load(a.configFlag)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// CLI output goes to stdout; keep log noise on stderr and quiet.
	logger, err := logging.New(logging.Options{
		Level:            "warn",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.resolvedConfig = resolved
	a.configExists = exists
	a.logger = logger
	return nil
}

func (a *app) openStore(ctx context.Context) (*queue.Store, error) {
	if err := a.cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return queue.Open(ctx, a.cfg.QueueDatabasePath())
}

func newRootCommand() *cobra.Command {
	application := &app{}

	root := &cobra.Command{
		Use:   "voiceforge",
		Short: "Build Piper text-to-speech voices from recorded speech",
		Long: `voiceforge turns recorded speech into a deployable Piper text-to-speech
voice: it downloads or ingests source audio, removes silence, cuts the
recording into fixed-length clips, transcribes them with Whisper, fine-tunes
a Piper model on the resulting dataset, and exports the trained voice as
ONNX. The pipeline runs inside the voiceforged daemon; this CLI manages the
queue and the daemon.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return application.load()
		},
	}

	root.PersistentFlags().StringVar(&application.configFlag, "config", "",
		fmt.Sprintf("path to config file (default %s)", config.DefaultConfigPath))

	root.AddCommand(
		newAddCommand(application),
		newQueueCommand(application),
		newStatusCommand(application),
		newDaemonCommand(application),
		newCheckpointsCommand(application),
		newConfigCommand(application),
		newToolsCommand(application),
	)
	return root
}
