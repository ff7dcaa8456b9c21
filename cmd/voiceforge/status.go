package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"voiceforge/internal/ipc"
)

const dialTimeout = 2 * time.Second

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ipc.Dial(a.cfg.SocketPath(), dialTimeout)
			if err != nil {
				// The daemon being down is still a useful answer; fall back
				// to reading the queue directly.
				fmt.Fprintln(cmd.OutOrStdout(), "daemon: not running")
				return renderOfflineStatus(cmd, a)
			}
			defer client.Close()

			status, err := client.Status()
			if err != nil {
				return err
			}
			renderStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func renderOfflineStatus(cmd *cobra.Command, a *app) error {
	store, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	items, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	renderItems(cmd.OutOrStdout(), items)
	return nil
}

func newDaemonCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Control the voiceforged daemon",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Check whether the daemon is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ipc.Dial(a.cfg.SocketPath(), dialTimeout)
			if err != nil {
				return fmt.Errorf("daemon is not running: %w", err)
			}
			defer client.Close()

			reply, err := client.Ping()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "daemon is running (pid %d, version %s)\n", reply.PID, reply.Version)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Ask the daemon to shut down",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ipc.Dial(a.cfg.SocketPath(), dialTimeout)
			if err != nil {
				return fmt.Errorf("daemon is not running: %w", err)
			}
			defer client.Close()

			if err := client.Shutdown(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "shutdown requested")
			return nil
		},
	})

	return cmd
}
