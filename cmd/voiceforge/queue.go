package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"voiceforge/internal/queue"
)

func newQueueCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the build queue",
	}
	cmd.AddCommand(
		newQueueListCommand(a),
		newQueueDescribeCommand(a),
		newQueueRemoveCommand(a),
		newQueueClearCommand(a),
		newQueueRetryCommand(a),
		newQueueResetCommand(a),
	)
	return cmd
}

func newQueueDescribeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <id>",
		Short: "Print one queue item as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			item, err := store.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd, newItemView(item))
		},
	}
}

func newQueueListCommand(a *app) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued voice builds",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			var statuses []queue.Status
			if statusFilter != "" {
				status, err := queue.ParseStatus(statusFilter)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}

			items, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			renderItems(cmd.OutOrStdout(), items)
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "only show items with this status")
	return cmd
}

func newQueueRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove one item from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			item, err := store.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if item.Status.IsProcessing() {
				return fmt.Errorf("item %d is %s; stop the daemon or wait for the stage to finish",
					id, item.Status)
			}

			if err := store.Remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed item %d\n", id)
			return nil
		},
	}
}

func newQueueClearCommand(a *app) *cobra.Command {
	var completedOnly, failedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove items from the queue in bulk",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			var removed int64
			switch {
			case completedOnly && failedOnly:
				return fmt.Errorf("--completed and --failed are mutually exclusive")
			case completedOnly:
				removed, err = store.ClearCompleted(cmd.Context())
			case failedOnly:
				removed, err = store.ClearFailed(cmd.Context())
			default:
				removed, err = store.Clear(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d items\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&completedOnly, "completed", false, "only remove completed items")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only remove failed items")
	return cmd
}

func newQueueResetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return stuck in-flight items to their stage start",
		Long: `Reset items stranded in a processing status, typically after a daemon
crash, back to the status their stage starts from without waiting for the
heartbeat monitor. Interrupted training runs resume from their newest
checkpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			// Items a running daemon heartbeated within the last interval are
			// live, not stuck, and stay untouched.
			grace := time.Duration(a.cfg.Workflow.HeartbeatIntervalSeconds) * time.Second
			ids, err := store.ReclaimStale(cmd.Context(), time.Now().Add(-grace), queue.StageRestartStatuses())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d stuck items\n", len(ids))
			return nil
		},
	}
}

func newQueueRetryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Return failed items to the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			count, err := store.RetryFailed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d failed items\n", count)
			return nil
		},
	}
}
