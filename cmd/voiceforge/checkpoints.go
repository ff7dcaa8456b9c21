package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"voiceforge/internal/checkpoint"
	"voiceforge/internal/dataset"
)

func newCheckpointsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoints <item-id>",
		Short: "List saved training checkpoints for a queued voice build",
		Long: `List every checkpoint in the item's training run directory in the
order training produced them. The newest checkpoint is the one a resumed
run continues from.`,
		Args: cobra.ExactArgs(1),
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
			if item.StagingDir == "" {
				return fmt.Errorf("item %d has no staging directory yet", id)
			}

			layout := dataset.Layout{Root: item.StagingDir}
			checkpoints, err := checkpoint.List(layout.TrainingDir())
			if err != nil {
				return err
			}
			if len(checkpoints) == 0 {
				return fmt.Errorf("item %d: %w in %s", id, checkpoint.ErrNoCheckpoints, layout.TrainingDir())
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Epoch", "Step", "Path"})
			for _, ckpt := range checkpoints {
				t.AppendRow(table.Row{ckpt.Epoch, ckpt.Step, ckpt.Path})
			}
			t.Render()

			// List sorts ascending by (epoch, step), so the resume candidate
			// is the last entry.
			latest := checkpoints[len(checkpoints)-1]
			fmt.Fprintf(cmd.OutOrStdout(), "resume candidate: %s\n", latest.Path)
			return nil
		},
	}
}
