package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voiceforge/internal/deps"
)

func newToolsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Check that the pipeline's external tools are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := deps.CheckBinaries(deps.Requirements(a.cfg))
			renderToolStatuses(cmd.OutOrStdout(), statuses)
			if !deps.AllSatisfied(statuses) {
				return fmt.Errorf("one or more required tools are missing")
			}
			return nil
		},
	}
}
