package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"voiceforge/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(
		newConfigInitCommand(a),
		newConfigShowCommand(a),
		newConfigValidateCommand(a),
	)
	return cmd
}

func newConfigInitCommand(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an annotated sample config file",
		// The root pre-run loads and validates config, which defeats the
		// point of init on a broken or absent file; skip it.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := config.CreateSample(a.configFlag, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote sample config to %s\n", written)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func newConfigShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.configExists {
				fmt.Fprintf(cmd.OutOrStdout(), "no config file at %s; defaults are in effect\n", a.resolvedConfig)
				return nil
			}
			data, err := os.ReadFile(a.resolvedConfig)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", a.resolvedConfig, data)
			return nil
		},
	}
}

func newConfigValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file for problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load and Validate already ran in the root pre-run; reaching
			// this point means the file is usable.
			if a.configExists {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", a.resolvedConfig)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "no config file at %s; defaults are valid\n", a.resolvedConfig)
			}
			return nil
		},
	}
}
