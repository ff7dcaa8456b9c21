package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"voiceforge/internal/dataset"
	"voiceforge/internal/queue"
)

func newAddCommand(a *app) *cobra.Command {
	var voiceName string

	cmd := &cobra.Command{
		Use:   "add <url-or-file>",
		Short: "Enqueue a voice build from a URL or a local audio file",
		Long: `Enqueue a voice build. Remote URLs are downloaded with yt-dlp; local
audio files skip the download stage. The voice name becomes the exported
model's name in the voice library.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := strings.TrimSpace(args[0])
			if source == "" {
				return fmt.Errorf("source must not be empty")
			}
			if strings.TrimSpace(voiceName) == "" {
				return fmt.Errorf("--name is required")
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			var item *queue.Item
			if isRemote(source) {
				item, err = store.NewRemote(cmd.Context(), voiceName, source)
			} else {
				absolute, pathErr := filepath.Abs(source)
				if pathErr != nil {
					return fmt.Errorf("resolve source path: %w", pathErr)
				}
				if _, statErr := os.Stat(absolute); statErr != nil {
					return fmt.Errorf("local source %s is not readable: %w", absolute, statErr)
				}
				item, err = store.NewLocal(cmd.Context(), voiceName, absolute)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "queued item %d: voice %q from %s (status %s)\n",
				item.ID, dataset.VoiceSlug(voiceName), item.SourceLabel(), item.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&voiceName, "name", "n", "", "name for the built voice (required)")
	return cmd
}

func isRemote(source string) bool {
	parsed, err := url.Parse(source)
	if err != nil {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}
