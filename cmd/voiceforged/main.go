// Command voiceforged is the long-running voice building daemon. It owns the
// queue database, drives the pipeline, and answers CLI requests over a Unix
// socket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"voiceforge/internal/config"
	"voiceforge/internal/daemon"
	"voiceforge/internal/logging"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/voiceforge/config.toml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("voiceforged", version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "voiceforged:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	if !exists {
		logger.Warn("no config file found, running with defaults",
			logging.String("path", resolved))
	}

	return daemon.New(cfg, version, logger).Run(context.Background())
}
