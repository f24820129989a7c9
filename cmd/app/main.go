package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/josancamon19/web-environments/internal/cli"
	"github.com/josancamon19/web-environments/internal/config"
	"github.com/josancamon19/web-environments/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Ctrl+C ends the current session; the engines finalize on the way out.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cfg, log)
	if err := root.ExecuteContext(ctx); err != nil {
		log.Errorw("command failed", "err", err)
		os.Exit(1)
	}
}
