// Command workbench_api serves the JSON HTTP API on top of
// the configured backend. Clients authenticate every
// request with their own bearer token.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/byte4ever/workbench_sync/config"
	"github.com/byte4ever/workbench_sync/httpapi"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	const errCtx = "running workbench_api"

	configPath := flag.String(
		"config", "",
		"Path to the YAML configuration file",
	)
	listen := flag.String(
		"listen", "",
		"Listen address (overrides the config file)",
	)
	backend := flag.String(
		"backend", "",
		"Backend: github, gitlab or memory (overrides the config file)",
	)

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if *listen != "" {
		cfg.Listen = *listen
	}

	if *backend != "" {
		cfg.Backend = *backend
	}

	backends, err := cfg.Open()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	api, err := httpapi.New(httpapi.Config{
		Pusher:   backends.Pusher,
		Accounts: backends.Accounts,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	slog.Info(
		"starting api",
		"backend", cfg.Backend,
		"listen", cfg.Listen,
	)

	if err := api.Run(ctx, cfg.Listen); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}
