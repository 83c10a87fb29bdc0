package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"resumatch/internal/cli"
	"resumatch/internal/config"
	"resumatch/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := bootstrap()
	if err != nil {
		fmt.Fprintln(os.Stderr, "resumatch:", err)
		os.Exit(1)
	}

	if err := cli.Execute(ctx, cfg, logger); err != nil {
		logger.LogError(err, "Command failed")
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the logger, the two things
// every command needs before cobra takes over.
func bootstrap() (*config.Config, *errors.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := errors.New(cfg.App.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}

	logger.Info("Starting resumatch",
		"version", cli.Version, "log_level", cfg.App.LogLevel, "ai_provider", cfg.AI.Provider)

	return cfg, logger, nil
}
