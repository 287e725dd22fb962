package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jobscout/internal/cli"
	"jobscout/internal/config"
	"jobscout/internal/errors"
)

func main() {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := errors.New(cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Vault credentials win over file and environment values
	if err := config.ApplyVaultSecrets(cfg, logger); err != nil {
		logger.LogError(err, "Failed to load credentials from Vault")
		os.Exit(1)
	}

	logger.Info("Starting jobscout",
		"version", cli.Version,
		"log_level", cfg.App.LogLevel,
		"sources", len(cfg.Sources),
		"default_strategy", cfg.Registry.DefaultStrategy)

	if err := cli.Execute(ctx, cfg, logger); err != nil {
		logger.LogError(err, "Application execution failed")
		os.Exit(1)
	}
}
