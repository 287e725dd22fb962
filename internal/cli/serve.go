package cli

import (
	"context"
	"fmt"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/observability"
	"jobscout/internal/provider"
	"jobscout/internal/registry"
	"jobscout/internal/search"
	"jobscout/internal/server"
	"jobscout/internal/types"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for searches and registry management",
	Long: `Start an HTTP server exposing the search facade and the job source registry.

Available endpoints:
- POST /search: Search for jobs
- GET /sources, GET /sources/{name}: Inspect job sources
- POST /sources/{name}/enable|disable|priority|weight|config: Change a source
- DELETE /sources/{name}: Remove a source
- POST /sources/config/save|load: Persist or restore the registry snapshot
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info`,
	RunE: runServe,
}

func init() {
	registerServeFlags(serveCmd)
}

func registerServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	cmd.Flags().String("host", "", "Host to bind to (default from config)")
	cmd.Flags().String("snapshot", "", "Registry snapshot path (overrides config)")
	cmd.Flags().Bool("watch", false, "Reload the registry when the snapshot file changes")
}

// applyServeFlags copies explicitly set flags over the loaded config
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetString("port")
	}
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("snapshot") {
		cfg.Registry.SnapshotPath, _ = flags.GetString("snapshot")
	}
	if flags.Changed("watch") {
		cfg.Registry.Watch.Enabled, _ = flags.GetBool("watch")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	applyServeFlags(cmd, cfg)

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}

	reg, err := registry.Bootstrap(cfg, provider.DepsFromConfig(cfg, logger),
		registry.WithObserver(om),
		registry.WithLogger(logger))
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = om.Shutdown(shutdownCtx)
		return fmt.Errorf("failed to build job source registry: %w", err)
	}

	svc := search.NewService(reg,
		search.WithRecorder(om),
		search.WithDefaultStrategy(types.Strategy(cfg.Registry.DefaultStrategy)),
		search.WithLogger(logger))

	serverCfg := server.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        Version,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.App.MaxRequestSize,
		RateLimit:      &cfg.Server.RateLimit,
	}
	return server.NewServer(cfg, serverCfg, reg, svc, logger).Start(ctx, om)
}
