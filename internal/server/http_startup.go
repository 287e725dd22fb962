package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/observability"
	"jobscout/internal/provider"
	"jobscout/internal/registry"
)

// Start serves until ctx is cancelled or the listener fails, then shuts
// everything down gracefully.
func (s *Server) Start(ctx context.Context, om *observability.ObservabilityManager) error {
	defer s.shutdownObservability(om)

	httpServer := s.setupHTTPServer(om)

	if err := s.startSnapshotWatcher(); err != nil {
		return err
	}
	if err := s.startCredentialWatcher(); err != nil {
		s.stopWatchers()
		return err
	}

	s.displayServerInfo()

	return s.startWithGracefulShutdown(ctx, httpServer)
}

// shutdownObservability handles observability cleanup
func (s *Server) shutdownObservability(om *observability.ObservabilityManager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown observability")
	}
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer(om *observability.ObservabilityManager) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:           s.Handler(om),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.ReadTimeout,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       s.IdleTimeout,
	}
}

// startSnapshotWatcher reloads the registry when the snapshot file is edited
func (s *Server) startSnapshotWatcher() error {
	if s.AppConfig == nil || !s.AppConfig.Registry.Watch.Enabled || s.AppConfig.Registry.SnapshotPath == "" {
		return nil
	}

	path := s.AppConfig.Registry.SnapshotPath
	s.SnapshotWatcher = registry.NewWatcher(s.Registry, path, s.AppConfig.Registry.Watch.DebounceDelay,
		func(err error) {
			if err != nil {
				s.Logger.LogError(err, "Registry snapshot reload failed, keeping current sources", "path", path)
			}
		}, s.Logger)

	if err := s.SnapshotWatcher.Start(); err != nil {
		return fmt.Errorf("failed to start snapshot watcher: %w", err)
	}
	return nil
}

// startCredentialWatcher rebuilds providers when Vault credentials rotate
func (s *Server) startCredentialWatcher() error {
	if s.AppConfig == nil || !s.AppConfig.Vault.Enabled || s.AppConfig.Vault.PollInterval <= 0 {
		return nil
	}
	paths := s.AppConfig.Vault.SecretPaths()
	if len(paths) == 0 {
		return nil
	}

	client, err := config.NewVaultClient(s.AppConfig.Vault, s.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}

	s.CredentialWatcher = NewCredentialWatcher(client, paths, s.AppConfig.Vault.PollInterval, s.rotateCredentials(client), s.Logger)
	return s.CredentialWatcher.Start()
}

// rotateCredentials re-reads credentials and rebuilds every provider with them
func (s *Server) rotateCredentials(client *config.VaultClient) func() {
	return func() {
		providers, err := client.RefreshProviderCredentials(s.AppConfig.Vault, s.AppConfig.Providers)
		if err != nil {
			s.Logger.LogError(err, "Failed to refresh provider credentials")
			return
		}
		s.AppConfig.Providers = providers

		factory := provider.NewFactory(provider.DepsFromConfig(s.AppConfig, s.Logger))
		if err := s.Registry.Rebuild(factory); err != nil {
			s.Logger.LogError(err, "Failed to rebuild providers after credential rotation")
			return
		}
		s.Logger.Info("Providers rebuilt with rotated credentials")
	}
}

// startWithGracefulShutdown starts the HTTP server and handles graceful shutdown
func (s *Server) startWithGracefulShutdown(ctx context.Context, server *http.Server) error {
	serverErrors := make(chan error, 1)

	go func() {
		s.Logger.Info("Starting HTTP server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		s.stopWatchers()
		s.cleanupRateLimiter()
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		s.Logger.Info("Received shutdown signal, starting graceful shutdown")
		return s.performGracefulShutdown(server)
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.stopWatchers()
	s.cleanupRateLimiter()

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.saveOnShutdown()

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// saveOnShutdown persists the registry when registry.saveOnShutdown is set
func (s *Server) saveOnShutdown() {
	if s.AppConfig == nil || !s.AppConfig.Registry.SaveOnShutdown || s.AppConfig.Registry.SnapshotPath == "" {
		return
	}
	if err := s.Registry.SaveConfig(s.AppConfig.Registry.SnapshotPath); err != nil {
		s.Logger.LogError(err, "Failed to save registry snapshot on shutdown")
		return
	}
	s.Logger.Info("Registry snapshot saved", "path", s.AppConfig.Registry.SnapshotPath)
}

func (s *Server) stopWatchers() {
	if s.SnapshotWatcher != nil {
		if err := s.SnapshotWatcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop snapshot watcher")
		}
	}
	if s.CredentialWatcher != nil {
		if err := s.CredentialWatcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop credential watcher")
		}
	}
}

// cleanupRateLimiter cleans up the rate limiter resources
func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}
