package server

import (
	"fmt"
	"sync"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/errors"
)

// SecretVersionReader reads KVv2 secrets with their version metadata
type SecretVersionReader interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
}

// CredentialWatcher polls Vault credential secrets and calls onRotate when
// any of them gets a new version.
type CredentialWatcher struct {
	mu sync.RWMutex

	client       SecretVersionReader
	paths        []string
	pollInterval time.Duration
	onRotate     func()
	logger       *errors.Logger

	stopChan chan struct{}
	running  bool
	versions map[string]int64
}

// NewCredentialWatcher creates a new CredentialWatcher
func NewCredentialWatcher(client SecretVersionReader, paths []string, pollInterval time.Duration, onRotate func(), logger *errors.Logger) *CredentialWatcher {
	return &CredentialWatcher{
		client:       client,
		paths:        paths,
		pollInterval: pollInterval,
		onRotate:     onRotate,
		logger:       logger,
		stopChan:     make(chan struct{}),
		versions:     make(map[string]int64),
	}
}

// Start records the current versions and begins polling
func (cw *CredentialWatcher) Start() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.running {
		return fmt.Errorf("credential watcher is already running")
	}
	if cw.pollInterval <= 0 {
		return fmt.Errorf("credential watcher poll interval must be positive")
	}

	// baseline, so startup does not count as a rotation
	for _, path := range cw.paths {
		if secret, err := cw.client.GetSecretV2(path); err == nil {
			cw.versions[path] = secret.Version
		}
	}

	cw.running = true
	go cw.pollLoop()
	if cw.logger != nil {
		cw.logger.Info("Credential watcher started", "paths", cw.paths, "poll_interval", cw.pollInterval)
	}
	return nil
}

// Stop stops the watcher
func (cw *CredentialWatcher) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if !cw.running {
		return nil
	}
	close(cw.stopChan)
	cw.running = false
	if cw.logger != nil {
		cw.logger.Info("Credential watcher stopped")
	}
	return nil
}

func (cw *CredentialWatcher) pollLoop() {
	ticker := time.NewTicker(cw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if cw.checkForUpdates() {
				if cw.logger != nil {
					cw.logger.Info("Provider credentials rotated in Vault, rebuilding providers")
				}
				cw.onRotate()
			}
		case <-cw.stopChan:
			return
		}
	}
}

// checkForUpdates reports whether any secret version moved forward
func (cw *CredentialWatcher) checkForUpdates() bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	changed := false
	for _, path := range cw.paths {
		secret, err := cw.client.GetSecretV2(path)
		if err != nil {
			if cw.logger != nil {
				cw.logger.LogError(err, "Failed to check Vault for credential updates", "path", path)
			}
			continue
		}
		if secret.Version > cw.versions[path] {
			cw.versions[path] = secret.Version
			changed = true
		}
	}
	return changed
}

// Status returns the watcher state for /stats
func (cw *CredentialWatcher) Status() map[string]any {
	cw.mu.RLock()
	defer cw.mu.RUnlock()

	versions := make(map[string]int64, len(cw.versions))
	for path, v := range cw.versions {
		versions[path] = v
	}
	return map[string]any{
		"running":       cw.running,
		"poll_interval": cw.pollInterval.String(),
		"versions":      versions,
	}
}
