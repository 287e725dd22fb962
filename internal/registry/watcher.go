package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"jobscout/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the registry when its snapshot file is edited externally.
// Writes made by SaveConfig are recognised and skipped.
type Watcher struct {
	mu sync.Mutex

	registry *Registry
	path     string
	logger   *errors.Logger

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}
	onReload   func(error)

	running bool
}

// NewWatcher creates a watcher for path. onReload, if set, is called after
// every reload attempt with its outcome.
func NewWatcher(registry *Registry, path string, debounceDelay time.Duration, onReload func(error), logger *errors.Logger) *Watcher {
	if debounceDelay <= 0 {
		debounceDelay = time.Second
	}
	return &Watcher{
		registry:      registry,
		path:          filepath.Clean(path),
		logger:        logger,
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		reloadChan:    make(chan struct{}, 1),
		onReload:      onReload,
	}
}

// Start begins watching. The parent directory is watched so atomic
// replacements and late file creation are seen.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("snapshot watcher is already running")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = fsWatcher.Close()
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		_ = fsWatcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	w.fsWatcher = fsWatcher
	w.running = true
	go w.watchLoop(fsWatcher)

	if w.logger != nil {
		w.logger.Info("Snapshot watcher started", "path", w.path, "debounce_delay", w.debounceDelay)
	}
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	close(w.stopChan)
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.running = false

	if err := w.fsWatcher.Close(); err != nil {
		if w.logger != nil {
			w.logger.LogError(err, "Failed to close snapshot watcher")
		}
		return err
	}
	if w.logger != nil {
		w.logger.Info("Snapshot watcher stopped", "path", w.path)
	}
	return nil
}

func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) watchLoop(fsWatcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == w.path &&
				event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.LogError(err, "Snapshot watcher error")
			}

		case <-w.reloadChan:
			w.reload()

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, func() {
		select {
		case w.reloadChan <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) reload() {
	stat, err := os.Stat(w.path)
	if err != nil {
		// removed or mid-replace; the next event will retry
		return
	}
	if w.registry.wroteAt(w.path, stat.ModTime()) {
		return
	}

	err = w.registry.LoadConfig(w.path)
	if w.logger != nil {
		if err != nil {
			w.logger.LogError(err, "Snapshot reload failed, keeping current registry", "path", w.path)
		} else {
			w.logger.Info("Snapshot changed on disk, registry reloaded", "path", w.path)
		}
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}

// wroteAt reports whether the registry itself produced path at modTime.
func (r *Registry) wroteAt(path string, modTime time.Time) bool {
	r.writesMu.Lock()
	defer r.writesMu.Unlock()
	last, ok := r.lastWrite[filepath.Clean(path)]
	return ok && last.Equal(modTime)
}
