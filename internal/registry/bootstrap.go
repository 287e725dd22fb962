package registry

import (
	"fmt"
	"os"

	"jobscout/internal/config"
	"jobscout/internal/errors"
	"jobscout/internal/provider"
)

// Bootstrap builds a registry from the configured sources. When
// registry.loadOnStart is set and the snapshot exists, the snapshot replaces
// the configured sources.
func Bootstrap(cfg *config.Config, deps provider.Deps, opts ...Option) (*Registry, error) {
	r := New(provider.NewFactory(deps), opts...)

	if err := r.RegisterSources(cfg.Sources, cfg.SourceNames()); err != nil {
		return nil, err
	}

	path := cfg.Registry.SnapshotPath
	if !cfg.Registry.LoadOnStart || path == "" {
		return r, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if r.logger != nil {
			r.logger.Info("No registry snapshot yet, using configured sources", "path", path)
		}
		return r, nil
	}
	if err := r.LoadConfig(path); err != nil {
		return nil, fmt.Errorf("failed to load registry snapshot: %w", err)
	}
	return r, nil
}

// RegisterSources builds and registers each named source in order.
func (r *Registry) RegisterSources(sources map[string]config.SourceConfig, order []string) error {
	for _, name := range order {
		src, ok := sources[name]
		if !ok {
			continue
		}
		p, err := r.currentFactory().Build(provider.Ref{Module: src.Module, Class: src.Class})
		if err != nil {
			return addName(err, name)
		}
		if err := r.Register(name, p, src.Priority, src.Enabled, src.Weight, src.Config); err != nil {
			return err
		}
	}
	return nil
}

func addName(err error, name string) error {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr.WithContext("name", name)
	}
	return err
}

func (r *Registry) currentFactory() *provider.Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factory
}

// Rebuild reconstructs every provider through factory, keeping names and
// settings. It is used when credentials rotate. On error nothing changes.
func (r *Registry) Rebuild(factory *provider.Factory) error {
	r.mu.RLock()
	rebuilt := make(map[string]provider.Provider, len(r.records))
	for name, rec := range r.records {
		p, err := factory.Build(rec.Provider.Ref())
		if err != nil {
			r.mu.RUnlock()
			return addName(err, name)
		}
		rebuilt[name] = p
	}
	r.mu.RUnlock()

	r.mu.Lock()
	r.factory = factory
	for name, p := range rebuilt {
		// skip records re-registered with another implementation meanwhile
		if rec, ok := r.records[name]; ok && rec.Provider.Ref() == p.Ref() {
			rec.Provider = p
		}
	}
	r.mu.Unlock()

	r.changed("rebuild", "*")
	return nil
}
