package registry

import (
	"path/filepath"
	"testing"

	"jobscout/internal/config"
	"jobscout/internal/errors"
	"jobscout/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(snapshot string) *config.Config {
	cfg := &config.Config{
		Sources: map[string]config.SourceConfig{
			"sample":     {Module: "provider/sample", Class: "SampleProvider", Enabled: true, Priority: 1, Weight: 1, Config: map[string]any{}},
			"perplexity": {Module: "provider/perplexity", Class: "PerplexityProvider", Enabled: false, Priority: 10, Weight: 10, Config: map[string]any{"model": "sonar-pro"}},
		},
	}
	cfg.Registry.SnapshotPath = snapshot
	return cfg
}

func TestBootstrapRegistersConfiguredSources(t *testing.T) {
	r, err := Bootstrap(testConfig(""), provider.Deps{})
	require.NoError(t, err)

	assert.Equal(t, []string{"perplexity", "sample"}, names(r.GetAll(false)))
	assert.Equal(t, []string{"sample"}, names(r.GetAll(true)))

	primary, err := r.SelectPrimary()
	require.NoError(t, err)
	assert.Equal(t, "sample", primary.Name)
}

func TestBootstrapUnknownImplementation(t *testing.T) {
	cfg := testConfig("")
	cfg.Sources["indeed"] = config.SourceConfig{Module: "provider/indeed", Class: "IndeedProvider", Priority: 3}

	_, err := Bootstrap(cfg, provider.Deps{})
	if code := errors.CodeOf(err); code != errors.ErrCodeUnknownProvider {
		t.Errorf("Expected %s, got %s", errors.ErrCodeUnknownProvider, code)
	}
}

func TestBootstrapLoadOnStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.json")

	t.Run("missing snapshot keeps configured sources", func(t *testing.T) {
		cfg := testConfig(path)
		cfg.Registry.LoadOnStart = true
		r, err := Bootstrap(cfg, provider.Deps{})
		require.NoError(t, err)
		assert.Len(t, r.GetAll(false), 2)
	})

	t.Run("snapshot replaces configured sources", func(t *testing.T) {
		seed, err := Bootstrap(testConfig(""), provider.Deps{})
		require.NoError(t, err)
		require.NoError(t, seed.Deregister("perplexity"))
		require.NoError(t, seed.SetWeight("sample", 4))
		require.NoError(t, seed.SaveConfig(path))

		cfg := testConfig(path)
		cfg.Registry.LoadOnStart = true
		r, err := Bootstrap(cfg, provider.Deps{})
		require.NoError(t, err)
		assert.Equal(t, []string{"sample"}, names(r.GetAll(false)))

		rec, err := r.Get("sample")
		require.NoError(t, err)
		assert.Equal(t, 4, rec.Weight)
	})
}

func TestRebuildKeepsSettings(t *testing.T) {
	r, err := Bootstrap(testConfig(""), provider.Deps{})
	require.NoError(t, err)
	require.NoError(t, r.SetPriority("sample", 7))
	before, err := r.Get("perplexity")
	require.NoError(t, err)

	require.NoError(t, r.Rebuild(provider.NewFactory(provider.Deps{})))

	after, err := r.Get("perplexity")
	require.NoError(t, err)
	assert.NotSame(t, before.Provider, after.Provider)
	assert.Equal(t, before.Info(), after.Info())

	sample, err := r.Get("sample")
	require.NoError(t, err)
	assert.Equal(t, 7, sample.Priority)
}
