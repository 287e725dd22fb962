package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New(), false)
	require.NoError(t, err)

	assert.Equal(t, "primary", cfg.Registry.DefaultStrategy)
	assert.Equal(t, "sources.json", cfg.Registry.SnapshotPath)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "json", cfg.App.DefaultFormat)

	require.Contains(t, cfg.Sources, "sample")
	require.Contains(t, cfg.Sources, "perplexity")
	require.Contains(t, cfg.Sources, "adzuna")

	sample := cfg.Sources["sample"]
	assert.True(t, sample.Enabled)
	assert.Equal(t, "provider/sample", sample.Module)
	assert.Equal(t, "SampleProvider", sample.Class)
	assert.NotNil(t, sample.Config)

	assert.False(t, cfg.Sources["perplexity"].Enabled, "perplexity needs an API key")
	assert.Equal(t, 10, cfg.Sources["perplexity"].Priority)
	assert.NotEmpty(t, cfg.Observability.ServiceInstance)
}

func TestLoadEnablesCredentialedSources(t *testing.T) {
	t.Setenv("JOBSCOUT_PROVIDERS_PERPLEXITY_APIKEY", "pplx-test")

	cfg, err := load(viper.New(), false)
	require.NoError(t, err)

	assert.Equal(t, "pplx-test", cfg.Providers.Perplexity.APIKey)
	assert.True(t, cfg.Sources["perplexity"].Enabled)
	assert.False(t, cfg.Sources["adzuna"].Enabled)
}

func TestLoadOverrides(t *testing.T) {
	v := viper.New()
	v.Set("registry.defaultStrategy", "load_balance")
	v.Set("sources.sample.weight", 7)

	cfg, err := load(v, false)
	require.NoError(t, err)
	assert.Equal(t, "load_balance", cfg.Registry.DefaultStrategy)
	assert.Equal(t, 7, cfg.Sources["sample"].Weight)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Registry: RegistryConfig{DefaultStrategy: "primary"},
			Server:   ServerConfig{Port: "8080"},
			App:      AppConfig{DefaultFormat: "json", SupportedFormats: []string{"json", "text"}},
			Sources: map[string]SourceConfig{
				"sample": {Module: "provider/sample", Class: "SampleProvider", Priority: 1, Weight: 1},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"bad format", func(c *Config) { c.App.DefaultFormat = "xml" }, "invalid default format"},
		{"bad strategy", func(c *Config) { c.Registry.DefaultStrategy = "random" }, "invalid default strategy"},
		{"negative priority", func(c *Config) {
			c.Sources["sample"] = SourceConfig{Module: "m", Class: "c", Priority: -1}
		}, "priority must be non-negative"},
		{"negative weight", func(c *Config) {
			c.Sources["sample"] = SourceConfig{Module: "m", Class: "c", Weight: -1}
		}, "weight must be non-negative"},
		{"missing class", func(c *Config) {
			c.Sources["sample"] = SourceConfig{Module: "m"}
		}, "module and class are required"},
		{"bad threshold", func(c *Config) { c.Providers.CircuitBreaker.FailureThreshold = 1.5 }, "failure threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNormalizeSourceNames(t *testing.T) {
	cfg := &Config{Sources: map[string]SourceConfig{
		" Perplexity ": {Module: "provider/perplexity", Class: "PerplexityProvider"},
	}}
	cfg.normalizeSourceNames()

	require.Contains(t, cfg.Sources, "perplexity")
	assert.NotNil(t, cfg.Sources["perplexity"].Config)
}

func TestSourceNames(t *testing.T) {
	cfg := &Config{Sources: map[string]SourceConfig{
		"b":    {Priority: 5},
		"a":    {Priority: 5},
		"high": {Priority: 10},
		"low":  {Priority: 0},
	}}
	assert.Equal(t, []string{"high", "a", "b", "low"}, cfg.SourceNames())
}
