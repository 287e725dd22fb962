package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/errors"
	"jobscout/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newManualManager(t *testing.T, full *config.Config) (*ObservabilityManager, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	om := &ObservabilityManager{
		config:        ObservabilityConfig{ServiceName: "jobscout-test", Enabled: true},
		fullConfig:    full,
		meterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
	require.NoError(t, om.initCustomMetrics())
	return om, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func counterTotal(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestProviderCallMetrics(t *testing.T) {
	om, reader := newManualManager(t, nil)

	om.ProviderSelected(types.StrategyPrimary, "sample")
	om.ProviderCallCompleted("sample", 20*time.Millisecond, 5, nil)
	om.ProviderCallCompleted("perplexity", time.Second, 0, errors.ProviderUnavailable("perplexity", fmt.Errorf("503")))

	got := collect(t, reader)
	assert.Equal(t, int64(1), counterTotal(t, got["jobscout_provider_selections_total"]))
	assert.Equal(t, int64(2), counterTotal(t, got["jobscout_provider_calls_total"]))
	assert.Equal(t, int64(1), counterTotal(t, got["jobscout_provider_errors_total"]))

	jobs, ok := got["jobscout_provider_jobs_returned"].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, jobs.DataPoints, 1)
	assert.Equal(t, int64(5), jobs.DataPoints[0].Sum)
}

func TestSearchAndRegistryMetrics(t *testing.T) {
	om, reader := newManualManager(t, nil)

	om.RecordSearch(context.Background(), types.StrategyAll, 50*time.Millisecond, 7, nil)
	om.RecordSearch(context.Background(), types.StrategyPrimary, time.Millisecond, 0, errors.NoProvidersAvailable("none"))
	om.RegistryChanged("register", "sample")
	om.RecordRateLimitHit(context.Background(), "/search")

	got := collect(t, reader)
	assert.Equal(t, int64(2), counterTotal(t, got["jobscout_searches_total"]))
	assert.Equal(t, int64(1), counterTotal(t, got["jobscout_registry_changes_total"]))
	assert.Equal(t, int64(1), counterTotal(t, got["jobscout_rate_limit_hits_total"]))
}

func TestMetricToggles(t *testing.T) {
	full := &config.Config{}
	full.Observability.CustomMetrics.ProviderCalls.Enabled = false
	full.Observability.CustomMetrics.Searches.Enabled = true
	full.Observability.CustomMetrics.Searches.TrackRegistryOps = false
	full.Observability.CustomMetrics.Infrastructure.Enabled = true
	full.Observability.CustomMetrics.Infrastructure.TrackRateLimits = false

	om, reader := newManualManager(t, full)
	om.ProviderCallCompleted("sample", time.Millisecond, 1, nil)
	om.RegistryChanged("disable", "sample")
	om.RecordRateLimitHit(context.Background(), "/search")
	om.RecordSearch(context.Background(), types.StrategyPrimary, time.Millisecond, 1, nil)

	got := collect(t, reader)
	_, hasCalls := got["jobscout_provider_calls_total"]
	assert.False(t, hasCalls, "provider metrics are switched off")
	_, hasChanges := got["jobscout_registry_changes_total"]
	assert.False(t, hasChanges)
	_, hasHits := got["jobscout_rate_limit_hits_total"]
	assert.False(t, hasHits)
	assert.Equal(t, int64(1), counterTotal(t, got["jobscout_searches_total"]))
}

func TestDisabledManagerIsInert(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{Enabled: false}, nil, nil)
	require.NoError(t, err)

	om.ProviderSelected(types.StrategyPrimary, "sample")
	om.ProviderCallCompleted("sample", time.Millisecond, 1, nil)
	om.RegistryChanged("register", "sample")
	om.RecordSearch(context.Background(), types.StrategyAll, time.Millisecond, 1, nil)
	om.RecordRateLimitHit(context.Background(), "/search")

	assert.NotNil(t, om.GetMetrics())
	assert.NotNil(t, om.Tracer("test"))
	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestGetObservabilityConfig(t *testing.T) {
	t.Run("defaults without config", func(t *testing.T) {
		cfg := GetObservabilityConfig(nil, "1.2.3")
		assert.Equal(t, "jobscout", cfg.ServiceName)
		assert.Equal(t, "1.2.3", cfg.ServiceVersion)
		assert.Equal(t, "/metrics", cfg.Prometheus.Endpoint)
	})

	t.Run("tracing and metrics switches", func(t *testing.T) {
		full := &config.Config{}
		full.Observability.Enabled = true
		full.Observability.ServiceName = "scout"
		full.Observability.SampleRate = 0.5
		full.Observability.Tracing.Enabled = false
		full.Observability.Metrics.Enabled = false
		full.Observability.Prometheus.Enabled = true

		cfg := GetObservabilityConfig(full, "dev")
		assert.Equal(t, "scout", cfg.ServiceName)
		assert.Equal(t, "dev", cfg.ServiceVersion)
		assert.Equal(t, 0.0, cfg.SampleRate)
		assert.False(t, cfg.Prometheus.Enabled)
	})
}
