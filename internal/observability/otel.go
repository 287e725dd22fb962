package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/errors"
	"jobscout/internal/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ObservabilityConfig holds configuration for observability
type ObservabilityConfig struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
	ConsoleOutput  bool
	PrettyPrint    bool
	SampleRate     float64
	Prometheus     PrometheusConfig
}

// Metrics holds all custom instruments for jobscout
type Metrics struct {
	// Provider call metrics
	ProviderCallDuration metric.Float64Histogram
	ProviderCallCount    metric.Int64Counter
	ProviderErrorCount   metric.Int64Counter
	ProviderJobsReturned metric.Int64Histogram
	ProviderSelections   metric.Int64Counter

	// Search metrics
	SearchCount    metric.Int64Counter
	SearchDuration metric.Float64Histogram
	SearchJobs     metric.Int64Histogram

	// Registry metrics
	RegistryChanges metric.Int64Counter

	// Rate limiting metrics
	RateLimitHits metric.Int64Counter
}

// ObservabilityManager manages OpenTelemetry setup and records domain events.
// It satisfies registry.Observer and search.Recorder.
type ObservabilityManager struct {
	config           ObservabilityConfig
	fullConfig       *config.Config
	tracerProvider   *trace.TracerProvider
	meterProvider    *sdkmetric.MeterProvider
	metrics          *Metrics
	shutdownFuncs    []func(context.Context) error
	prometheusServer *http.Server
	logger           *errors.Logger
}

// NewObservabilityManager creates a new observability manager
func NewObservabilityManager(obsConfig ObservabilityConfig, fullConfig *config.Config, logger *errors.Logger) (*ObservabilityManager, error) {
	if !obsConfig.Enabled {
		return &ObservabilityManager{config: obsConfig, fullConfig: fullConfig, logger: logger}, nil
	}

	om := &ObservabilityManager{
		config:        obsConfig,
		fullConfig:    fullConfig,
		logger:        logger,
		shutdownFuncs: make([]func(context.Context) error, 0),
	}

	res, err := om.newResource()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize resource: %w", err)
	}

	if err := om.initTracing(res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := om.initMetrics(res); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return om, nil
}

// newResource creates the OpenTelemetry resource shared by traces and metrics
func (om *ObservabilityManager) newResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(om.config.ServiceName),
			semconv.ServiceVersion(om.config.ServiceVersion),
			attribute.String("service.instance.id", om.getServiceInstanceID()),
		),
	)
}

// initTracing sets up OpenTelemetry tracing
func (om *ObservabilityManager) initTracing(res *resource.Resource) error {
	var exporter trace.SpanExporter
	var err error

	switch {
	case om.config.ConsoleOutput:
		opts := []stdouttrace.Option{}
		if om.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	case om.fullConfig != nil && om.fullConfig.Observability.OTLP.Enabled:
		exporter, err = om.createOTLPExporter()
	default:
		exporter = &noOpSpanExporter{}
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(om.config.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	om.tracerProvider = tp
	om.shutdownFuncs = append(om.shutdownFuncs, tp.Shutdown)

	return nil
}

// initMetrics sets up OpenTelemetry metrics
func (om *ObservabilityManager) initMetrics(res *resource.Resource) error {
	readers, err := om.setupMetricReaders()
	if err != nil {
		return err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(opts...)

	otel.SetMeterProvider(mp)
	om.meterProvider = mp
	om.shutdownFuncs = append(om.shutdownFuncs, mp.Shutdown)

	return om.initCustomMetrics()
}

// setupMetricReaders sets up all metric readers based on configuration
func (om *ObservabilityManager) setupMetricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	if err := om.setupConsoleReader(&readers); err != nil {
		return nil, err
	}

	if err := om.setupOTLPReader(&readers); err != nil {
		return nil, err
	}

	if err := om.setupPrometheusReader(&readers); err != nil {
		return nil, err
	}

	// If no readers configured, use manual reader as fallback
	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}

	return readers, nil
}

// setupConsoleReader sets up console metric reader if enabled
func (om *ObservabilityManager) setupConsoleReader(readers *[]sdkmetric.Reader) error {
	if !om.config.ConsoleOutput {
		return nil
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		return fmt.Errorf("failed to create console metric exporter: %w", err)
	}

	interval := om.getMetricsCollectionInterval()
	*readers = append(*readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)))
	return nil
}

// setupOTLPReader sets up OTLP metric reader if enabled
func (om *ObservabilityManager) setupOTLPReader(readers *[]sdkmetric.Reader) error {
	if om.fullConfig == nil || !om.fullConfig.Observability.OTLP.Enabled {
		return nil
	}

	otlpReader, err := om.createOTLPMetricsReader()
	if err != nil {
		return fmt.Errorf("failed to create OTLP metrics reader: %w", err)
	}
	*readers = append(*readers, otlpReader)
	return nil
}

// setupPrometheusReader sets up the Prometheus reader and its scrape server
func (om *ObservabilityManager) setupPrometheusReader(readers *[]sdkmetric.Reader) error {
	if !om.config.Prometheus.Enabled {
		return nil
	}

	prometheusReader, prometheusMux, err := SetupPrometheusExporter(om.config.Prometheus)
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	if prometheusReader == nil {
		return nil
	}
	*readers = append(*readers, prometheusReader)

	server, err := StartPrometheusServer(prometheusMux, om.config.Prometheus.Port, om.logger)
	if err != nil {
		return fmt.Errorf("failed to start Prometheus server: %w", err)
	}
	om.prometheusServer = server
	om.shutdownFuncs = append(om.shutdownFuncs, server.Shutdown)
	return nil
}

// initCustomMetrics creates all custom instruments for jobscout
func (om *ObservabilityManager) initCustomMetrics() error {
	meter := om.meterProvider.Meter(om.config.ServiceName)
	om.metrics = &Metrics{}

	if err := om.createProviderMetrics(meter); err != nil {
		return err
	}

	if err := om.createSearchMetrics(meter); err != nil {
		return err
	}

	return om.createRateLimitMetrics(meter)
}

// createProviderMetrics creates per-provider call metrics
func (om *ObservabilityManager) createProviderMetrics(meter metric.Meter) error {
	var err error

	om.metrics.ProviderCallDuration, err = meter.Float64Histogram(
		"jobscout_provider_call_duration_seconds",
		metric.WithDescription("Time spent in provider search calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create provider call duration metric: %w", err)
	}

	om.metrics.ProviderCallCount, err = meter.Int64Counter(
		"jobscout_provider_calls_total",
		metric.WithDescription("Total number of provider search calls"),
	)
	if err != nil {
		return fmt.Errorf("failed to create provider call count metric: %w", err)
	}

	om.metrics.ProviderErrorCount, err = meter.Int64Counter(
		"jobscout_provider_errors_total",
		metric.WithDescription("Total number of failed provider search calls"),
	)
	if err != nil {
		return fmt.Errorf("failed to create provider error count metric: %w", err)
	}

	om.metrics.ProviderJobsReturned, err = meter.Int64Histogram(
		"jobscout_provider_jobs_returned",
		metric.WithDescription("Normalized jobs returned per provider call"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create provider jobs metric: %w", err)
	}

	om.metrics.ProviderSelections, err = meter.Int64Counter(
		"jobscout_provider_selections_total",
		metric.WithDescription("Total number of times a provider was selected"),
	)
	if err != nil {
		return fmt.Errorf("failed to create provider selection metric: %w", err)
	}

	return nil
}

// createSearchMetrics creates search and registry metrics
func (om *ObservabilityManager) createSearchMetrics(meter metric.Meter) error {
	var err error

	om.metrics.SearchCount, err = meter.Int64Counter(
		"jobscout_searches_total",
		metric.WithDescription("Total number of searches"),
	)
	if err != nil {
		return fmt.Errorf("failed to create search count metric: %w", err)
	}

	om.metrics.SearchDuration, err = meter.Float64Histogram(
		"jobscout_search_duration_seconds",
		metric.WithDescription("End-to-end search time"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create search duration metric: %w", err)
	}

	om.metrics.SearchJobs, err = meter.Int64Histogram(
		"jobscout_search_jobs",
		metric.WithDescription("Jobs returned per search"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create search jobs metric: %w", err)
	}

	om.metrics.RegistryChanges, err = meter.Int64Counter(
		"jobscout_registry_changes_total",
		metric.WithDescription("Total number of registry mutations"),
	)
	if err != nil {
		return fmt.Errorf("failed to create registry change metric: %w", err)
	}

	return nil
}

// createRateLimitMetrics creates rate limiting metrics
func (om *ObservabilityManager) createRateLimitMetrics(meter metric.Meter) error {
	var err error

	om.metrics.RateLimitHits, err = meter.Int64Counter(
		"jobscout_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	return nil
}

// GetMetrics returns the metrics instance
func (om *ObservabilityManager) GetMetrics() *Metrics {
	if om.metrics == nil {
		return &Metrics{}
	}
	return om.metrics
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (om *ObservabilityManager) HTTPMiddleware() func(http.Handler) http.Handler {
	if !om.config.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}

	return otelhttp.NewMiddleware(
		om.config.ServiceName,
		otelhttp.WithTracerProvider(om.tracerProvider),
		otelhttp.WithMeterProvider(om.meterProvider),
	)
}

// Tracer returns a tracer for the service
func (om *ObservabilityManager) Tracer(name string) oteltrace.Tracer {
	if !om.config.Enabled {
		return noop.NewTracerProvider().Tracer(name)
	}
	return otel.Tracer(name)
}

// Shutdown flushes exporters and stops the scrape server
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	for _, shutdown := range om.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ProviderSelected counts a selection made by the registry.
func (om *ObservabilityManager) ProviderSelected(strategy types.Strategy, name string) {
	m := om.metrics
	if m == nil || m.ProviderSelections == nil || !om.providerMetricsEnabled() {
		return
	}
	m.ProviderSelections.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("provider", name),
		attribute.String("strategy", string(strategy)),
	))
}

// ProviderCallCompleted records one provider search call.
func (om *ObservabilityManager) ProviderCallCompleted(name string, duration time.Duration, jobCount int, err error) {
	m := om.metrics
	if m == nil || m.ProviderCallCount == nil || !om.providerMetricsEnabled() {
		return
	}

	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("provider", name),
		attribute.Bool("success", err == nil),
	)

	m.ProviderCallCount.Add(ctx, 1, attrs)
	if om.fullConfig == nil || om.fullConfig.Observability.CustomMetrics.ProviderCalls.TrackDuration {
		m.ProviderCallDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if err != nil {
		m.ProviderErrorCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", name),
			attribute.String("code", errorCode(err)),
		))
		return
	}
	if om.fullConfig == nil || om.fullConfig.Observability.CustomMetrics.ProviderCalls.TrackJobCount {
		m.ProviderJobsReturned.Record(ctx, int64(jobCount), attrs)
	}
}

// RegistryChanged counts a registry mutation.
func (om *ObservabilityManager) RegistryChanged(operation, name string) {
	m := om.metrics
	if m == nil || m.RegistryChanges == nil || !om.searchMetricsEnabled() {
		return
	}
	if om.fullConfig != nil && !om.fullConfig.Observability.CustomMetrics.Searches.TrackRegistryOps {
		return
	}
	m.RegistryChanges.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("provider", name),
	))
}

// RecordSearch records one completed search.
func (om *ObservabilityManager) RecordSearch(ctx context.Context, strategy types.Strategy, duration time.Duration, jobCount int, err error) {
	m := om.metrics
	if m == nil || m.SearchCount == nil || !om.searchMetricsEnabled() {
		return
	}

	attrs := []attribute.KeyValue{}
	if om.fullConfig == nil || om.fullConfig.Observability.CustomMetrics.Searches.TrackStrategies {
		attrs = append(attrs, attribute.String("strategy", string(strategy)))
	}
	if om.fullConfig == nil || om.fullConfig.Observability.CustomMetrics.Searches.TrackSuccessRates {
		attrs = append(attrs, attribute.Bool("success", err == nil))
	}

	m.SearchCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.SearchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if err == nil {
		m.SearchJobs.Record(ctx, int64(jobCount), metric.WithAttributes(attrs...))
	}
}

// RecordRateLimitHit counts a request rejected by the inbound limiter.
func (om *ObservabilityManager) RecordRateLimitHit(ctx context.Context, route string) {
	m := om.metrics
	if m == nil || m.RateLimitHits == nil {
		return
	}
	// Rate limiting is an infrastructure metric
	if om.fullConfig != nil {
		infra := om.fullConfig.Observability.CustomMetrics.Infrastructure
		if !infra.Enabled || !infra.TrackRateLimits {
			return
		}
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
}

func (om *ObservabilityManager) providerMetricsEnabled() bool {
	return om.fullConfig == nil || om.fullConfig.Observability.CustomMetrics.ProviderCalls.Enabled
}

func (om *ObservabilityManager) searchMetricsEnabled() bool {
	return om.fullConfig == nil || om.fullConfig.Observability.CustomMetrics.Searches.Enabled
}

func errorCode(err error) string {
	if code := errors.CodeOf(err); code != "" {
		return code
	}
	return "UNCLASSIFIED"
}

// No-op exporter for when neither console nor OTLP output is configured
type noOpSpanExporter struct{}

func (n *noOpSpanExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *noOpSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

// createOTLPExporter creates an OTLP HTTP trace exporter
func (om *ObservabilityManager) createOTLPExporter() (trace.SpanExporter, error) {
	otlpConfig := om.fullConfig.Observability.OTLP

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return exporter, nil
}

// createOTLPMetricsReader creates an OTLP HTTP metrics reader
func (om *ObservabilityManager) createOTLPMetricsReader() (sdkmetric.Reader, error) {
	otlpConfig := om.fullConfig.Observability.OTLP

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	interval := om.getMetricsCollectionInterval()
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil
}

// getServiceInstanceID returns the service instance ID from config or a default
func (om *ObservabilityManager) getServiceInstanceID() string {
	if om.fullConfig != nil && om.fullConfig.Observability.ServiceInstance != "" {
		return om.fullConfig.Observability.ServiceInstance
	}
	return "jobscout-1"
}

// getMetricsCollectionInterval returns the configured metrics collection interval
func (om *ObservabilityManager) getMetricsCollectionInterval() time.Duration {
	if om.fullConfig != nil && om.fullConfig.Observability.Metrics.CollectionInterval > 0 {
		return om.fullConfig.Observability.Metrics.CollectionInterval
	}
	return 15 * time.Second
}
