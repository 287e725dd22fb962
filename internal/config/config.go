package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
// Credential Precedence Order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (JOBSCOUT_PROVIDERS_PERPLEXITY_APIKEY, etc.)
// 4. Default values - Lowest priority
type Config struct {
	Registry      RegistryConfig          `mapstructure:"registry"`
	Sources       map[string]SourceConfig `mapstructure:"sources"`
	Providers     ProvidersConfig         `mapstructure:"providers"`
	Server        ServerConfig            `mapstructure:"server"`
	App           AppConfig               `mapstructure:"app"`
	Vault         VaultConfig             `mapstructure:"vault"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

// RegistryConfig controls registry bootstrap and the JSON snapshot
type RegistryConfig struct {
	SnapshotPath    string      `mapstructure:"snapshotPath"`
	LoadOnStart     bool        `mapstructure:"loadOnStart"`
	SaveOnShutdown  bool        `mapstructure:"saveOnShutdown"`
	DefaultStrategy string      `mapstructure:"defaultStrategy"`
	Watch           WatchConfig `mapstructure:"watch"`
}

// WatchConfig holds configuration for snapshot file watching
type WatchConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	DebounceDelay time.Duration `mapstructure:"debounceDelay"`
}

// SourceConfig describes one provider registration
type SourceConfig struct {
	Module   string         `mapstructure:"module"`
	Class    string         `mapstructure:"class"`
	Enabled  bool           `mapstructure:"enabled"`
	Priority int            `mapstructure:"priority"`
	Weight   int            `mapstructure:"weight"`
	Config   map[string]any `mapstructure:"config"`
}

// ProvidersConfig holds backend credentials and shared resilience settings
type ProvidersConfig struct {
	Perplexity     PerplexityConfig     `mapstructure:"perplexity"`
	Adzuna         AdzunaConfig         `mapstructure:"adzuna"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// PerplexityConfig holds Perplexity API settings
type PerplexityConfig struct {
	APIKey  string `mapstructure:"apiKey"`
	BaseURL string `mapstructure:"baseURL"`
}

// AdzunaConfig holds Adzuna API settings
type AdzunaConfig struct {
	AppID   string `mapstructure:"appID"`
	AppKey  string `mapstructure:"appKey"`
	BaseURL string `mapstructure:"baseURL"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string          `mapstructure:"host"`
	Port         string          `mapstructure:"port"`
	ReadTimeout  time.Duration   `mapstructure:"readTimeout"`
	WriteTimeout time.Duration   `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration   `mapstructure:"idleTimeout"`
	RateLimit    RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int           `mapstructure:"requestsPerMin"` // Requests allowed per minute
	BurstCapacity  int           `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
	ByIP           bool          `mapstructure:"byIP"`           // Key limiters by client IP
	ByHeader       string        `mapstructure:"byHeader"`       // Key limiters by this request header when present
	Window         time.Duration `mapstructure:"window"`         // Idle time after which a limiter is dropped
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxRequestSize   int64    `mapstructure:"maxRequestSize"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool                `mapstructure:"enabled"`
	ServiceName     string              `mapstructure:"serviceName"`
	ServiceVersion  string              `mapstructure:"serviceVersion"`
	ServiceInstance string              `mapstructure:"serviceInstance"`
	ConsoleOutput   bool                `mapstructure:"consoleOutput"`
	SampleRate      float64             `mapstructure:"sampleRate"`
	Tracing         TracingConfig       `mapstructure:"tracing"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics   CustomMetricsConfig `mapstructure:"customMetrics"`
	Console         ConsoleConfig       `mapstructure:"console"`
	Prometheus      PrometheusConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig          `mapstructure:"otlp"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig holds console output configuration
type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// CustomMetricsConfig holds fine-grained custom metrics configuration
type CustomMetricsConfig struct {
	ProviderCalls  ProviderCallsMetricsConfig  `mapstructure:"providerCalls"`
	Searches       SearchMetricsConfig         `mapstructure:"searches"`
	Infrastructure InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

// ProviderCallsMetricsConfig holds per-provider call metrics configuration
type ProviderCallsMetricsConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	TrackDuration bool `mapstructure:"trackDuration"`
	TrackJobCount bool `mapstructure:"trackJobCount"`
}

// SearchMetricsConfig holds search-level metrics configuration
type SearchMetricsConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	TrackStrategies   bool `mapstructure:"trackStrategies"`
	TrackRegistryOps  bool `mapstructure:"trackRegistryOps"`
	TrackSuccessRates bool `mapstructure:"trackSuccessRates"`
}

// InfrastructureMetricsConfig holds infrastructure metrics configuration
type InfrastructureMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackRateLimits bool `mapstructure:"trackRateLimits"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// LoadConfig loads configuration from environment variables and a config file
func LoadConfig() (*Config, error) {
	return load(viper.New(), true)
}

// load reads configuration into v; searchFiles is false when v is already populated.
func load(v *viper.Viper, searchFiles bool) (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	setDefaults(v)

	v.SetEnvPrefix("JOBSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFileUsed := ""
	if searchFiles {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/jobscout/")
		v.AddConfigPath("$HOME/.jobscout")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Println("[CONFIG] No config file found, using defaults and environment variables")
		} else {
			configFileUsed = v.ConfigFileUsed()
			log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyFallbacks()
	config.logConfigurationSources(configFileUsed)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Registry
	v.SetDefault("registry.snapshotPath", "sources.json")
	v.SetDefault("registry.loadOnStart", false)
	v.SetDefault("registry.saveOnShutdown", false)
	v.SetDefault("registry.defaultStrategy", "primary")
	v.SetDefault("registry.watch.enabled", false)
	v.SetDefault("registry.watch.debounceDelay", time.Second)

	// Default sources. perplexity and adzuna turn on once credentials are present.
	v.SetDefault("sources.perplexity.module", "provider/perplexity")
	v.SetDefault("sources.perplexity.class", "PerplexityProvider")
	v.SetDefault("sources.perplexity.enabled", false)
	v.SetDefault("sources.perplexity.priority", 10)
	v.SetDefault("sources.perplexity.weight", 10)
	v.SetDefault("sources.perplexity.config", map[string]any{"model": "sonar-pro", "timeout_seconds": 30, "max_retries": 2})

	v.SetDefault("sources.adzuna.module", "provider/adzuna")
	v.SetDefault("sources.adzuna.class", "AdzunaProvider")
	v.SetDefault("sources.adzuna.enabled", false)
	v.SetDefault("sources.adzuna.priority", 5)
	v.SetDefault("sources.adzuna.weight", 5)
	v.SetDefault("sources.adzuna.config", map[string]any{"country": "us", "results_per_page": 20})

	v.SetDefault("sources.sample.module", "provider/sample")
	v.SetDefault("sources.sample.class", "SampleProvider")
	v.SetDefault("sources.sample.enabled", true)
	v.SetDefault("sources.sample.priority", 1)
	v.SetDefault("sources.sample.weight", 1)
	v.SetDefault("sources.sample.config", map[string]any{})

	// Provider credentials
	v.SetDefault("providers.perplexity.apiKey", "")
	v.SetDefault("providers.perplexity.baseURL", "https://api.perplexity.ai")
	v.SetDefault("providers.adzuna.appID", "")
	v.SetDefault("providers.adzuna.appKey", "")
	v.SetDefault("providers.adzuna.baseURL", "https://api.adzuna.com")

	v.SetDefault("providers.circuitBreaker.enabled", true)
	v.SetDefault("providers.circuitBreaker.maxRequests", 3)
	v.SetDefault("providers.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("providers.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("providers.circuitBreaker.minRequests", 3)
	v.SetDefault("providers.circuitBreaker.failureThreshold", 0.6)

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 90*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byHeader", "")
	v.SetDefault("server.rateLimit.window", time.Minute)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxRequestSize", 1024*1024) // 1MB

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.pollInterval", 0)
	v.SetDefault("vault.secrets.perplexity", "")
	v.SetDefault("vault.secrets.adzuna", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "jobscout")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)

	v.SetDefault("observability.customMetrics.providerCalls.enabled", true)
	v.SetDefault("observability.customMetrics.providerCalls.trackDuration", true)
	v.SetDefault("observability.customMetrics.providerCalls.trackJobCount", true)
	v.SetDefault("observability.customMetrics.searches.enabled", true)
	v.SetDefault("observability.customMetrics.searches.trackStrategies", true)
	v.SetDefault("observability.customMetrics.searches.trackRegistryOps", true)
	v.SetDefault("observability.customMetrics.searches.trackSuccessRates", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)

	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	switch c.Registry.DefaultStrategy {
	case "primary", "load_balance", "all":
	default:
		return fmt.Errorf("invalid default strategy: %s", c.Registry.DefaultStrategy)
	}

	for name, src := range c.Sources {
		if src.Module == "" || src.Class == "" {
			return fmt.Errorf("source %s: module and class are required", name)
		}
		if src.Priority < 0 {
			return fmt.Errorf("source %s: priority must be non-negative", name)
		}
		if src.Weight < 0 {
			return fmt.Errorf("source %s: weight must be non-negative", name)
		}
	}

	if c.Providers.CircuitBreaker.FailureThreshold < 0 || c.Providers.CircuitBreaker.FailureThreshold > 1 {
		return fmt.Errorf("circuit breaker failure threshold must be between 0 and 1")
	}

	return nil
}
