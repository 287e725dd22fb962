package config

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

// applyFallbacks applies defaults that depend on other loaded values
func (c *Config) applyFallbacks() {
	c.normalizeSourceNames()
	c.EnableCredentialedSources()
	c.applyObservabilityDefaults()
}

// normalizeSourceNames lower-cases source names so lookups are case-insensitive
func (c *Config) normalizeSourceNames() {
	if len(c.Sources) == 0 {
		return
	}
	normalized := make(map[string]SourceConfig, len(c.Sources))
	for name, src := range c.Sources {
		if src.Config == nil {
			src.Config = map[string]any{}
		}
		normalized[strings.ToLower(strings.TrimSpace(name))] = src
	}
	c.Sources = normalized
}

// EnableCredentialedSources switches on remote sources whose credentials are configured.
// It is called again after Vault secrets are applied.
func (c *Config) EnableCredentialedSources() {
	if c.Providers.Perplexity.APIKey != "" {
		c.enableSource("perplexity")
	}
	if c.Providers.Adzuna.AppID != "" && c.Providers.Adzuna.AppKey != "" {
		c.enableSource("adzuna")
	}
}

func (c *Config) enableSource(name string) {
	src, ok := c.Sources[name]
	if !ok {
		return
	}
	src.Enabled = true
	c.Sources[name] = src
}

// applyObservabilityDefaults applies default observability configuration values
func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

// SourceNames returns configured source names sorted by priority desc, then name.
func (c *Config) SourceNames() []string {
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := c.Sources[names[i]].Priority, c.Sources[names[j]].Priority
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})
	return names
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		"JOBSCOUT_PROVIDERS_PERPLEXITY_APIKEY",
		"JOBSCOUT_PROVIDERS_ADZUNA_APPID",
		"JOBSCOUT_PROVIDERS_ADZUNA_APPKEY",
		"JOBSCOUT_REGISTRY_SNAPSHOTPATH",
		"JOBSCOUT_SERVER_PORT",
		"JOBSCOUT_SERVER_HOST",
		"JOBSCOUT_APP_LOGLEVEL",
		"JOBSCOUT_VAULT_ENABLED",
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			if isSensitiveEnv(envVar) {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] Perplexity API Key: %s", maskPresence(c.Providers.Perplexity.APIKey))
	log.Printf("[CONFIG] Adzuna App Key: %s", maskPresence(c.Providers.Adzuna.AppKey))
	log.Printf("[CONFIG] Snapshot Path: %s", c.Registry.SnapshotPath)
	log.Printf("[CONFIG] Default Strategy: %s", c.Registry.DefaultStrategy)
	log.Printf("[CONFIG] Server: %s:%s", c.Server.Host, c.Server.Port)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)

	log.Println("[CONFIG] === Sources ===")
	for _, name := range c.SourceNames() {
		src := c.Sources[name]
		log.Printf("[CONFIG] %s - %s.%s enabled=%t priority=%d weight=%d",
			name, src.Module, src.Class, src.Enabled, src.Priority, src.Weight)
	}

	log.Println("[CONFIG] =====================================")
}

func isSensitiveEnv(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "key") || strings.Contains(lower, "appid") || strings.Contains(lower, "token")
}

func maskPresence(value string) string {
	if value != "" {
		return "***CONFIGURED***"
	}
	return "***NOT SET***"
}
