package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"jobscout/internal/errors"

	"github.com/hashicorp/vault/api"
	"github.com/spf13/cast"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	// PollInterval > 0 makes the server re-read Secrets and rebuild providers when they rotate
	PollInterval time.Duration `mapstructure:"pollInterval"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets defines where to find provider credentials in Vault
type VaultSecrets struct {
	Perplexity string `mapstructure:"perplexity"` // KVv2 path holding "api_key"
	Adzuna     string `mapstructure:"adzuna"`     // KVv2 path holding "app_id" and "app_key"
}

// logicalReader is the part of the Vault logical backend used here
type logicalReader interface {
	Read(path string) (*api.Secret, error)
}

// VaultClient reads KVv2 secrets
type VaultClient struct {
	logical logicalReader
	logger  *errors.Logger
}

// NewVaultClient connects to Vault, returning nil when Vault is disabled
func NewVaultClient(config VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !config.Enabled {
		return nil, nil
	}

	apiConfig := api.DefaultConfig()
	if config.Address != "" {
		apiConfig.Address = config.Address
	}
	client, err := api.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	token, err := resolveVaultToken(config)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vault: %w", err)
	}
	if logger != nil {
		logger.Info("Connected to Vault",
			"address", apiConfig.Address,
			"version", health.Version,
			"sealed", health.Sealed)
	}

	return &VaultClient{logical: client.Logical(), logger: logger}, nil
}

// resolveVaultToken prefers the inline token over the token file
func resolveVaultToken(config VaultConfig) (string, error) {
	token := config.Token
	if token == "" && config.TokenFile != "" {
		raw, err := os.ReadFile(config.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}
	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// VaultSecret represents a secret read from Vault's KVv2 engine.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// GetSecretV2 retrieves a secret from a Vault KVv2 store.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	secret, err := vc.logical.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}

	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}
	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}
	version, err := parseVersionValue(metadata["version"], path)
	if err != nil {
		return nil, err
	}

	return &VaultSecret{Data: data, Version: version}, nil
}

// parseVersionValue accepts the numeric and string encodings Vault uses for versions
func parseVersionValue(raw any, path string) (int64, error) {
	if raw == nil {
		return 0, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	}
	switch raw.(type) {
	case int, int64, float64, string:
		version, err := cast.ToInt64E(raw)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, raw)
	}
}

// GetStringSecret retrieves a string value from a Vault secret
func (vc *VaultClient) GetStringSecret(path, key string) (string, error) {
	secret, err := vc.GetSecretV2(path)
	if err != nil {
		return "", err
	}
	value, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string in secret %s", key, path)
	}

	if vc.logger != nil {
		vc.logger.Debug("String secret retrieved from Vault", "path", path, "key", key, "masked_value", maskSecret(str))
	}
	return str, nil
}

func maskSecret(value string) string {
	switch {
	case len(value) > 8:
		return value[:4] + "****" + value[len(value)-4:]
	case value != "":
		return "****"
	}
	return ""
}

// ApplyVaultSecrets loads provider credentials from Vault and applies them to the config
func ApplyVaultSecrets(config *Config, logger *errors.Logger) error {
	if !config.Vault.Enabled {
		if logger != nil {
			logger.Debug("Vault integration disabled, skipping secret loading")
		}
		return nil
	}

	if logger != nil {
		logger.Info("Loading secrets from Vault",
			"perplexity_path", config.Vault.Secrets.Perplexity,
			"adzuna_path", config.Vault.Secrets.Adzuna)
	}

	client, err := NewVaultClient(config.Vault, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}
	if client == nil {
		return nil
	}

	return applyProviderSecrets(client, config, logger)
}

// RefreshProviderCredentials re-reads provider credentials from Vault and
// returns providers with them applied. providers itself is not modified.
func (vc *VaultClient) RefreshProviderCredentials(vault VaultConfig, providers ProvidersConfig) (ProvidersConfig, error) {
	tmp := &Config{Vault: vault, Providers: providers}
	if err := loadPerplexityKeyFromVault(vc, tmp, vc.logger); err != nil {
		return providers, err
	}
	if err := loadAdzunaCredentialsFromVault(vc, tmp, vc.logger); err != nil {
		return providers, err
	}
	return tmp.Providers, nil
}

// SecretPaths lists the configured credential paths.
func (v VaultConfig) SecretPaths() []string {
	var paths []string
	for _, path := range []string{v.Secrets.Perplexity, v.Secrets.Adzuna} {
		if path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}

// secretReader is the subset of VaultClient used to resolve provider credentials
type secretReader interface {
	GetStringSecret(path, key string) (string, error)
}

func applyProviderSecrets(client secretReader, config *Config, logger *errors.Logger) error {
	if err := loadPerplexityKeyFromVault(client, config, logger); err != nil {
		return err
	}
	if err := loadAdzunaCredentialsFromVault(client, config, logger); err != nil {
		return err
	}

	config.EnableCredentialedSources()

	if logger != nil {
		logger.Info("Successfully completed applying secrets from Vault")
	}
	return nil
}

// loadPerplexityKeyFromVault loads the Perplexity API key from Vault
func loadPerplexityKeyFromVault(client secretReader, config *Config, logger *errors.Logger) error {
	path := config.Vault.Secrets.Perplexity
	if path == "" {
		return nil
	}

	apiKey, err := client.GetStringSecret(path, "api_key")
	if err != nil {
		if logger != nil {
			logger.LogError(err, "Failed to load Perplexity API key from Vault", "path", path)
		}
		return fmt.Errorf("failed to load Perplexity API key from vault: %w", err)
	}

	if apiKey == "" {
		if logger != nil {
			logger.Warn("Empty Perplexity API key found in Vault", "path", path)
		}
		return nil
	}

	config.Providers.Perplexity.APIKey = apiKey
	if logger != nil {
		logger.Info("Perplexity API key loaded from Vault")
	}
	return nil
}

// loadAdzunaCredentialsFromVault loads the Adzuna app id and key from Vault
func loadAdzunaCredentialsFromVault(client secretReader, config *Config, logger *errors.Logger) error {
	path := config.Vault.Secrets.Adzuna
	if path == "" {
		return nil
	}

	appID, err := client.GetStringSecret(path, "app_id")
	if err != nil {
		return fmt.Errorf("failed to load Adzuna app id from vault: %w", err)
	}
	appKey, err := client.GetStringSecret(path, "app_key")
	if err != nil {
		return fmt.Errorf("failed to load Adzuna app key from vault: %w", err)
	}

	if appID != "" {
		config.Providers.Adzuna.AppID = appID
	}
	if appKey != "" {
		config.Providers.Adzuna.AppKey = appKey
	}
	if logger != nil {
		logger.Info("Adzuna credentials loaded from Vault", "has_app_id", appID != "", "has_app_key", appKey != "")
	}
	return nil
}
