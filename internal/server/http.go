package server

import (
	"time"

	"jobscout/internal/config"
	"jobscout/internal/errors"
	"jobscout/internal/registry"
	"jobscout/internal/search"
)

// SearchRequest is the body of POST /search
type SearchRequest struct {
	Keywords string         `json:"keywords"`
	Location string         `json:"location,omitempty"`
	Filters  SearchFilters  `json:"filters"`
	Strategy string         `json:"strategy,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

// SearchFilters mirrors types.Filters on the wire
type SearchFilters struct {
	Recency         string   `json:"recency,omitempty"`
	ExperienceLevel string   `json:"experience_level,omitempty"`
	Remote          bool     `json:"remote,omitempty"`
	Skills          []string `json:"skills,omitempty"`
}

// PriorityRequest is the body of POST /sources/{name}/priority
type PriorityRequest struct {
	Priority *int `json:"priority"`
}

// WeightRequest is the body of POST /sources/{name}/weight
type WeightRequest struct {
	Weight *int `json:"weight"`
}

// SnapshotRequest is the optional body of the save and load endpoints
type SnapshotRequest struct {
	Path string `json:"path,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// StatusResponse acknowledges a registry mutation
type StatusResponse struct {
	Status  string `json:"status"`
	Name    string `json:"name,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	Registry *registry.Registry
	Search   *search.Service

	// Background watchers, set by Start when configured
	SnapshotWatcher   *registry.Watcher
	CredentialWatcher *CredentialWatcher

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	// Logger
	Logger *errors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, reg *registry.Registry, svc *search.Service, logger *errors.Logger) *Server {
	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.Window,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		Registry:       reg,
		Search:         svc,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Logger:         logger,
	}
}
