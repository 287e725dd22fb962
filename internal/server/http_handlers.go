package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"

	"jobscout/internal/errors"
	"jobscout/internal/provider"
)

// healthHandler reports liveness, the enabled source count and breaker states
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	total, enabled := s.Registry.Len()

	response := map[string]any{
		"status":  "healthy",
		"service": "jobscout",
		"version": s.Version,
		"sources": map[string]any{
			"registered": total,
			"enabled":    enabled,
		},
	}

	breakers := make(map[string]any)
	overallHealthy := enabled > 0
	for _, rec := range s.Registry.GetAll(true) {
		reporter, ok := rec.Provider.(provider.HealthReporter)
		if !ok {
			continue
		}
		stats := reporter.BreakerStats()
		stats["healthy"] = reporter.IsHealthy()
		breakers[rec.Name] = stats
		if !reporter.IsHealthy() {
			overallHealthy = false
		}
	}
	response["circuit_breakers"] = breakers

	status := http.StatusOK
	if !overallHealthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	total, enabled := s.Registry.Len()

	response := map[string]any{
		"service": "jobscout",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
		"registry": map[string]any{
			"registered": total,
			"enabled":    enabled,
		},
	}
	if s.AppConfig != nil {
		response["registry"].(map[string]any)["default_strategy"] = s.AppConfig.Registry.DefaultStrategy
		response["registry"].(map[string]any)["snapshot_path"] = s.AppConfig.Registry.SnapshotPath
	}

	if s.CredentialWatcher != nil {
		response["credential_watcher"] = s.CredentialWatcher.Status()
	}
	if s.SnapshotWatcher != nil {
		response["snapshot_watcher"] = map[string]any{"running": s.SnapshotWatcher.IsRunning()}
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_header":        s.RateLimit.ByHeader,
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return invalidRequest("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return invalidRequest(fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit))
		}
		return errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to read request body", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "failed to parse JSON", err)
	}
	return nil
}

// statusFor maps an error code to its HTTP status
func statusFor(code string) int {
	switch code {
	case errors.ErrCodeUnknownProvider, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidValue, errors.ErrCodeInvalidQuery, errors.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case errors.ErrCodeNoProvidersAvailable:
		return http.StatusServiceUnavailable
	case errors.ErrCodeProviderUnavailable, errors.ErrCodeParseError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the error body for err, logging server-side failures
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := statusFor(code)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	if status >= http.StatusInternalServerError && s.Logger != nil {
		s.Logger.LogError(err, "Request failed", "status", status)
	}
	writeErrorResponse(w, code, err.Error(), status)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, kind, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Status:  "error",
		Error:   kind,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
