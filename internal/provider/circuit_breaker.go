package provider

import (
	"fmt"

	"jobscout/internal/config"
	"jobscout/internal/errors"
	"jobscout/internal/types"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards one provider's backend calls
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker[types.RawResult]
}

// NewCircuitBreaker returns nil when the breaker is disabled; a nil breaker
// executes calls directly.
func NewCircuitBreaker(source string, cfg config.CircuitBreakerConfig, logger *errors.Logger) *CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("provider-%s", source),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// Bad queries say nothing about backend health.
			return err == nil || errors.HasCode(err, errors.ErrCodeInvalidQuery)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.Info("Circuit breaker state changed",
				"name", name,
				"source", source,
				"from", from.String(),
				"to", to.String(),
				"failure_threshold", cfg.FailureThreshold)
		},
	}

	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker[types.RawResult](settings)}
}

// Execute runs fn through the breaker. An open breaker is reported as
// PROVIDER_UNAVAILABLE.
func (b *CircuitBreaker) Execute(source string, fn func() (types.RawResult, error)) (types.RawResult, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	result, err := b.cb.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return types.RawResult{}, errors.ProviderUnavailable(source, err)
	}
	return result, err
}

// GetStats returns circuit breaker statistics
func (b *CircuitBreaker) GetStats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{"enabled": false}
	}

	counts := b.cb.Counts()
	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"enabled": true,
		"counts": map[string]uint32{
			"requests":              counts.Requests,
			"total_successes":       counts.TotalSuccesses,
			"total_failures":        counts.TotalFailures,
			"consecutive_successes": counts.ConsecutiveSuccesses,
			"consecutive_failures":  counts.ConsecutiveFailures,
		},
	}
}

// IsHealthy returns true if the circuit breaker is in closed state
func (b *CircuitBreaker) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}
