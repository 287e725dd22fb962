package provider

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"

	"jobscout/internal/errors"

	"github.com/openai/openai-go"
)

const maxBackoff = 30 * time.Second

// retryPolicy retries transient backend failures with exponential backoff
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	logger     *errors.Logger
}

// backoffDelay doubles per attempt, adds up to 10% jitter and caps at 30s.
func backoffDelay(attempt int, base time.Duration) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt-1))) * base
	if jitterMax := int64(float64(delay) * 0.1); jitterMax > 0 {
		if jitter, err := rand.Int(rand.Reader, big.NewInt(jitterMax)); err == nil {
			delay += time.Duration(jitter.Int64())
		}
	}
	return min(delay, maxBackoff)
}

// run calls fn until it succeeds, fails permanently, or retries run out.
func (p retryPolicy) run(ctx context.Context, operation string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	base := p.baseDelay
	if base <= 0 {
		base = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			if p.logger != nil {
				p.logger.Warn("Retrying provider call",
					"operation", operation,
					"attempt", attempt,
					"max_retries", p.maxRetries,
					"error", lastErr.Error())
			}

			select {
			case <-time.After(backoffDelay(attempt, base)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := fn(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryableError(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("operation '%s' failed after %d retries: %w", operation, p.maxRetries, lastErr)
}

// statusError is returned by plain HTTP backends for non-2xx responses
type statusError struct {
	StatusCode int
	Snippet    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Snippet)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isRetryableError reports whether err is worth another attempt
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	var apiErr *openai.Error
	if stderrors.As(err, &apiErr) {
		return retryableStatus(apiErr.StatusCode)
	}

	var statusErr *statusError
	if stderrors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}

	return false
}
