package provider

import (
	"context"
	"sync"
	"time"

	"jobscout/internal/errors"
	"jobscout/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// remoteCaller bundles the resilience layers every network-backed provider uses:
// an outbound rate limiter, a circuit breaker, retries and a tracing span.
type remoteCaller struct {
	source    string
	breaker   *CircuitBreaker
	logger    *errors.Logger
	limiter   outboundLimiter
	baseDelay time.Duration
}

func newRemoteCaller(source string, deps Deps) *remoteCaller {
	return &remoteCaller{
		source:  source,
		breaker: NewCircuitBreaker(source, deps.CircuitBreaker, deps.Logger),
		logger:  deps.Logger,
	}
}

// call runs fetch under the limiter, breaker and retry policy and wraps the
// body into a RawResult. Failures come back as PROVIDER_UNAVAILABLE unless
// already classified.
func (c *remoteCaller) call(ctx context.Context, operation string, params Params, fetch func(context.Context) ([]byte, error)) (types.RawResult, error) {
	ctx, span := otel.Tracer("jobscout.provider").Start(ctx, c.source+"."+operation)
	defer span.End()

	maxRetries := params.MaxRetries()
	timeout := params.Timeout()
	span.SetAttributes(
		attribute.String("provider.source", c.source),
		attribute.Int("provider.max_retries", maxRetries),
		attribute.Float64("provider.timeout_seconds", timeout.Seconds()),
	)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.limiter.wait(ctx, params.Int(ParamRateLimitPerMinute, 0)); err != nil {
		span.RecordError(err)
		return types.RawResult{}, errors.ProviderUnavailable(c.source, err)
	}

	policy := retryPolicy{maxRetries: maxRetries, baseDelay: c.baseDelay, logger: c.logger}
	result, err := c.breaker.Execute(c.source, func() (types.RawResult, error) {
		body, err := policy.run(ctx, operation, fetch)
		if err != nil {
			return types.RawResult{}, err
		}
		return types.RawResult{Source: c.source, Body: body, ReceivedAt: time.Now().UTC()}, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		if code := errors.CodeOf(err); code == errors.ErrCodeProviderUnavailable || code == errors.ErrCodeInvalidQuery {
			return types.RawResult{}, err
		}
		if c.logger != nil {
			c.logger.LogError(err, "Provider call failed", "source", c.source, "operation", operation)
		}
		return types.RawResult{}, errors.ProviderUnavailable(c.source, err)
	}

	span.SetAttributes(attribute.Bool("success", true), attribute.Int("response.bytes", len(result.Body)))
	return result, nil
}

func (c *remoteCaller) IsHealthy() bool {
	return c.breaker.IsHealthy()
}

func (c *remoteCaller) BreakerStats() map[string]any {
	return c.breaker.GetStats()
}

// outboundLimiter throttles requests to a backend; the budget comes from
// per-call params so it follows registry config updates.
type outboundLimiter struct {
	mu        sync.Mutex
	perMinute int
	limiter   *rate.Limiter
}

func (l *outboundLimiter) wait(ctx context.Context, perMinute int) error {
	if perMinute <= 0 {
		return nil
	}

	l.mu.Lock()
	if l.limiter == nil || l.perMinute != perMinute {
		limit := rate.Limit(float64(perMinute) / 60.0)
		if l.limiter == nil {
			l.limiter = rate.NewLimiter(limit, 1)
		} else {
			l.limiter.SetLimit(limit)
		}
		l.perMinute = perMinute
	}
	limiter := l.limiter
	l.mu.Unlock()

	return limiter.Wait(ctx)
}
