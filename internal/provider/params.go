package provider

import (
	"maps"
	"time"

	"github.com/spf13/cast"
)

// Well-known parameter keys
const (
	ParamTimeoutSeconds     = "timeout_seconds"
	ParamMaxRetries         = "max_retries"
	ParamMaxResults         = "max_results"
	ParamModel              = "model"
	ParamCountry            = "country"
	ParamResultsPerPage     = "results_per_page"
	ParamRateLimitPerMinute = "rate_limit_per_minute"
	ParamSeed               = "seed"
)

// Defaults for per-call settings
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 2
)

// Params is the per-call configuration handed to SearchJobs. Values may come
// from JSON, YAML or Go code, so accessors coerce loosely.
type Params map[string]any

// MergeParams shallow-merges overrides onto base; overrides win.
func MergeParams(base, overrides map[string]any) Params {
	merged := make(Params, len(base)+len(overrides))
	maps.Copy(merged, base)
	maps.Copy(merged, overrides)
	return merged
}

func (p Params) String(key, def string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil || s == "" {
		return def
	}
	return s
}

func (p Params) Int(key string, def int) int {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

func (p Params) Float(key string, def float64) float64 {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

func (p Params) Bool(key string, def bool) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// Timeout reads timeout_seconds; non-positive values fall back to DefaultTimeout.
func (p Params) Timeout() time.Duration {
	secs := p.Float(ParamTimeoutSeconds, 0)
	if secs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(secs * float64(time.Second))
}

// MaxRetries reads max_retries; negative values fall back to DefaultMaxRetries.
func (p Params) MaxRetries() int {
	n := p.Int(ParamMaxRetries, DefaultMaxRetries)
	if n < 0 {
		return DefaultMaxRetries
	}
	return n
}

// MaxResults reads max_results; 0 means no cap.
func (p Params) MaxResults() int {
	n := p.Int(ParamMaxResults, 0)
	if n < 0 {
		return 0
	}
	return n
}
