package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParamsAccessors(t *testing.T) {
	p := Params{
		"timeout_seconds": "2.5",
		"max_retries":     float64(4),
		"max_results":     int64(10),
		"model":           "sonar",
		"remote":          "true",
		"bad_int":         "many",
	}

	assert.Equal(t, 2500*time.Millisecond, p.Timeout())
	assert.Equal(t, 4, p.MaxRetries())
	assert.Equal(t, 10, p.MaxResults())
	assert.Equal(t, "sonar", p.String(ParamModel, "sonar-pro"))
	assert.True(t, p.Bool("remote", false))
	assert.Equal(t, 7, p.Int("bad_int", 7))
	assert.Equal(t, "us", p.String(ParamCountry, "us"))
}

func TestParamsDefaults(t *testing.T) {
	tests := []struct {
		name       string
		params     Params
		timeout    time.Duration
		maxRetries int
		maxResults int
	}{
		{"empty", Params{}, DefaultTimeout, DefaultMaxRetries, 0},
		{"nil map", nil, DefaultTimeout, DefaultMaxRetries, 0},
		{"negative values", Params{"timeout_seconds": -1, "max_retries": -3, "max_results": -2}, DefaultTimeout, DefaultMaxRetries, 0},
		{"zero retries kept", Params{"max_retries": 0}, DefaultTimeout, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.Timeout(); got != tt.timeout {
				t.Errorf("Expected timeout %v, got %v", tt.timeout, got)
			}
			if got := tt.params.MaxRetries(); got != tt.maxRetries {
				t.Errorf("Expected max retries %d, got %d", tt.maxRetries, got)
			}
			if got := tt.params.MaxResults(); got != tt.maxResults {
				t.Errorf("Expected max results %d, got %d", tt.maxResults, got)
			}
		})
	}
}

func TestMergeParams(t *testing.T) {
	base := map[string]any{"model": "sonar-pro", "max_results": 5}
	merged := MergeParams(base, map[string]any{"model": "sonar"})

	assert.Equal(t, "sonar", merged["model"])
	assert.Equal(t, 5, merged["max_results"])
	assert.Equal(t, "sonar-pro", base["model"], "base must not be mutated")
}
