package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jobscout/internal/config"
	"jobscout/internal/errors"
	"jobscout/internal/observability"
	"jobscout/internal/provider"
	"jobscout/internal/registry"
	"jobscout/internal/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *errors.Logger {
	return errors.NewLoggerWithHandler(slog.NewTextHandler(io.Discard, nil))
}

func testAppConfig(snapshot string) *config.Config {
	cfg := &config.Config{
		Sources: map[string]config.SourceConfig{
			"sample":     {Module: "provider/sample", Class: "SampleProvider", Enabled: true, Priority: 1, Weight: 1, Config: map[string]any{"seed": 7}},
			"perplexity": {Module: "provider/perplexity", Class: "PerplexityProvider", Enabled: false, Priority: 10, Weight: 10, Config: map[string]any{"model": "sonar-pro"}},
		},
	}
	cfg.Registry.SnapshotPath = snapshot
	cfg.Registry.DefaultStrategy = "primary"
	return cfg
}

func newTestServer(t *testing.T, appCfg *config.Config, cfg ServerConfig) (*Server, http.Handler) {
	t.Helper()
	logger := testLogger()

	reg, err := registry.Bootstrap(appCfg, provider.Deps{Logger: logger}, registry.WithLogger(logger))
	require.NoError(t, err)

	om, err := observability.NewObservabilityManager(observability.ObservabilityConfig{Enabled: false}, nil, nil)
	require.NoError(t, err)

	srv := NewServer(appCfg, cfg, reg, search.NewService(reg, search.WithLogger(logger)), logger)
	t.Cleanup(func() {
		if srv.RateLimiter != nil {
			srv.RateLimiter.Close()
		}
	})
	return srv, srv.Handler(om)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func TestSearchEndpoint(t *testing.T) {
	_, h := newTestServer(t, testAppConfig(""), ServerConfig{})

	t.Run("primary search", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodPost, "/search", `{"keywords":"go developer","location":"Remote"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, "sample", body["provider_name"])
		assert.Equal(t, "primary", body["strategy"])

		jobs, ok := body["jobs"].([]any)
		require.True(t, ok)
		assert.Equal(t, float64(len(jobs)), body["job_count"])
	})

	t.Run("broadcast search", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodPost, "/search", `{"keywords":"go","strategy":"all"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "all", body["provider_name"])
		statuses, ok := body["per_provider_status"].([]any)
		require.True(t, ok)
		require.Len(t, statuses, 1)

		status := statuses[0].(map[string]any)
		assert.Equal(t, "sample", status["name"])
		assert.Equal(t, true, status["success"])
		perSource, ok := status["jobs"].([]any)
		require.True(t, ok, "each status lists the jobs that source returned")
		assert.Equal(t, status["job_count"], float64(len(perSource)))
		assert.Len(t, body["jobs"], len(perSource))
	})

	t.Run("missing keywords", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodPost, "/search", `{"keywords":"  "}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errors.ErrCodeInvalidQuery, body["error"])
		assert.Equal(t, "error", body["status"])
	})

	t.Run("unknown strategy", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodPost, "/search", `{"keywords":"go","strategy":"random"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errors.ErrCodeInvalidValue, body["error"])
	})

	t.Run("malformed JSON", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodPost, "/search", `{"keywords":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errors.ErrCodeInvalidRequest, body["error"])
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"keywords":"go"}`))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rec.Code)
		}
	})
}

func TestSearchWithoutEnabledSources(t *testing.T) {
	srv, h := newTestServer(t, testAppConfig(""), ServerConfig{})
	require.NoError(t, srv.Registry.Disable("sample"))

	rec, body := doJSON(t, h, http.MethodPost, "/search", `{"keywords":"go"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, errors.ErrCodeNoProvidersAvailable, body["error"])
}

func TestSourceEndpoints(t *testing.T) {
	srv, h := newTestServer(t, testAppConfig(""), ServerConfig{})

	t.Run("list in priority order", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodGet, "/sources", "")
		require.Equal(t, http.StatusOK, rec.Code)
		sources := body["sources"].([]any)
		require.Len(t, sources, 2)
		assert.Equal(t, "perplexity", sources[0].(map[string]any)["name"])
		assert.Equal(t, "sample", sources[1].(map[string]any)["name"])
	})

	t.Run("show is case-insensitive", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodGet, "/sources/SAMPLE", "")
		require.Equal(t, http.StatusOK, rec.Code)
		source := body["source"].(map[string]any)
		assert.Equal(t, "sample", source["name"])
		assert.Equal(t, true, source["enabled"])
	})

	t.Run("unknown source", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodGet, "/sources/indeed", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, errors.ErrCodeUnknownProvider, body["error"])

		rec, _ = doJSON(t, h, http.MethodPost, "/sources/indeed/enable", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("enable and disable", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodPost, "/sources/perplexity/enable", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "perplexity", body["name"])
		_, enabled := srv.Registry.Len()
		assert.Equal(t, 2, enabled)

		rec, _ = doJSON(t, h, http.MethodPost, "/sources/perplexity/disable", "")
		require.Equal(t, http.StatusOK, rec.Code)
		_, enabled = srv.Registry.Len()
		assert.Equal(t, 1, enabled)
	})

	t.Run("priority", func(t *testing.T) {
		rec, _ := doJSON(t, h, http.MethodPost, "/sources/sample/priority", `{"priority":42}`)
		require.Equal(t, http.StatusOK, rec.Code)
		info, err := srv.Registry.Info("sample")
		require.NoError(t, err)
		assert.Equal(t, 42, info.Priority)

		rec, body := doJSON(t, h, http.MethodPost, "/sources/sample/priority", `{"priority":-1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errors.ErrCodeInvalidValue, body["error"])

		rec, body = doJSON(t, h, http.MethodPost, "/sources/sample/priority", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errors.ErrCodeInvalidRequest, body["error"])
	})

	t.Run("weight zero is allowed", func(t *testing.T) {
		rec, _ := doJSON(t, h, http.MethodPost, "/sources/sample/weight", `{"weight":0}`)
		require.Equal(t, http.StatusOK, rec.Code)
		info, err := srv.Registry.Info("sample")
		require.NoError(t, err)
		assert.Equal(t, 0, info.Weight)
	})

	t.Run("config merge", func(t *testing.T) {
		rec, _ := doJSON(t, h, http.MethodPost, "/sources/perplexity/config", `{"config":{"max_results":5}}`)
		require.Equal(t, http.StatusOK, rec.Code)
		info, err := srv.Registry.Info("perplexity")
		require.NoError(t, err)
		assert.Equal(t, "sonar-pro", info.Config["model"])
		assert.Equal(t, 5, info.Config["max_results"])

		rec, body := doJSON(t, h, http.MethodPost, "/sources/perplexity/config", `{"config":"nope"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errors.ErrCodeInvalidRequest, body["error"])
	})

	t.Run("delete", func(t *testing.T) {
		rec, _ := doJSON(t, h, http.MethodDelete, "/sources/perplexity", "")
		require.Equal(t, http.StatusOK, rec.Code)

		rec, _ = doJSON(t, h, http.MethodGet, "/sources/perplexity", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSnapshotEndpoints(t *testing.T) {
	dir := t.TempDir()
	configured := filepath.Join(dir, "sources.json")
	srv, h := newTestServer(t, testAppConfig(configured), ServerConfig{})

	t.Run("save to configured path", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodPost, "/sources/config/save", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, configured, body["path"])
		_, err := os.Stat(configured)
		assert.NoError(t, err)
	})

	t.Run("load restores saved state", func(t *testing.T) {
		require.NoError(t, srv.Registry.Deregister("perplexity"))

		rec, _ := doJSON(t, h, http.MethodPost, "/sources/config/load", `{"path":"sources.json"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		total, _ := srv.Registry.Len()
		assert.Equal(t, 2, total)
	})

	t.Run("load missing file", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodPost, "/sources/config/load", `{"path":"missing.json"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, errors.ErrCodeFileNotFound, body["error"])
	})

	t.Run("save to a named file beside the snapshot", func(t *testing.T) {
		rec, body := doJSON(t, h, http.MethodPost, "/sources/config/save", `{"path":"backup/nightly.json"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		want := filepath.Join(dir, "backup", "nightly.json")
		assert.Equal(t, want, body["path"])
		_, err := os.Stat(want)
		assert.NoError(t, err)
	})

	t.Run("paths outside the snapshot directory are rejected", func(t *testing.T) {
		outside := filepath.Join(t.TempDir(), "victim.json")
		for _, path := range []string{outside, "../escape.json", "backup/../../escape.json", "notes.txt", "./"} {
			rec, body := doJSON(t, h, http.MethodPost, "/sources/config/save", `{"path":"`+path+`"}`)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400 for %q, got %d", path, rec.Code)
			}
			assert.Equal(t, errors.ErrCodeInvalidRequest, body["error"])

			rec, _ = doJSON(t, h, http.MethodPost, "/sources/config/load", `{"path":"`+path+`"}`)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		}
		_, err := os.Stat(outside)
		assert.True(t, os.IsNotExist(err), "nothing is written outside the snapshot directory")
		_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape.json"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("named file without a configured snapshot", func(t *testing.T) {
		_, bare := newTestServer(t, testAppConfig(""), ServerConfig{})
		rec, body := doJSON(t, bare, http.MethodPost, "/sources/config/save", `{"path":"sources.json"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errors.ErrCodeInvalidRequest, body["error"])
	})

	t.Run("no path anywhere", func(t *testing.T) {
		_, bare := newTestServer(t, testAppConfig(""), ServerConfig{})
		rec, body := doJSON(t, bare, http.MethodPost, "/sources/config/save", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errors.ErrCodeInvalidRequest, body["error"])
	})
}

func TestRequestSizeLimit(t *testing.T) {
	_, h := newTestServer(t, testAppConfig(""), ServerConfig{MaxRequestSize: 16})

	rec, body := doJSON(t, h, http.MethodPost, "/search", `{"keywords":"a much longer query than allowed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.ErrCodeInvalidRequest, body["error"])
	assert.Contains(t, body["message"], "too large")
}

func TestRateLimiting(t *testing.T) {
	rl := &config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 1, ByIP: true, ByHeader: "X-Client-ID"}
	srv, h := newTestServer(t, testAppConfig(""), ServerConfig{RateLimit: rl})

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/sources/sample/enable", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		if client != "" {
			req.Header.Set("X-Client-ID", client)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send(""))
	assert.Equal(t, http.StatusTooManyRequests, send(""))
	// a header key gets its own bucket
	assert.Equal(t, http.StatusOK, send("alice"))

	// reads are not limited
	rec, _ := doJSON(t, h, http.MethodGet, "/sources", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	stats := srv.RateLimiter.GetStats()
	assert.Equal(t, uint64(1), stats["rejected_total"])
}

func TestHealthEndpoint(t *testing.T) {
	srv, h := newTestServer(t, testAppConfig(""), ServerConfig{Version: "test"})

	rec, body := doJSON(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])

	require.NoError(t, srv.Registry.Disable("sample"))
	rec, body = doJSON(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
}

func TestStatsEndpoint(t *testing.T) {
	_, h := newTestServer(t, testAppConfig("/tmp/sources.json"), ServerConfig{MaxRequestSize: 1024})

	rec, body := doJSON(t, h, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	reg := body["registry"].(map[string]any)
	assert.Equal(t, float64(2), reg["registered"])
	assert.Equal(t, "primary", reg["default_strategy"])
	assert.Equal(t, false, body["rate_limiting"].(map[string]any)["enabled"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{errors.ErrCodeUnknownProvider, http.StatusNotFound},
		{errors.ErrCodeInvalidValue, http.StatusBadRequest},
		{errors.ErrCodeInvalidQuery, http.StatusBadRequest},
		{errors.ErrCodeNoProvidersAvailable, http.StatusServiceUnavailable},
		{errors.ErrCodeProviderUnavailable, http.StatusBadGateway},
		{errors.ErrCodeParseError, http.StatusBadGateway},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := statusFor(tt.code); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestWriteErrorUnclassified(t *testing.T) {
	srv := &Server{Logger: testLogger()}
	rec := httptest.NewRecorder()
	srv.writeError(rec, io.ErrUnexpectedEOF)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&body))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errors.ErrCodeInternal, body.Error)
}

func TestGetRateLimitKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "ip:203.0.113.9", getRateLimitKey(req, "", true))
	assert.Equal(t, "", getRateLimitKey(req, "X-Client-ID", false))

	req.Header.Set("X-Client-ID", "bob")
	assert.Equal(t, "hdr:bob", getRateLimitKey(req, "X-Client-ID", true))
}
