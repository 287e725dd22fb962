package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/errors"
	"jobscout/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const perplexityAnswer = "1. Go Engineer at Acme\\nLocation: Remote\\nSalary: $120k\\n\\n2. Platform Engineer at Globex\\nLocation: Berlin, DE"

func perplexityCompletion(content string) string {
	return `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"sonar-pro",` +
		`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"` + content + `"}}],` +
		`"usage":{"prompt_tokens":10,"completion_tokens":20,"total_tokens":30}}`
}

func newTestPerplexity(t *testing.T, handler http.HandlerFunc, apiKey string) *PerplexityProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewPerplexityProvider(Deps{
		Credentials: config.ProvidersConfig{
			Perplexity: config.PerplexityConfig{APIKey: apiKey, BaseURL: srv.URL},
		},
		HTTPClient: srv.Client(),
	})
	p.baseDelay = time.Millisecond
	return p
}

func TestPerplexitySearchJobs(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	var authHeader string

	p := newTestPerplexity(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		authHeader = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(perplexityCompletion(perplexityAnswer)))
	}, "test-key")

	query := types.Query{
		Keywords: "golang",
		Location: "Berlin",
		Filters:  types.Filters{Recency: types.RecencyWeek, Remote: true, ExperienceLevel: types.LevelSenior},
	}
	raw, err := p.SearchJobs(context.Background(), query, Params{"model": "sonar"})
	require.NoError(t, err)
	assert.Equal(t, "perplexity", raw.Source)
	assert.Equal(t, "Bearer test-key", authHeader)

	assert.Equal(t, "sonar", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Contains(t, string(captured.Messages[0].Content), "Focus on jobs posted within the last week.")
	user := string(captured.Messages[1].Content)
	for _, part := range []string{"job openings for golang", "in Berlin", "remote work only", "senior level"} {
		assert.Contains(t, user, part)
	}

	jobs, err := p.ParseResults(raw)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Go Engineer", jobs[0].Title)
	assert.Equal(t, "Globex", jobs[1].Company)

	normalized := p.NormalizeJob(jobs[0])
	assert.Equal(t, "perplexity", normalized.Source)
	assert.True(t, strings.HasPrefix(normalized.SourceID, "perplexity_"))
	assert.Equal(t, types.Unknown, normalized.JobType)
	assert.Equal(t, []string{}, normalized.Requirements)
}

func TestPerplexityRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestPerplexity(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(perplexityCompletion("nothing")))
	}, "test-key")

	_, err := p.SearchJobs(context.Background(), types.Query{Keywords: "go"}, Params{"max_retries": 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestPerplexityFailures(t *testing.T) {
	t.Run("blank keywords", func(t *testing.T) {
		p := newTestPerplexity(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("No request expected")
		}, "test-key")
		_, err := p.SearchJobs(context.Background(), types.Query{Keywords: "  "}, nil)
		if code := errors.CodeOf(err); code != errors.ErrCodeInvalidQuery {
			t.Errorf("Expected %s, got %s", errors.ErrCodeInvalidQuery, code)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		p := newTestPerplexity(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("No request expected")
		}, "")
		_, err := p.SearchJobs(context.Background(), types.Query{Keywords: "go"}, nil)
		assert.Equal(t, errors.ErrCodeProviderUnavailable, errors.CodeOf(err))
		assert.True(t, errors.HasCode(err, errors.ErrCodeMissingAPIKey))
	})

	t.Run("backend down", func(t *testing.T) {
		p := newTestPerplexity(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}, "test-key")
		_, err := p.SearchJobs(context.Background(), types.Query{Keywords: "go"}, Params{"max_retries": 0})
		assert.Equal(t, errors.ErrCodeProviderUnavailable, errors.CodeOf(err))
	})

	t.Run("timeout", func(t *testing.T) {
		p := newTestPerplexity(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}, "test-key")
		_, err := p.SearchJobs(context.Background(), types.Query{Keywords: "go"}, Params{"timeout_seconds": 0.05, "max_retries": 0})
		assert.Equal(t, errors.ErrCodeProviderUnavailable, errors.CodeOf(err))
	})
}

func TestParseChatBody(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
		wantJobs  int
	}{
		{"invalid json", `{"choices":`, "body", 0},
		{"missing choices", `{"model":"sonar"}`, "choices", 0},
		{"missing content", `{"choices":[{"message":{}}]}`, "choices[0].message.content", 0},
		{"missing message", `{"choices":[{}]}`, "choices[0].message.content", 0},
		{"empty choices", `{"choices":[]}`, "", 0},
		{"one listing", `{"choices":[{"message":{"content":"Go Engineer at Acme\nLocation: Remote"}}]}`, "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := parseChatBody("perplexity", []byte(tt.body))
			if tt.wantField != "" {
				require.Error(t, err)
				var appErr *errors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, errors.ErrCodeParseError, appErr.Code)
				assert.Equal(t, tt.wantField, appErr.Context["field"])
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, jobs)
			assert.Len(t, jobs, tt.wantJobs)
		})
	}
}
