package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/errors"
	"jobscout/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adzunaPayload = `{
  "count": 2,
  "results": [
    {
      "id": "4211",
      "title": "Go Developer",
      "description": "Build APIs in Go.",
      "created": "2025-05-01T10:00:00Z",
      "redirect_url": "https://adzuna.example/4211",
      "contract_time": "full_time",
      "salary_min": 90000,
      "salary_max": 120000,
      "company": {"display_name": "Acme"},
      "location": {"display_name": "London"},
      "category": {"label": "IT Jobs"}
    },
    {
      "title": "SRE",
      "description": "On call rotation.",
      "company": {"display_name": "Globex"},
      "location": {"display_name": "Leeds"}
    }
  ]
}`

func newTestAdzuna(t *testing.T, handler http.HandlerFunc, appID, appKey string) *AdzunaProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	a := NewAdzunaProvider(Deps{
		Credentials: config.ProvidersConfig{
			Adzuna: config.AdzunaConfig{AppID: appID, AppKey: appKey, BaseURL: srv.URL},
		},
		HTTPClient: srv.Client(),
	})
	a.baseDelay = time.Millisecond
	return a
}

func TestAdzunaSearchJobs(t *testing.T) {
	var gotPath string
	var gotQuery url.Values

	a := newTestAdzuna(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(adzunaPayload))
	}, "id", "key")

	query := types.Query{
		Keywords: "golang",
		Location: "London",
		Filters:  types.Filters{Recency: types.RecencyWeek, ExperienceLevel: types.LevelSenior},
	}
	raw, err := a.SearchJobs(context.Background(), query, Params{"country": "GB", "results_per_page": 5})
	require.NoError(t, err)

	assert.Equal(t, "/v1/api/jobs/gb/search/1", gotPath)
	assert.Equal(t, "id", gotQuery.Get("app_id"))
	assert.Equal(t, "key", gotQuery.Get("app_key"))
	assert.Equal(t, "golang senior", gotQuery.Get("what"))
	assert.Equal(t, "London", gotQuery.Get("where"))
	assert.Equal(t, "5", gotQuery.Get("results_per_page"))
	assert.Equal(t, "7", gotQuery.Get("max_days_old"))

	jobs, err := a.ParseResults(raw)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	first := a.NormalizeJob(jobs[0])
	assert.Equal(t, "adzuna_4211", first.SourceID)
	assert.Equal(t, "Acme", first.Company)
	assert.Equal(t, "full-time", first.JobType)
	assert.Equal(t, "$90000 - $120000 per year", first.Salary)
	assert.Equal(t, "https://adzuna.example/4211", first.ApplicationLink)
	assert.Equal(t, "IT Jobs", first.RawData["category"])

	second := a.NormalizeJob(jobs[1])
	assert.NotEqual(t, "adzuna_", second.SourceID)
	assert.Equal(t, types.Unknown, second.Salary)
	assert.Equal(t, types.Unknown, second.DatePosted)
}

func TestAdzunaFailures(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		a := newTestAdzuna(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("No request expected")
		}, "id", "")
		_, err := a.SearchJobs(context.Background(), types.Query{Keywords: "go"}, nil)
		assert.Equal(t, errors.ErrCodeProviderUnavailable, errors.CodeOf(err))
		assert.True(t, errors.HasCode(err, errors.ErrCodeMissingAPIKey))
	})

	t.Run("http error status", func(t *testing.T) {
		a := newTestAdzuna(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorised", http.StatusUnauthorized)
		}, "id", "key")
		_, err := a.SearchJobs(context.Background(), types.Query{Keywords: "go"}, nil)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeProviderUnavailable, errors.CodeOf(err))
		assert.Contains(t, err.Error(), "unexpected status 401")
	})

	t.Run("transport error hides credentials", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		baseURL := srv.URL
		srv.Close()

		a := NewAdzunaProvider(Deps{
			Credentials: config.ProvidersConfig{
				Adzuna: config.AdzunaConfig{AppID: "acct-42", AppKey: "SUPERSECRETKEY", BaseURL: baseURL},
			},
		})
		_, err := a.SearchJobs(context.Background(), types.Query{Keywords: "go"}, Params{ParamMaxRetries: 0})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeProviderUnavailable, errors.CodeOf(err))
		if strings.Contains(err.Error(), "SUPERSECRETKEY") || strings.Contains(err.Error(), "acct-42") {
			t.Errorf("Expected credentials to be redacted, got %q", err.Error())
		}
		assert.Contains(t, err.Error(), "app_key=REDACTED")
	})

	t.Run("missing results key", func(t *testing.T) {
		a := NewAdzunaProvider(Deps{})
		_, err := a.ParseResults(types.RawResult{Body: []byte(`{"count":0}`)})
		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, errors.ErrCodeParseError, appErr.Code)
		assert.Equal(t, "results", appErr.Context["field"])
	})

	t.Run("empty results", func(t *testing.T) {
		a := NewAdzunaProvider(Deps{})
		jobs, err := a.ParseResults(types.RawResult{Body: []byte(`{"results":[]}`)})
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})
}
