package provider

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"jobscout/internal/errors"
	"jobscout/internal/types"

	"github.com/google/uuid"
)

// AdzunaRef identifies the Adzuna-backed provider
var AdzunaRef = Ref{Module: "provider/adzuna", Class: "AdzunaProvider"}

const (
	adzunaSource          = "adzuna"
	adzunaDefaultBaseURL  = "https://api.adzuna.com"
	adzunaDefaultCountry  = "us"
	adzunaDefaultPageSize = 20
)

func init() {
	Register(AdzunaRef, func(deps Deps) (Provider, error) {
		return NewAdzunaProvider(deps), nil
	})
}

// AdzunaProvider queries the Adzuna job search REST API
type AdzunaProvider struct {
	appID      string
	appKey     string
	baseURL    string
	httpClient *http.Client
	*remoteCaller
}

var _ Provider = (*AdzunaProvider)(nil)
var _ HealthReporter = (*AdzunaProvider)(nil)

// NewAdzunaProvider builds a provider from the configured credentials
func NewAdzunaProvider(deps Deps) *AdzunaProvider {
	baseURL := deps.Credentials.Adzuna.BaseURL
	if baseURL == "" {
		baseURL = adzunaDefaultBaseURL
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &AdzunaProvider{
		appID:        deps.Credentials.Adzuna.AppID,
		appKey:       deps.Credentials.Adzuna.AppKey,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   httpClient,
		remoteCaller: newRemoteCaller(adzunaSource, deps),
	}
}

func (a *AdzunaProvider) Ref() Ref { return AdzunaRef }

// SearchJobs implements Provider
func (a *AdzunaProvider) SearchJobs(ctx context.Context, query types.Query, params Params) (types.RawResult, error) {
	if strings.TrimSpace(query.Keywords) == "" {
		return types.RawResult{}, errors.InvalidQuery("keywords are required").WithContext("provider", adzunaSource)
	}
	if a.appID == "" || a.appKey == "" {
		return types.RawResult{}, errors.ProviderUnavailable(adzunaSource,
			errors.NewConfigError(errors.ErrCodeMissingAPIKey, "adzuna app_id and app_key are not configured", nil))
	}

	searchURL, err := a.buildSearchURL(query, params)
	if err != nil {
		return types.RawResult{}, errors.ProviderUnavailable(adzunaSource, err)
	}

	return a.call(ctx, "search_jobs", params, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if err != nil {
			return nil, fmt.Errorf("adzuna: build request: %w", redactCredentials(err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("adzuna: request failed: %w", redactCredentials(err))
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		if resp.StatusCode >= http.StatusBadRequest {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, &statusError{StatusCode: resp.StatusCode, Snippet: strings.TrimSpace(string(snippet))}
		}
		return io.ReadAll(resp.Body)
	})
}

func (a *AdzunaProvider) buildSearchURL(query types.Query, params Params) (string, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return "", fmt.Errorf("adzuna: parse base url: %w", err)
	}

	country := strings.ToLower(params.String(ParamCountry, adzunaDefaultCountry))
	u.Path = path.Join(u.Path, "v1", "api", "jobs", country, "search", "1")

	what := []string{strings.TrimSpace(query.Keywords)}
	if query.Filters.ExperienceLevel != "" {
		what = append(what, query.Filters.ExperienceLevel)
	}
	if query.Filters.Remote {
		what = append(what, "remote")
	}

	values := url.Values{}
	values.Set("app_id", a.appID)
	values.Set("app_key", a.appKey)
	values.Set("what", strings.Join(what, " "))
	values.Set("results_per_page", fmt.Sprint(params.Int(ParamResultsPerPage, adzunaDefaultPageSize)))
	values.Set("content-type", "application/json")
	if query.Location != "" {
		values.Set("where", query.Location)
	}
	if days := recencyDays(query.Filters.Recency); days > 0 {
		values.Set("max_days_old", fmt.Sprint(days))
	}
	if len(query.Filters.Skills) > 0 {
		values.Set("what_and", strings.Join(query.Filters.Skills, " "))
	}

	u.RawQuery = values.Encode()
	return u.String(), nil
}

// redactCredentials masks app_id and app_key in the URL that transport
// errors quote, since error messages reach API callers.
func redactCredentials(err error) error {
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		urlErr.URL = redactQuery(urlErr.URL)
	}
	return err
}

func redactQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<adzuna search url>"
	}
	values := u.Query()
	for _, key := range []string{"app_id", "app_key"} {
		if values.Has(key) {
			values.Set(key, "REDACTED")
		}
	}
	u.RawQuery = values.Encode()
	return u.String()
}

func recencyDays(recency string) int {
	switch recency {
	case types.RecencyHour, types.RecencyDay:
		return 1
	case types.RecencyWeek:
		return 7
	case types.RecencyMonth:
		return 30
	}
	return 0
}

type adzunaResponse struct {
	Count   int              `json:"count"`
	Results *[]adzunaPosting `json:"results"`
}

type adzunaPosting struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Created     string  `json:"created"`
	RedirectURL string  `json:"redirect_url"`
	Contract    string  `json:"contract_time"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
	Category struct {
		Label string `json:"label"`
	} `json:"category"`
}

// ParseResults implements Provider
func (a *AdzunaProvider) ParseResults(raw types.RawResult) ([]types.RawJob, error) {
	var payload adzunaResponse
	if err := json.Unmarshal(raw.Body, &payload); err != nil {
		return nil, errors.ParseError(adzunaSource, "body", err)
	}
	if payload.Results == nil {
		return nil, errors.ParseError(adzunaSource, "results", nil)
	}

	jobs := make([]types.RawJob, 0, len(*payload.Results))
	for _, posting := range *payload.Results {
		id := posting.ID
		if id == "" {
			id = uuid.NewString()
		}
		jobs = append(jobs, types.RawJob{
			ExternalID:      id,
			Title:           posting.Title,
			Company:         posting.Company.DisplayName,
			Location:        posting.Location.DisplayName,
			JobType:         strings.ReplaceAll(posting.Contract, "_", "-"),
			Salary:          formatSalaryRange(posting.SalaryMin, posting.SalaryMax),
			Description:     posting.Description,
			ApplicationLink: posting.RedirectURL,
			DatePosted:      posting.Created,
			FullText:        strings.TrimSpace(posting.Title + "\n" + posting.Description),
			Extra: map[string]any{
				"category": posting.Category.Label,
			},
		})
	}
	return jobs, nil
}

func formatSalaryRange(lo, hi float64) string {
	switch {
	case lo > 0 && hi > 0 && lo != hi:
		return fmt.Sprintf("$%.0f - $%.0f per year", lo, hi)
	case hi > 0:
		return fmt.Sprintf("$%.0f per year", hi)
	case lo > 0:
		return fmt.Sprintf("$%.0f per year", lo)
	}
	return ""
}

// NormalizeJob implements Provider
func (a *AdzunaProvider) NormalizeJob(job types.RawJob) types.NormalizedJob {
	return normalize(adzunaSource, job)
}
