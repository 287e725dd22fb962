package types

import (
	"encoding/json"
	"time"
)

// Unknown marks a field the backend did not supply.
const Unknown = "unknown"

// Recency windows accepted in Filters.Recency
const (
	RecencyMonth = "month"
	RecencyWeek  = "week"
	RecencyDay   = "day"
	RecencyHour  = "hour"
)

// Experience levels accepted in Filters.ExperienceLevel
const (
	LevelEntry  = "entry"
	LevelMid    = "mid"
	LevelSenior = "senior"
)

// Strategy selects how a search is distributed over the registry
type Strategy string

const (
	StrategyPrimary     Strategy = "primary"
	StrategyLoadBalance Strategy = "load_balance"
	StrategyAll         Strategy = "all"
)

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyPrimary, StrategyLoadBalance, StrategyAll:
		return true
	}
	return false
}

// Filters narrows a job query
type Filters struct {
	Recency         string   `json:"recency,omitempty"`
	ExperienceLevel string   `json:"experience_level,omitempty"`
	Remote          bool     `json:"remote,omitempty"`
	Skills          []string `json:"skills,omitempty"`
}

// Query is what callers ask every provider for
type Query struct {
	Keywords string  `json:"keywords"`
	Location string  `json:"location,omitempty"`
	Filters  Filters `json:"filters"`
}

// RawResult is the backend response in its native shape
type RawResult struct {
	Source     string          `json:"source"`
	Body       json.RawMessage `json:"body"`
	ReceivedAt time.Time       `json:"received_at"`
}

// RawJob is one listing extracted from a RawResult before normalization
type RawJob struct {
	ExternalID      string         `json:"external_id,omitempty"`
	Title           string         `json:"title,omitempty"`
	Company         string         `json:"company,omitempty"`
	Location        string         `json:"location,omitempty"`
	JobType         string         `json:"job_type,omitempty"`
	Salary          string         `json:"salary,omitempty"`
	Description     string         `json:"description,omitempty"`
	Requirements    []string       `json:"requirements,omitempty"`
	Benefits        []string       `json:"benefits,omitempty"`
	ApplicationLink string         `json:"application_link,omitempty"`
	DatePosted      string         `json:"date_posted,omitempty"`
	FullText        string         `json:"full_text,omitempty"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// NormalizedJob is the shared job schema every provider produces
type NormalizedJob struct {
	Source          string         `json:"source"`
	SourceID        string         `json:"source_id"`
	Title           string         `json:"title"`
	Company         string         `json:"company"`
	Location        string         `json:"location"`
	JobType         string         `json:"job_type"`
	Salary          string         `json:"salary"`
	Description     string         `json:"description"`
	Requirements    []string       `json:"requirements"`
	Benefits        []string       `json:"benefits"`
	ApplicationLink string         `json:"application_link"`
	DatePosted      string         `json:"date_posted"`
	FullText        string         `json:"full_text"`
	RawData         map[string]any `json:"raw_data,omitempty"`
}

// ErrorInfo is the serializable form of a failed provider call
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ProviderStatus reports one provider's outcome under the "all" strategy
type ProviderStatus struct {
	Name     string          `json:"name"`
	Success  bool            `json:"success"`
	JobCount int             `json:"job_count"`
	Jobs     []NormalizedJob `json:"jobs,omitempty"`
	Error    *ErrorInfo      `json:"error,omitempty"`
}

// SingleResult is the outcome of a primary or load_balance search
type SingleResult struct {
	ProviderName string          `json:"provider_name"`
	Jobs         []NormalizedJob `json:"jobs"`
}

// AggregateResult is the outcome of an "all" search
type AggregateResult struct {
	Statuses []ProviderStatus `json:"per_provider_status"`
	Jobs     []NormalizedJob  `json:"jobs"`
}

// DistributionResult holds exactly one of Single or Aggregate
type DistributionResult struct {
	Strategy  Strategy
	Single    *SingleResult
	Aggregate *AggregateResult
}

// Jobs returns the jobs regardless of strategy.
func (d *DistributionResult) Jobs() []NormalizedJob {
	switch {
	case d == nil:
		return nil
	case d.Single != nil:
		return d.Single.Jobs
	case d.Aggregate != nil:
		return d.Aggregate.Jobs
	}
	return nil
}

// SearchResponse is what the facade hands back to callers
type SearchResponse struct {
	SearchID          string           `json:"search_id"`
	Timestamp         string           `json:"timestamp"`
	Strategy          Strategy         `json:"strategy"`
	ProviderName      string           `json:"provider_name"`
	SearchCriteria    Query            `json:"search_criteria"`
	Jobs              []NormalizedJob  `json:"jobs"`
	JobCount          int              `json:"job_count"`
	PerProviderStatus []ProviderStatus `json:"per_provider_status,omitempty"`
}

// SourceInfo is the serializable view of a registry record
type SourceInfo struct {
	Name     string         `json:"name"`
	Module   string         `json:"module"`
	Class    string         `json:"class"`
	Enabled  bool           `json:"enabled"`
	Priority int            `json:"priority"`
	Weight   int            `json:"weight"`
	Config   map[string]any `json:"config"`
}

// SourceList wraps a listing so formatters can tell it apart from a single record
type SourceList struct {
	Sources []SourceInfo `json:"sources"`
}
