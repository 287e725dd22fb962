package search

import (
	"context"
	"strings"
	"time"

	"jobscout/internal/errors"
	"jobscout/internal/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Distributor is the part of the registry the facade depends on
type Distributor interface {
	DistributeSearch(ctx context.Context, query types.Query, strategy types.Strategy, overrides map[string]any) (*types.DistributionResult, error)
}

// Recorder receives one event per completed search
type Recorder interface {
	RecordSearch(ctx context.Context, strategy types.Strategy, duration time.Duration, jobCount int, err error)
}

// Request is a search as callers submit it
type Request struct {
	Query    types.Query    `json:"query"`
	Strategy types.Strategy `json:"strategy,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

// Service validates requests, hands them to the registry and stamps the
// response with search metadata.
type Service struct {
	distributor     Distributor
	defaultStrategy types.Strategy
	now             func() time.Time
	newID           func() string
	logger          *errors.Logger
	recorder        Recorder
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the uuid generator for search ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func WithDefaultStrategy(strategy types.Strategy) Option {
	return func(s *Service) {
		if strategy != "" {
			s.defaultStrategy = strategy
		}
	}
}

func WithLogger(logger *errors.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func NewService(distributor Distributor, opts ...Option) *Service {
	s := &Service{
		distributor:     distributor,
		defaultStrategy: types.StrategyPrimary,
		now:             time.Now,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs one search and returns the stamped response.
func (s *Service) Search(ctx context.Context, req Request) (*types.SearchResponse, error) {
	ctx, span := otel.Tracer("jobscout.search").Start(ctx, "search.Search")
	defer span.End()

	query, strategy, err := s.validate(req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("search.strategy", string(strategy)),
		attribute.String("search.keywords", query.Keywords),
	)

	start := time.Now()
	result, err := s.distributor.DistributeSearch(ctx, query, strategy, req.Params)
	jobCount := len(result.Jobs())
	if s.recorder != nil {
		s.recorder.RecordSearch(ctx, strategy, time.Since(start), jobCount, err)
	}
	if err != nil {
		span.RecordError(err)
		if s.logger != nil {
			s.logger.LogError(err, "Search failed", "strategy", string(strategy))
		}
		return nil, err
	}

	resp := &types.SearchResponse{
		SearchID:       s.newID(),
		Timestamp:      s.now().UTC().Format(time.RFC3339),
		Strategy:       strategy,
		SearchCriteria: query,
		Jobs:           result.Jobs(),
		JobCount:       jobCount,
	}
	if resp.Jobs == nil {
		resp.Jobs = []types.NormalizedJob{}
	}
	switch {
	case result.Single != nil:
		resp.ProviderName = result.Single.ProviderName
	case result.Aggregate != nil:
		resp.ProviderName = string(types.StrategyAll)
		resp.PerProviderStatus = result.Aggregate.Statuses
	}

	span.SetAttributes(attribute.Int("search.job_count", jobCount))
	if s.logger != nil {
		s.logger.Info("Search completed",
			"search_id", resp.SearchID,
			"strategy", string(strategy),
			"provider", resp.ProviderName,
			"job_count", jobCount)
	}
	return resp, nil
}

// validate returns the effective query and strategy.
func (s *Service) validate(req Request) (types.Query, types.Strategy, error) {
	query := req.Query
	query.Keywords = strings.TrimSpace(query.Keywords)
	query.Location = strings.TrimSpace(query.Location)
	query.Filters.Recency = strings.ToLower(strings.TrimSpace(query.Filters.Recency))
	query.Filters.ExperienceLevel = strings.ToLower(strings.TrimSpace(query.Filters.ExperienceLevel))

	if query.Keywords == "" {
		return query, "", errors.InvalidQuery("keywords are required")
	}

	switch query.Filters.Recency {
	case "", types.RecencyMonth, types.RecencyWeek, types.RecencyDay, types.RecencyHour:
	default:
		return query, "", errors.InvalidValue("recency", query.Filters.Recency)
	}

	switch query.Filters.ExperienceLevel {
	case "", types.LevelEntry, types.LevelMid, types.LevelSenior:
	default:
		return query, "", errors.InvalidValue("experience_level", query.Filters.ExperienceLevel)
	}

	strategy := types.Strategy(strings.ToLower(strings.TrimSpace(string(req.Strategy))))
	if strategy == "" {
		strategy = s.defaultStrategy
	}
	if !strategy.Valid() {
		return query, "", errors.InvalidValue("strategy", strategy)
	}
	return query, strategy, nil
}
