package registry

import (
	"context"
	"time"

	"jobscout/internal/errors"
	"jobscout/internal/provider"
	"jobscout/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// DistributeSearch runs query against the source(s) chosen by strategy.
// overrides are merged over each source's config for this call only.
//
// primary and load_balance make one call and return its error as is; there is
// no fallback to another source. all fans out to every enabled source, waits
// for each of them and reports failures per source instead of failing.
func (r *Registry) DistributeSearch(ctx context.Context, query types.Query, strategy types.Strategy, overrides map[string]any) (*types.DistributionResult, error) {
	ctx, span := otel.Tracer("jobscout.registry").Start(ctx, "registry.distribute_search")
	defer span.End()
	span.SetAttributes(attribute.String("search.strategy", string(strategy)))

	var (
		rec Record
		err error
	)
	switch strategy {
	case types.StrategyPrimary:
		rec, err = r.SelectPrimary()
	case types.StrategyLoadBalance:
		rec, err = r.SelectByLoadBalance()
	case types.StrategyAll:
		return r.searchAll(ctx, query, overrides)
	default:
		return nil, errors.InvalidValue("strategy", strategy)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("search.provider", rec.Name))
	jobs, err := r.searchOne(ctx, rec, query, overrides)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &types.DistributionResult{
		Strategy: strategy,
		Single:   &types.SingleResult{ProviderName: rec.Name, Jobs: jobs},
	}, nil
}

func (r *Registry) searchAll(ctx context.Context, query types.Query, overrides map[string]any) (*types.DistributionResult, error) {
	candidates := r.GetAll(true)
	if len(candidates) == 0 {
		return nil, errors.NoProvidersAvailable("no enabled providers").
			WithContext("strategy", string(types.StrategyAll))
	}

	statuses := make([]types.ProviderStatus, len(candidates))

	// Siblings are never cancelled; every goroutine reports into its own slot.
	var g errgroup.Group
	for i, rec := range candidates {
		r.selected(types.StrategyAll, rec.Name)
		g.Go(func() error {
			jobs, err := r.searchOne(ctx, rec, query, overrides)
			status := types.ProviderStatus{Name: rec.Name, Success: err == nil, JobCount: len(jobs), Jobs: jobs}
			if err != nil {
				status.Error = &types.ErrorInfo{Kind: errors.CodeOf(err), Message: err.Error()}
			}
			statuses[i] = status
			return nil
		})
	}
	_ = g.Wait()

	jobs := []types.NormalizedJob{}
	for _, status := range statuses {
		jobs = append(jobs, status.Jobs...)
	}
	return &types.DistributionResult{
		Strategy:  types.StrategyAll,
		Aggregate: &types.AggregateResult{Statuses: statuses, Jobs: jobs},
	}, nil
}

// searchOne performs search, parse and normalize for one source. The call is
// bounded by the source's timeout and runs outside the registry lock.
func (r *Registry) searchOne(ctx context.Context, rec Record, query types.Query, overrides map[string]any) (jobs []types.NormalizedJob, err error) {
	params := provider.MergeParams(rec.Config, overrides)
	start := time.Now()
	defer func() {
		if r.observer != nil {
			r.observer.ProviderCallCompleted(rec.Name, time.Since(start), len(jobs), err)
		}
		if err != nil && r.logger != nil {
			r.logger.LogError(err, "Provider search failed", "name", rec.Name)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, params.Timeout())
	defer cancel()

	raw, err := rec.Provider.SearchJobs(ctx, query, params)
	if err != nil {
		return nil, classify(rec.Name, err)
	}

	parsed, err := rec.Provider.ParseResults(raw)
	if err != nil {
		return nil, classify(rec.Name, err)
	}

	if limit := params.MaxResults(); limit > 0 && len(parsed) > limit {
		parsed = parsed[:limit]
	}

	jobs = make([]types.NormalizedJob, 0, len(parsed))
	for _, job := range parsed {
		jobs = append(jobs, rec.Provider.NormalizeJob(job))
	}
	return jobs, nil
}

// classify makes sure every provider failure carries a known kind. Anything
// unclassified, timeouts included, is PROVIDER_UNAVAILABLE.
func classify(name string, err error) error {
	switch errors.CodeOf(err) {
	case errors.ErrCodeProviderUnavailable, errors.ErrCodeParseError, errors.ErrCodeInvalidQuery:
		return err
	}
	return errors.ProviderUnavailable(name, err)
}
