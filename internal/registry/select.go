package registry

import (
	"jobscout/internal/errors"
	"jobscout/internal/types"
)

// SelectPrimary returns the enabled source with the highest priority; ties go
// to the earliest registration.
func (r *Registry) SelectPrimary() (Record, error) {
	r.mu.RLock()
	candidates := r.orderedLocked(true)
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return Record{}, errors.NoProvidersAvailable("no enabled providers").
			WithContext("strategy", string(types.StrategyPrimary))
	}

	r.selected(types.StrategyPrimary, candidates[0].Name)
	return candidates[0], nil
}

// SelectByLoadBalance draws one enabled source with probability proportional
// to its weight. Zero-weight sources are never drawn.
func (r *Registry) SelectByLoadBalance() (Record, error) {
	r.mu.RLock()
	candidates := r.orderedLocked(true)
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return Record{}, errors.NoProvidersAvailable("no enabled providers").
			WithContext("strategy", string(types.StrategyLoadBalance))
	}

	total := 0
	for _, rec := range candidates {
		total += rec.Weight
	}
	if total <= 0 {
		return Record{}, errors.NoProvidersAvailable("all enabled providers have zero weight").
			WithContext("strategy", string(types.StrategyLoadBalance))
	}

	r.rngMu.Lock()
	draw := r.rng.IntN(total)
	r.rngMu.Unlock()

	for _, rec := range candidates {
		if draw < rec.Weight {
			r.selected(types.StrategyLoadBalance, rec.Name)
			return rec, nil
		}
		draw -= rec.Weight
	}

	// unreachable while total is the sum of the candidate weights
	return Record{}, errors.NoProvidersAvailable("weighted draw fell outside the pool")
}

func (r *Registry) selected(strategy types.Strategy, name string) {
	if r.logger != nil {
		r.logger.Debug("Provider selected", "strategy", string(strategy), "name", name)
	}
	if r.observer != nil {
		r.observer.ProviderSelected(strategy, name)
	}
}
