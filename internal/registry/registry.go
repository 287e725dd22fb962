package registry

import (
	"maps"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"jobscout/internal/errors"
	"jobscout/internal/provider"
	"jobscout/internal/types"

	"github.com/spf13/cast"
)

// Record is one registered job source. Values handed out by the registry are
// copies; mutating them does not affect the registry.
type Record struct {
	Name     string
	Provider provider.Provider
	Enabled  bool
	Priority int
	Weight   int
	Config   map[string]any

	seq uint64
}

// Info returns the serializable view of r.
func (r Record) Info() types.SourceInfo {
	ref := r.Provider.Ref()
	return types.SourceInfo{
		Name:     r.Name,
		Module:   ref.Module,
		Class:    ref.Class,
		Enabled:  r.Enabled,
		Priority: r.Priority,
		Weight:   r.Weight,
		Config:   cloneConfig(r.Config),
	}
}

func (r *Record) clone() Record {
	c := *r
	c.Config = cloneConfig(r.Config)
	return c
}

// Observer receives registry activity. Implementations must be safe for
// concurrent use and must not call back into the registry.
type Observer interface {
	ProviderSelected(strategy types.Strategy, name string)
	ProviderCallCompleted(name string, duration time.Duration, jobCount int, err error)
	RegistryChanged(operation, name string)
}

// Registry is the in-memory authority over registered job sources
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
	nextSeq uint64

	factory  *provider.Factory
	logger   *errors.Logger
	observer Observer

	rngMu sync.Mutex
	rng   *rand.Rand

	writesMu  sync.Mutex
	lastWrite map[string]time.Time
}

// Option configures a Registry
type Option func(*Registry)

// WithRand replaces the random source used for load balancing.
func WithRand(rng *rand.Rand) Option {
	return func(r *Registry) { r.rng = rng }
}

func WithLogger(logger *errors.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithObserver(observer Observer) Option {
	return func(r *Registry) { r.observer = observer }
}

// New creates an empty registry. The factory resolves module/class
// references when a snapshot is loaded.
func New(factory *provider.Factory, opts ...Option) *Registry {
	r := &Registry{
		records:   make(map[string]*Record),
		factory:   factory,
		lastWrite: make(map[string]time.Time),
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NormalizeName is the canonical form of a source name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register inserts or overwrites a source. Overwriting keeps the original
// registration slot, so tie-breaks stay stable.
func (r *Registry) Register(name string, p provider.Provider, priority int, enabled bool, weight int, config map[string]any) error {
	name = NormalizeName(name)
	if err := validateRecord(name, p, priority, weight); err != nil {
		return err
	}

	r.mu.Lock()
	r.putLocked(&Record{
		Name:     name,
		Provider: p,
		Enabled:  enabled,
		Priority: priority,
		Weight:   weight,
		Config:   normalizeConfig(config),
	})
	r.mu.Unlock()

	r.changed("register", name)
	return nil
}

func validateRecord(name string, p provider.Provider, priority, weight int) error {
	if name == "" {
		return errors.InvalidValue("name", name)
	}
	if p == nil {
		return errors.InvalidValue("provider", nil).WithContext("name", name)
	}
	if priority < 0 {
		return errors.InvalidValue("priority", priority).WithContext("name", name)
	}
	if weight < 0 {
		return errors.InvalidValue("weight", weight).WithContext("name", name)
	}
	return nil
}

func (r *Registry) putLocked(rec *Record) {
	if existing, ok := r.records[rec.Name]; ok {
		rec.seq = existing.seq
	} else {
		rec.seq = r.nextSeq
		r.nextSeq++
	}
	r.records[rec.Name] = rec
}

// Deregister removes a source.
func (r *Registry) Deregister(name string) error {
	name = NormalizeName(name)

	r.mu.Lock()
	if _, ok := r.records[name]; !ok {
		r.mu.Unlock()
		return errors.UnknownProvider(name)
	}
	delete(r.records, name)
	r.mu.Unlock()

	r.changed("deregister", name)
	return nil
}

func (r *Registry) Enable(name string) error {
	return r.mutate("enable", name, func(rec *Record) error {
		rec.Enabled = true
		return nil
	})
}

func (r *Registry) Disable(name string) error {
	return r.mutate("disable", name, func(rec *Record) error {
		rec.Enabled = false
		return nil
	})
}

// SetPriority rejects negative values and leaves the prior value in place.
func (r *Registry) SetPriority(name string, priority int) error {
	return r.mutate("set_priority", name, func(rec *Record) error {
		if priority < 0 {
			return errors.InvalidValue("priority", priority).WithContext("name", rec.Name)
		}
		rec.Priority = priority
		return nil
	})
}

// SetWeight rejects negative values and leaves the prior value in place.
func (r *Registry) SetWeight(name string, weight int) error {
	return r.mutate("set_weight", name, func(rec *Record) error {
		if weight < 0 {
			return errors.InvalidValue("weight", weight).WithContext("name", rec.Name)
		}
		rec.Weight = weight
		return nil
	})
}

// UpdateConfig shallow-merges partial into the source's config.
func (r *Registry) UpdateConfig(name string, partial map[string]any) error {
	return r.mutate("update_config", name, func(rec *Record) error {
		if partial == nil {
			return errors.InvalidValue("config", nil).WithContext("name", rec.Name)
		}
		merged := cloneConfig(rec.Config)
		maps.Copy(merged, normalizeConfig(partial))
		rec.Config = merged
		return nil
	})
}

// mutate applies fn to the named record under the write lock.
func (r *Registry) mutate(operation, name string, fn func(*Record) error) error {
	name = NormalizeName(name)

	r.mu.Lock()
	rec, ok := r.records[name]
	if !ok {
		r.mu.Unlock()
		return errors.UnknownProvider(name)
	}
	if err := fn(rec); err != nil {
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	r.changed(operation, name)
	return nil
}

// Get returns a copy of the named record.
func (r *Registry) Get(name string) (Record, error) {
	name = NormalizeName(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[name]
	if !ok {
		return Record{}, errors.UnknownProvider(name)
	}
	return rec.clone(), nil
}

// GetAll returns copies ordered by priority (highest first), then by
// registration order.
func (r *Registry) GetAll(enabledOnly bool) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orderedLocked(enabledOnly)
}

func (r *Registry) orderedLocked(enabledOnly bool) []Record {
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if enabledOnly && !rec.Enabled {
			continue
		}
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Info returns the serializable view of the named source.
func (r *Registry) Info(name string) (types.SourceInfo, error) {
	rec, err := r.Get(name)
	if err != nil {
		return types.SourceInfo{}, err
	}
	return rec.Info(), nil
}

// InfoAll lists every source in selection order.
func (r *Registry) InfoAll() []types.SourceInfo {
	records := r.GetAll(false)
	out := make([]types.SourceInfo, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Info())
	}
	return out
}

// Len reports how many sources are registered.
func (r *Registry) Len() (total, enabled int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		total++
		if rec.Enabled {
			enabled++
		}
	}
	return total, enabled
}

func (r *Registry) changed(operation, name string) {
	if r.logger != nil {
		r.logger.Debug("Registry updated", "operation", operation, "name", name)
	}
	if r.observer != nil {
		r.observer.RegistryChanged(operation, name)
	}
}

func cloneConfig(config map[string]any) map[string]any {
	if config == nil {
		return map[string]any{}
	}
	return maps.Clone(config)
}

// normalizeConfig copies config with whole numbers stored as int, the same
// shape a snapshot reload produces from JSON.
func normalizeConfig(config map[string]any) map[string]any {
	out := make(map[string]any, len(config))
	for k, v := range config {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int(val)
		}
		return val
	case float32:
		return normalizeValue(float64(val))
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return cast.ToInt(val)
	case map[string]any:
		return normalizeConfig(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	}
	return v
}
