package provider

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"jobscout/internal/config"
	"jobscout/internal/errors"
	"jobscout/internal/types"
)

// Provider is a job-data backend the registry can route searches to.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Ref identifies the implementation for persistence and reconstruction.
	Ref() Ref

	// SearchJobs queries the backend and returns its response unparsed.
	// Blank keywords yield INVALID_QUERY; transport failures, timeouts and an
	// open breaker yield PROVIDER_UNAVAILABLE.
	SearchJobs(ctx context.Context, query types.Query, params Params) (types.RawResult, error)

	// ParseResults extracts listings from a RawResult. Malformed input yields PARSE_ERROR.
	ParseResults(raw types.RawResult) ([]types.RawJob, error)

	// NormalizeJob maps one listing to the shared schema. It never fails.
	NormalizeJob(job types.RawJob) types.NormalizedJob
}

// HealthReporter is implemented by providers that guard calls with a circuit breaker.
type HealthReporter interface {
	IsHealthy() bool
	BreakerStats() map[string]any
}

// Ref names a provider implementation by module and class.
type Ref struct {
	Module string `json:"module"`
	Class  string `json:"class"`
}

// Key returns the factory table key for r.
func (r Ref) Key() string {
	return r.Module + "." + r.Class
}

func (r Ref) String() string {
	return r.Key()
}

// Deps carries what constructors need from the outside world.
type Deps struct {
	Logger         *errors.Logger
	Credentials    config.ProvidersConfig
	CircuitBreaker config.CircuitBreakerConfig
	HTTPClient     *http.Client
}

// Constructor builds a provider with default settings.
type Constructor func(deps Deps) (Provider, error)

var (
	constructorsMu sync.RWMutex
	constructors   = make(map[string]Constructor)
	refs           = make(map[string]Ref)
)

// Register adds a constructor to the factory table. Registering the same ref twice panics.
func Register(ref Ref, constructor Constructor) {
	constructorsMu.Lock()
	defer constructorsMu.Unlock()

	if _, exists := constructors[ref.Key()]; exists {
		panic(fmt.Sprintf("provider constructor %s already registered", ref.Key()))
	}
	constructors[ref.Key()] = constructor
	refs[ref.Key()] = ref
}

// KnownRefs lists every registered implementation, sorted by key.
func KnownRefs() []Ref {
	constructorsMu.RLock()
	defer constructorsMu.RUnlock()

	out := make([]Ref, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Factory resolves refs to fresh provider instances.
type Factory struct {
	deps Deps
}

// NewFactory returns a factory that passes deps to every constructor.
func NewFactory(deps Deps) *Factory {
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	return &Factory{deps: deps}
}

// Build constructs the provider registered under ref.
func (f *Factory) Build(ref Ref) (Provider, error) {
	constructorsMu.RLock()
	constructor, ok := constructors[ref.Key()]
	constructorsMu.RUnlock()

	if !ok {
		return nil, errors.NewRegistryError(errors.ErrCodeUnknownProvider,
			fmt.Sprintf("no provider implementation for %s", ref.Key()), nil).
			WithContext("module", ref.Module).
			WithContext("class", ref.Class)
	}
	return constructor(f.deps)
}

// DepsFromConfig collects constructor dependencies from application config.
func DepsFromConfig(cfg *config.Config, logger *errors.Logger) Deps {
	return Deps{
		Logger:         logger,
		Credentials:    cfg.Providers,
		CircuitBreaker: cfg.Providers.CircuitBreaker,
	}
}
