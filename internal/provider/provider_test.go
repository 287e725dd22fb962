package provider

import (
	"testing"

	"jobscout/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryBuild(t *testing.T) {
	factory := NewFactory(Deps{})

	for _, ref := range []Ref{PerplexityRef, AdzunaRef, SampleRef} {
		t.Run(ref.Key(), func(t *testing.T) {
			p, err := factory.Build(ref)
			require.NoError(t, err)
			assert.Equal(t, ref, p.Ref())
		})
	}
}

func TestFactoryUnknownRef(t *testing.T) {
	_, err := NewFactory(Deps{}).Build(Ref{Module: "provider/indeed", Class: "IndeedProvider"})

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrCodeUnknownProvider, appErr.Code)
	assert.Equal(t, "provider/indeed", appErr.Context["module"])
	assert.Equal(t, "IndeedProvider", appErr.Context["class"])
}

func TestKnownRefs(t *testing.T) {
	refs := KnownRefs()
	assert.Contains(t, refs, SampleRef)
	assert.Contains(t, refs, PerplexityRef)
	assert.Contains(t, refs, AdzunaRef)

	for i := 1; i < len(refs); i++ {
		if refs[i-1].Key() > refs[i].Key() {
			t.Errorf("Expected refs sorted by key, got %s before %s", refs[i-1].Key(), refs[i].Key())
		}
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(SampleRef, func(Deps) (Provider, error) { return NewSampleProvider(), nil })
	})
}

func TestHealthReporters(t *testing.T) {
	p, err := NewFactory(Deps{}).Build(PerplexityRef)
	require.NoError(t, err)

	reporter, ok := p.(HealthReporter)
	require.True(t, ok)
	assert.True(t, reporter.IsHealthy())
	assert.Equal(t, false, reporter.BreakerStats()["enabled"])

	sample, err := NewFactory(Deps{}).Build(SampleRef)
	require.NoError(t, err)
	_, ok = sample.(HealthReporter)
	assert.False(t, ok)
}
