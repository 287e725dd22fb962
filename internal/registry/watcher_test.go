package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"jobscout/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsExternalEdits(t *testing.T) {
	factory := provider.NewFactory(provider.Deps{})
	r := New(factory)
	path := filepath.Join(t.TempDir(), "sources.json")

	reloaded := make(chan error, 4)
	w := NewWatcher(r, path, 20*time.Millisecond, func(err error) { reloaded <- err }, nil)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start(), "starting twice is an error")

	body := `{"sources": {"sample": {"module": "provider/sample", "class": "SampleProvider", "enabled": true, "priority": 2, "weight": 3, "config": {}}}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Expected a reload after the snapshot changed")
	}

	rec, err := r.Get("sample")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Priority)
	assert.Equal(t, 3, rec.Weight)
}

func TestWatcherSkipsOwnWrites(t *testing.T) {
	factory := provider.NewFactory(provider.Deps{})
	r := New(factory)
	sample, err := factory.Build(provider.SampleRef)
	require.NoError(t, err)
	require.NoError(t, r.Register("sample", sample, 1, true, 1, nil))

	path := filepath.Join(t.TempDir(), "sources.json")
	require.NoError(t, r.SaveConfig(path))

	stat, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, r.wroteAt(path, stat.ModTime()))
	assert.False(t, r.wroteAt(path, stat.ModTime().Add(time.Second)))
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w := NewWatcher(New(provider.NewFactory(provider.Deps{})), filepath.Join(t.TempDir(), "s.json"), 0, nil, nil)
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
}
