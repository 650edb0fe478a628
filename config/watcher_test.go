package config

import (
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherInvokesCallbackOnWrite(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := writeConfig(t, `
[validation]
threshold = 0.5
`)

	watcher, err := NewWatcher(path)
	require.NoError(t, err)
	t.Cleanup(func() { watcher.Stop() })
	watcher.debouncePeriod = 20 * time.Millisecond

	reloaded := make(chan *Config, 1)
	watcher.OnReload(func(cfg *Config) error {
		select {
		case reloaded <- cfg:
		default:
		}
		return nil
	})
	watcher.Start()

	require.NoError(t, os.WriteFile(path, []byte(`
[validation]
threshold = 0.9
`), 0o644))

	select {
	case cfg := <-reloaded:
		require.NotNil(t, cfg)
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback not invoked after config write")
	}
}

func TestWatcherDebouncesRapidWrites(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := writeConfig(t, "[validation]\nthreshold = 0.5\n")

	watcher, err := NewWatcher(path)
	require.NoError(t, err)
	t.Cleanup(func() { watcher.Stop() })
	watcher.debouncePeriod = 100 * time.Millisecond

	var reloads atomic.Int64
	done := make(chan struct{}, 8)
	watcher.OnReload(func(cfg *Config) error {
		reloads.Add(1)
		done <- struct{}{}
		return nil
	})
	watcher.Start()

	// Rapid successive writes collapse into a single reload.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("[validation]\nthreshold = 0.6\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback not invoked")
	}
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int64(1), reloads.Load())
}

func TestWatcherMissingFile(t *testing.T) {
	_, err := NewWatcher("/nonexistent/noema.toml")
	require.Error(t, err)
}
