package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sari-dev/sari/internal/config"
)

func TestEventBus_FileWriteTriggersOnEvent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "seed.go"), []byte("package main"), 0o644))

	cfg := config.Default(root)
	cfg.Ingest.WatchMode = true
	cfg.Ingest.DebounceMinMs = 5
	cfg.Ingest.DebounceMaxMs = 20

	var mu sync.Mutex
	var events []string
	bus, err := NewEventBus(cfg, root, func(path string, ev EventType) {
		mu.Lock()
		events = append(events, path)
		mu.Unlock()
	}, func() {})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bus.Start(ctx))
	defer bus.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "seed.go"), []byte("package main\n\nfunc main() {}"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventBus_GitActivityCollapsesIntoSingleRescan(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))

	cfg := config.Default(root)
	cfg.Ingest.WatchMode = true
	cfg.Ingest.GitCheckoutDebounceMs = 20

	var rescans int
	var mu sync.Mutex
	bus, err := NewEventBus(cfg, root, func(string, EventType) {}, func() {
		mu.Lock()
		rescans++
		mu.Unlock()
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bus.Start(ctx))
	defer bus.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref: refs/heads/main"), 0o644))
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return rescans == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventBus_ShouldIgnoreDirMatchesExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default(root)
	cfg.Exclude = []string{"vendor/**"}
	bus := &EventBus{cfg: cfg, root: root}
	assert.True(t, bus.shouldIgnoreDir(filepath.Join(root, "vendor")))
	assert.False(t, bus.shouldIgnoreDir(filepath.Join(root, "src")))
}
