package ingest

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sari-dev/sari/internal/config"
)

func TestCoalesceTable_BurstOnSinglePathFlushesOnce(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Ingest.DebounceMinMs = 10
	cfg.Ingest.DebounceMaxMs = 40
	cfg.Ingest.CoalesceShards = 4

	var mu sync.Mutex
	var flushed []string
	tbl := NewCoalesceTable(cfg, func(path string, ev EventType) {
		mu.Lock()
		flushed = append(flushed, path)
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		tbl.Add("a.go", EventWrite)
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(flushed) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCoalesceTable_DistinctPathsFlushIndependently(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Ingest.DebounceMinMs = 5
	cfg.Ingest.DebounceMaxMs = 20

	var mu sync.Mutex
	seen := map[string]bool{}
	tbl := NewCoalesceTable(cfg, func(path string, ev EventType) {
		mu.Lock()
		seen[path] = true
		mu.Unlock()
	})

	tbl.Add("a.go", EventWrite)
	tbl.Add("b.go", EventCreate)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["a.go"] && seen["b.go"]
	}, time.Second, 10*time.Millisecond)
}

func TestCoalesceTable_AdaptiveWaitGrowsWithBurstRate(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Ingest.DebounceMinMs = 10
	cfg.Ingest.DebounceMaxMs = 200
	tbl := NewCoalesceTable(cfg, func(string, EventType) {})

	first := tbl.adaptiveWait()
	assert.Equal(t, tbl.minWait, first)

	var last time.Duration
	for i := 0; i < 60; i++ {
		last = tbl.adaptiveWait()
	}
	assert.Greater(t, last, first)
	assert.LessOrEqual(t, last, tbl.maxWait)
}
