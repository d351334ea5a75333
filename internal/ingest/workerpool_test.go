package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sari-dev/sari/internal/config"
	"github.com/sari-dev/sari/internal/parser"
	"github.com/sari-dev/sari/internal/store"
	"github.com/sari-dev/sari/internal/textindex"
	"github.com/sari-dev/sari/internal/types"
)

func TestWorkerPool_DrainsQueuedItemsAndStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	full := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(full, []byte("package main\n"), 0o644))
	info, err := os.Stat(full)
	require.NoError(t, err)

	cfg := config.Default(root)
	cfg.Ingest.WorkerConcurrency = 2
	cfg.Ingest.QueueHighWatermark = 100
	cfg.Ingest.QueueLowWatermark = 10
	cfg.Ingest.TokenBucketCapacity = 1000
	cfg.Ingest.TokenBucketRefillPerSec = 1000

	s, err := store.Open(t.TempDir(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	w, err := store.NewWriter(s)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	reg := parser.NewRegistry(2 * time.Second)
	reg.Register(&stubAlwaysOKParser{})
	idx := textindex.New(cfg)
	orch := NewOrchestrator(cfg, reg, w, idx)
	orch.Queue().Push(FileItem{Root: root, RootID: "r1", AbsPath: full, RelPath: "a.go", Size: info.Size(), MTime: info.ModTime()})

	pool := NewWorkerPool(cfg, orch)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_ = pool.Run(ctx)

	docID := types.NewDocID("r1", "a.go")
	res, err := s.ReadFile(context.Background(), docID, 1<<20)
	require.NoError(t, err)
	require.Equal(t, types.ParseOK, res.File.ParseStatus)
}
