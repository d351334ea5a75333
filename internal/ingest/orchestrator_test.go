package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sari-dev/sari/internal/config"
	"github.com/sari-dev/sari/internal/parser"
	"github.com/sari-dev/sari/internal/store"
	"github.com/sari-dev/sari/internal/textindex"
	"github.com/sari-dev/sari/internal/types"
)

func newTestOrchestrator(t *testing.T, root string) (*Orchestrator, *store.Store) {
	t.Helper()
	cfg := config.Default(root)
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
	return orch, s
}

// stubAlwaysOKParser is a minimal Parser double so orchestrator tests
// don't depend on the real language parsers being registered.
type stubAlwaysOKParser struct{}

func (stubAlwaysOKParser) Name() string            { return "stub" }
func (stubAlwaysOKParser) Extensions() []string     { return nil }
func (stubAlwaysOKParser) Category() parser.Category { return parser.CategoryHeuristic }
func (stubAlwaysOKParser) Priority() int            { return 0 }
func (stubAlwaysOKParser) CanHandle(pctx *parser.Context) bool { return true }
func (stubAlwaysOKParser) Parse(ctx context.Context, pctx *parser.Context) (parser.ParseResult, error) {
	return parser.ParseResult{
		Status:  types.ParseOK,
		Symbols: []types.Symbol{{Name: "stub", Kind: types.KindOther}},
	}, nil
}

func TestOrchestrator_ProcessOneWritesStoreAndIndex(t *testing.T) {
	root := t.TempDir()
	full := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(full, []byte("package main\n"), 0o644))
	info, err := os.Stat(full)
	require.NoError(t, err)

	orch, s := newTestOrchestrator(t, root)
	item := FileItem{Root: root, RootID: "r1", AbsPath: full, RelPath: "main.go", Size: info.Size(), MTime: info.ModTime()}

	require.NoError(t, orch.ProcessOne(context.Background(), item))

	docID := types.NewDocID("r1", "main.go")
	res, err := s.ReadFile(context.Background(), docID, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, types.ParseOK, res.File.ParseStatus)
}

func TestOrchestrator_ExcludedItemDeletesRatherThanWrites(t *testing.T) {
	root := t.TempDir()
	full := filepath.Join(root, "vendor", "dep.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("package dep\n"), 0o644))
	info, err := os.Stat(full)
	require.NoError(t, err)

	orch, _ := newTestOrchestrator(t, root)
	item := FileItem{Root: root, RootID: "r1", AbsPath: full, RelPath: "vendor/dep.go", Size: info.Size(), MTime: info.ModTime(), IsExcluded: true}

	require.NoError(t, orch.ProcessOne(context.Background(), item))
}

func TestOrchestrator_ParseFailureRecordsFailedTaskAndRetries(t *testing.T) {
	root := t.TempDir()
	full := filepath.Join(root, "broken.go")
	require.NoError(t, os.WriteFile(full, []byte("package main\n"), 0o644))
	info, err := os.Stat(full)
	require.NoError(t, err)

	cfg := config.Default(root)
	cfg.Ingest.TokenBucketCapacity = 1000
	cfg.Ingest.TokenBucketRefillPerSec = 1000

	s, err := store.Open(t.TempDir(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	w, err := store.NewWriter(s)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	reg := parser.NewRegistry(2 * time.Second)
	reg.Register(&stubFailingParser{})
	idx := textindex.New(cfg)
	orch := NewOrchestrator(cfg, reg, w, idx)

	item := FileItem{Root: root, RootID: "r1", AbsPath: full, RelPath: "broken.go", Size: info.Size(), MTime: info.ModTime()}
	require.NoError(t, orch.ProcessOne(context.Background(), item))

	docID := types.NewDocID("r1", "broken.go")
	ft, ok := orch.failures[docID]
	require.True(t, ok)
	assert.Equal(t, 1, ft.Attempts)
}

type stubFailingParser struct{}

func (stubFailingParser) Name() string             { return "stub-fail" }
func (stubFailingParser) Extensions() []string      { return nil }
func (stubFailingParser) Category() parser.Category { return parser.CategoryHeuristic }
func (stubFailingParser) Priority() int             { return 0 }
func (stubFailingParser) CanHandle(pctx *parser.Context) bool { return true }
func (stubFailingParser) Parse(ctx context.Context, pctx *parser.Context) (parser.ParseResult, error) {
	return parser.ParseResult{Status: types.ParseFailed, Reason: types.ReasonError, Errors: []string{"stub parse failure"}}, nil // every parse fails
}
