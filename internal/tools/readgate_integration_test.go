package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sari-dev/sari/internal/config"
	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/search"
	"github.com/sari-dev/sari/internal/store"
	"github.com/sari-dev/sari/internal/textindex"
	"github.com/sari-dev/sari/internal/types"
)

// newGateTestDeps builds a Deps backed by a real Store/TextIndex/Engine
// with one seeded, indexed file — the minimum needed to drive `search`
// and `read` end to end against the stabilization gate.
func newGateTestDeps(t *testing.T) *Deps {
	t.Helper()
	cfg := config.Default(t.TempDir())
	s, err := store.Open(t.TempDir(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	w, err := store.NewWriter(s)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	require.NoError(t, w.UpsertRoot(&types.Root{
		RootID: "r1", RootPath: "/tmp/r1", State: types.RootActive,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))

	const relPath = "widget.go"
	const body = "package widget\n\nfunc Render() {}\n"
	docID := types.NewDocID("r1", relPath)
	require.NoError(t, w.Upsert(&types.File{
		Path: docID, RootID: "r1", RelPath: relPath, Repo: "svc",
		Content: []byte(body), ParseStatus: types.ParseOK, MTime: time.Now(), LastSeen: time.Now(),
		Size: int64(len(body)),
	}, nil, nil))

	idx := textindex.New(cfg)
	idx.Upsert(textindex.DocMeta{DocID: docID, RootID: "r1", RelPath: relPath, MTime: time.Now(), FileType: ".go"}, relPath, body)
	idx.Reload()

	return &Deps{
		Config:  cfg,
		Store:   s,
		Index:   idx,
		Engine:  search.NewEngine(cfg, s, idx),
		RootID:  "r1",
		Session: NewSession(),
	}
}

// TestReadTool_SeedScenario6ReadGate reproduces §8 seed scenario 6 end
// to end through the registered `search` and `read` tools: without any
// prior search, read fails SEARCH_REF_REQUIRED; the candidate_ref from
// a prior search response lets the same read through; a precision read
// succeeds with neither a search nor a ref.
func TestReadTool_SeedScenario6ReadGate(t *testing.T) {
	deps := newGateTestDeps(t)
	reg := NewRegistry()
	registerSearchTools(reg, deps)
	registerReadTools(reg, deps)
	ctx := context.Background()

	_, err := reg.Invoke(ctx, "read", map[string]interface{}{"mode": "file", "path": "r1/widget.go"})
	require.Error(t, err)
	code, ok := sarierrors.AsCode(err)
	require.True(t, ok)
	assert.Equal(t, sarierrors.SearchRefRequired, code)

	searchOut, err := reg.Invoke(ctx, "search", map[string]interface{}{"query": "Render"})
	require.NoError(t, err)
	result := searchOut.(SearchResult)
	require.Len(t, result.Hits, 1)
	ref := result.Hits[0].CandidateRef
	require.NotEmpty(t, ref)

	out, err := reg.Invoke(ctx, "read", map[string]interface{}{
		"mode": "file", "path": "r1/widget.go", "candidate_ref": ref,
	})
	require.NoError(t, err)
	assert.Contains(t, out.(ReadResult).Content, "func Render")

	freshDeps := newGateTestDeps(t)
	freshReg := NewRegistry()
	registerReadTools(freshReg, freshDeps)
	precise, err := freshReg.Invoke(ctx, "read", map[string]interface{}{
		"mode": "file", "path": "r1/widget.go", "start_line": float64(1), "end_line": float64(3),
	})
	require.NoError(t, err)
	assert.Contains(t, precise.(ReadResult).Content, "package widget")
}
