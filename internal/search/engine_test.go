package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sarierrors "github.com/sari-dev/sari/internal/errors"

	"github.com/sari-dev/sari/internal/config"
	"github.com/sari-dev/sari/internal/store"
	"github.com/sari-dev/sari/internal/textindex"
	"github.com/sari-dev/sari/internal/types"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store, *store.Writer, *textindex.Index) {
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

	idx := textindex.New(cfg)
	e := NewEngine(cfg, s, idx)
	return e, s, w, idx
}

func seedFile(t *testing.T, w *store.Writer, idx *textindex.Index, rootID types.RootID, relPath, body string) types.DocID {
	t.Helper()
	docID := types.NewDocID(rootID, relPath)
	f := &types.File{
		Path: docID, RootID: rootID, RelPath: relPath, Repo: "svc",
		Content: []byte(body), ParseStatus: types.ParseOK, MTime: time.Now(), LastSeen: time.Now(),
		Size: int64(len(body)),
	}
	require.NoError(t, w.Upsert(f, nil, nil))
	idx.Upsert(textindex.DocMeta{DocID: docID, RootID: rootID, RelPath: relPath, MTime: f.MTime, FileType: ".go"}, relPath, body)
	idx.Reload()
	return docID
}

func TestEngine_RejectsEmptyQuery(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	_, err := e.Search(context.Background(), Request{Query: "  "})
	require.Error(t, err)
	se, ok := err.(*sarierrors.Error)
	require.True(t, ok)
	assert.Equal(t, sarierrors.InvalidArgs, se.Code)
}

func TestEngine_FindsExactTermMatch(t *testing.T) {
	e, _, w, idx := newTestEngine(t)
	seedFile(t, w, idx, "r1", "widget.go", "package widget\n\nfunc Render() {}\n")

	resp, err := e.Search(context.Background(), Request{Query: "Render"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "r1/widget.go", string(resp.Hits[0].DocID))
}

func TestEngine_RootIDsDisjointFromActiveReturnsOutOfScope(t *testing.T) {
	e, _, w, idx := newTestEngine(t)
	seedFile(t, w, idx, "r1", "widget.go", "package widget\n")

	_, err := e.Search(context.Background(), Request{Query: "widget", RootIDs: []types.RootID{"unknown-root"}})
	require.Error(t, err)
	se, ok := err.(*sarierrors.Error)
	require.True(t, ok)
	assert.Equal(t, sarierrors.ErrRootOutOfScope, se.Code)
}

func TestEngine_RepoFilterRestrictsResults(t *testing.T) {
	e, _, w, idx := newTestEngine(t)
	seedFile(t, w, idx, "r1", "svcA/widget.go", "package widget\n\nfunc Shared() {}\n")
	seedFile(t, w, idx, "r1", "svcB/widget.go", "package widget\n\nfunc Shared() {}\n")

	resp, err := e.Search(context.Background(), Request{Query: "Shared", Repo: "svcA"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "r1/svcA/widget.go", string(resp.Hits[0].DocID))
}

func TestEngine_PathPatternMatchesAnyOfThreeCandidates(t *testing.T) {
	e, _, w, idx := newTestEngine(t)
	seedFile(t, w, idx, "r1", "svcA/widget.go", "package widget\n\nfunc Shared() {}\n")

	resp, err := e.Search(context.Background(), Request{Query: "Shared", PathPattern: "svcA/*.go"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
}

func TestEngine_ExcludePatternsFilterOut(t *testing.T) {
	e, _, w, idx := newTestEngine(t)
	seedFile(t, w, idx, "r1", "vendor/dep.go", "package dep\n\nfunc Shared() {}\n")

	resp, err := e.Search(context.Background(), Request{Query: "Shared", ExcludePatterns: []string{"vendor/**"}})
	require.NoError(t, err)
	assert.Empty(t, resp.Hits)
}

func TestEngine_TotalModeApproxReturnsNegativeOne(t *testing.T) {
	e, _, w, idx := newTestEngine(t)
	seedFile(t, w, idx, "r1", "widget.go", "package widget\n\nfunc Render() {}\n")

	resp, err := e.Search(context.Background(), Request{Query: "Render", TotalMode: TotalApprox})
	require.NoError(t, err)
	assert.Equal(t, -1, resp.Meta.Total)
}

func TestEngine_DeepPaginationWarningBeyondConfiguredDepth(t *testing.T) {
	e, _, w, idx := newTestEngine(t)
	e.cfg.Search.MaxPaginationDepth = 5
	seedFile(t, w, idx, "r1", "widget.go", "package widget\n\nfunc Render() {}\n")

	resp, err := e.Search(context.Background(), Request{Query: "Render", Offset: 10, Limit: 10})
	require.NoError(t, err)
	assert.True(t, resp.Meta.DeepPaginationWarn)
}

func TestRepoOf_FirstSegmentOrRootSentinel(t *testing.T) {
	assert.Equal(t, "svc", repoOf("svc/main.go"))
	assert.Equal(t, "__root__", repoOf("main.go"))
}

func TestFuzzyMatcher_ExactStringsAlwaysMatch(t *testing.T) {
	fm := newFuzzyMatcher(0.8)
	assert.True(t, fm.matches("widget", "widget"))
	assert.Equal(t, 1.0, fm.similarity("widget", "widget"))
}
