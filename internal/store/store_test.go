package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sari-dev/sari/internal/config"
	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Store.ReaderPoolSize = 4
	s, err := Open(t.TempDir(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriter_SingleWriterEnforced(t *testing.T) {
	s := newTestStore(t)

	w1, err := NewWriter(s)
	require.NoError(t, err)
	defer w1.Close()

	_, err = NewWriter(s)
	require.Error(t, err)
	code, ok := sarierrors.AsCode(err)
	require.True(t, ok)
	assert.Equal(t, sarierrors.ErrDBWriteNotSingleWriter, code)
}

func TestWriter_AfterCloseCanReattach(t *testing.T) {
	s := newTestStore(t)

	w1, err := NewWriter(s)
	require.NoError(t, err)
	require.NoError(t, w1.Close())

	w2, err := NewWriter(s)
	require.NoError(t, err)
	defer w2.Close()
}

func TestUpsertAndReadFile_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	w, err := NewWriter(s)
	require.NoError(t, err)
	defer w.Close()

	root := types.NewRootID("/tmp/proj", false)
	doc := types.NewDocID(root, "main.go")
	f := &types.File{
		Path: doc, RootID: root, RelPath: "main.go", Repo: "__root__",
		MTime: time.Now(), Size: 5, Content: []byte("hello"),
		ContentHash: types.ContentHash([]byte("hello")),
		ParseStatus: types.ParseOK, ParseReason: types.ReasonNone,
		ASTStatus: types.ParseOK, ASTReason: types.ReasonNone,
		LastSeen: time.Now(),
	}
	require.NoError(t, w.Upsert(f, nil, nil))
	require.NoError(t, w.EndBatch())

	res, err := s.ReadFile(context.Background(), doc, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res.Content))
	assert.False(t, res.TextTruncated)
}

func TestReadFile_TruncatesAtByteCap(t *testing.T) {
	s := newTestStore(t)
	w, err := NewWriter(s)
	require.NoError(t, err)
	defer w.Close()

	root := types.NewRootID("/tmp/proj", false)
	doc := types.NewDocID(root, "big.txt")
	content := []byte("0123456789")
	f := &types.File{
		Path: doc, RootID: root, RelPath: "big.txt", Repo: "__root__",
		MTime: time.Now(), Size: int64(len(content)), Content: content,
		ContentHash: types.ContentHash(content),
		ParseStatus: types.ParseOK, ParseReason: types.ReasonNone,
		ASTStatus: types.ParseOK, ASTReason: types.ReasonNone,
		LastSeen: time.Now(),
	}
	require.NoError(t, w.Upsert(f, nil, nil))
	require.NoError(t, w.EndBatch())

	res, err := s.ReadFile(context.Background(), doc, 4)
	require.NoError(t, err)
	assert.True(t, res.TextTruncated)
	assert.Equal(t, "0123", string(res.Content))
}

func TestReadFile_NotIndexed(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReadFile(context.Background(), types.DocID("r1/missing.go"), 0)
	require.Error(t, err)
	code, ok := sarierrors.AsCode(err)
	require.True(t, ok)
	assert.Equal(t, sarierrors.NotIndexed, code)
}

func TestDelete_TombstonesWithoutRemoving(t *testing.T) {
	s := newTestStore(t)
	w, err := NewWriter(s)
	require.NoError(t, err)
	defer w.Close()

	root := types.NewRootID("/tmp/proj", false)
	doc := types.NewDocID(root, "gone.go")
	f := &types.File{
		Path: doc, RootID: root, RelPath: "gone.go", Repo: "__root__",
		MTime: time.Now(), ContentHash: types.ContentHash(nil),
		ParseStatus: types.ParseOK, ParseReason: types.ReasonNone,
		ASTStatus: types.ParseOK, ASTReason: types.ReasonNone, LastSeen: time.Now(),
	}
	require.NoError(t, w.Upsert(f, nil, nil))
	require.NoError(t, w.Delete([]types.DocID{doc}))
	require.NoError(t, w.EndBatch())

	_, err = s.ReadFile(context.Background(), doc, 0)
	require.Error(t, err)
	code, _ := sarierrors.AsCode(err)
	assert.Equal(t, sarierrors.NotIndexed, code)
}

func TestFailedTaskLifecycle(t *testing.T) {
	s := newTestStore(t)
	w, err := NewWriter(s)
	require.NoError(t, err)
	defer w.Close()

	doc := types.DocID("r1/flaky.go")
	ft := &types.FailedTask{Path: doc, Attempts: 3, Error: "boom", NextRetry: time.Now(), LastFailed: time.Now()}
	require.NoError(t, w.UpsertFailedTask(ft))
	require.NoError(t, w.EndBatch())

	n, err := s.CountSurfacedFailures(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, w.ClearFailedTask(doc))
	require.NoError(t, w.EndBatch())

	n, err = s.CountSurfacedFailures(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEngineState_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	w, err := NewWriter(s)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.SetEngineState(&types.EngineState{
		IndexVersion: "v123", DocCount: 42, LastCommitTS: time.Now(), ConfigHash: "abc",
	}))
	require.NoError(t, w.EndBatch())

	es, err := s.GetEngineState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v123", es.IndexVersion)
	assert.Equal(t, int64(42), es.DocCount)
}
