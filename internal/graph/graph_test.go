package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/types"
)

// fakeReader is an in-memory RelationReader keyed by from-symbol for
// RelationsFrom and to-symbol for RelationsTo.
type fakeReader struct {
	from map[types.SymbolID][]types.Relation
	to   map[types.SymbolID][]types.Relation
}

func newFakeReader() *fakeReader {
	return &fakeReader{from: map[types.SymbolID][]types.Relation{}, to: map[types.SymbolID][]types.Relation{}}
}

func (f *fakeReader) add(rel types.Relation) {
	f.from[rel.FromSymbolID] = append(f.from[rel.FromSymbolID], rel)
	f.to[rel.ToSymbolID] = append(f.to[rel.ToSymbolID], rel)
}

func (f *fakeReader) RelationsFrom(_ context.Context, id types.SymbolID) ([]types.Relation, error) {
	return f.from[id], nil
}

func (f *fakeReader) RelationsTo(_ context.Context, id types.SymbolID) ([]types.Relation, error) {
	return f.to[id], nil
}

func rel(from, to types.SymbolID, relType types.RelationType) types.Relation {
	return types.Relation{FromSymbolID: from, FromSymbol: string(from), ToSymbolID: to, ToSymbol: string(to), RelType: relType}
}

func TestCallGraph_TraversesForwardAndStopsAtDepth(t *testing.T) {
	r := newFakeReader()
	r.add(rel("a", "b", types.RelCalls))
	r.add(rel("b", "c", types.RelCalls))
	r.add(rel("c", "d", types.RelCalls))

	result, err := CallGraph(context.Background(), r, "a", 2)
	require.NoError(t, err)

	ids := map[types.SymbolID]bool{}
	for _, n := range result.Nodes {
		ids[n.SymbolID] = true
	}
	assert.True(t, ids["a"])
	assert.True(t, ids["b"])
	assert.True(t, ids["c"])
	assert.False(t, ids["d"]) // beyond depth 2
	assert.True(t, result.Truncated)
}

func TestCallGraph_HandlesCycleWithoutInfiniteLoop(t *testing.T) {
	r := newFakeReader()
	r.add(rel("a", "b", types.RelCalls))
	r.add(rel("b", "a", types.RelCalls)) // cycle

	result, err := CallGraph(context.Background(), r, "a", 10)
	require.NoError(t, err)

	assert.Len(t, result.Nodes, 2)
	assert.False(t, result.Truncated)
}

func TestGetCallers_FiltersToRelCallsOnly(t *testing.T) {
	r := newFakeReader()
	r.add(rel("caller1", "target", types.RelCalls))
	r.add(rel("importer", "target", types.RelImports))

	result, err := GetCallers(context.Background(), r, "target", 1)
	require.NoError(t, err)

	ids := map[types.SymbolID]bool{}
	for _, n := range result.Nodes {
		ids[n.SymbolID] = true
	}
	assert.True(t, ids["caller1"])
	assert.False(t, ids["importer"])
}

func TestGetImplementations_FollowsImplementsAndInherits(t *testing.T) {
	r := newFakeReader()
	r.add(rel("implA", "iface", types.RelImplements))
	r.add(rel("childB", "base", types.RelInherits))

	result, err := GetImplementations(context.Background(), r, "iface", 1)
	require.NoError(t, err)
	assert.Len(t, result.Nodes, 2) // root + implA

	result2, err := GetImplementations(context.Background(), r, "base", 1)
	require.NoError(t, err)
	assert.Len(t, result2.Nodes, 2)
}

func TestGraph_EmptySymbolIDIsInvalidArgs(t *testing.T) {
	r := newFakeReader()
	_, err := CallGraph(context.Background(), r, "", 1)
	assert.Error(t, err)
	code, ok := sarierrors.AsCode(err)
	require.True(t, ok)
	assert.Equal(t, sarierrors.InvalidArgs, code)
}

func TestGraph_DefaultsMaxDepthWhenNonPositive(t *testing.T) {
	r := newFakeReader()
	r.add(rel("a", "b", types.RelCalls))

	result, err := CallGraph(context.Background(), r, "a", 0)
	require.NoError(t, err)
	assert.Len(t, result.Nodes, 2)
}
