// Package graph implements §9's Graph tool category (get_callers,
// get_implementations, call_graph) over the relation edges the Ingest
// Pipeline records in Store: explicit visited-set + depth-cap cycle
// detection, never recursion-depth-from-data termination, per §9
// "Cyclic graphs."
package graph

import (
	"context"

	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/types"
)

// RelationReader is the subset of Store the graph package needs —
// defined here (not imported from store) so graph has no import-cycle
// risk and stays testable against a fake.
type RelationReader interface {
	RelationsFrom(ctx context.Context, symbolID types.SymbolID) ([]types.Relation, error)
	RelationsTo(ctx context.Context, symbolID types.SymbolID) ([]types.Relation, error)
}

// DefaultMaxDepth bounds a call_graph traversal when the caller does
// not specify one explicitly.
const DefaultMaxDepth = 6

// Node is one symbol in a traversed graph, named rather than resolved
// to a full types.Symbol — callers that need the full record look it
// up themselves (e.g. via store.GetSymbol) to avoid an extra query per
// node here.
type Node struct {
	SymbolID types.SymbolID
	Path     types.DocID
	Name     string
	Depth    int
}

// Edge is one traversed relation, annotated with the depth at which it
// was discovered.
type Edge struct {
	From    types.SymbolID
	To      types.SymbolID
	RelType types.RelationType
	Depth   int
}

// Result is the output of a graph traversal: the reachable nodes and
// the edges connecting them, plus whether the traversal was truncated
// by maxDepth (as opposed to exhausting the reachable set naturally).
type Result struct {
	Nodes     []Node
	Edges     []Edge
	Truncated bool
}

// GetCallers returns the direct and transitive callers of symbolID —
// i.e. a reverse (RelationsTo) traversal restricted to RelCalls edges —
// up to maxDepth hops. maxDepth<=0 uses DefaultMaxDepth.
func GetCallers(ctx context.Context, r RelationReader, symbolID types.SymbolID, maxDepth int) (*Result, error) {
	return traverse(ctx, r, symbolID, maxDepth, directionReverse, onlyRelTypes(types.RelCalls))
}

// GetImplementations returns symbols that implement or inherit from
// symbolID — a reverse traversal restricted to RelImplements/RelInherits
// edges, up to maxDepth hops, so an implementer's own subtypes are
// included. maxDepth<=0 uses DefaultMaxDepth.
func GetImplementations(ctx context.Context, r RelationReader, symbolID types.SymbolID, maxDepth int) (*Result, error) {
	return traverse(ctx, r, symbolID, maxDepth, directionReverse, onlyRelTypes(types.RelImplements, types.RelInherits))
}

// CallGraph returns the full forward call graph rooted at symbolID —
// every symbol transitively called, to maxDepth hops, across all
// relation types (a caller wanting calls-only should filter Edges by
// RelType after the fact, since mixed-type traversal is what most
// callers of call_graph actually want: "what does this touch").
func CallGraph(ctx context.Context, r RelationReader, symbolID types.SymbolID, maxDepth int) (*Result, error) {
	return traverse(ctx, r, symbolID, maxDepth, directionForward, nil)
}

type direction int

const (
	directionForward direction = iota
	directionReverse
)

func onlyRelTypes(types_ ...types.RelationType) map[types.RelationType]bool {
	m := make(map[types.RelationType]bool, len(types_))
	for _, t := range types_ {
		m[t] = true
	}
	return m
}

// traverse runs a breadth-first walk bounded by maxDepth, tracking a
// visited set so a cycle in the relation data (A calls B calls A) is
// visited exactly once rather than looping forever.
func traverse(ctx context.Context, r RelationReader, root types.SymbolID, maxDepth int, dir direction, allowed map[types.RelationType]bool) (*Result, error) {
	if root == "" {
		return nil, sarierrors.New(sarierrors.InvalidArgs, "symbol_id is required").WithClientAction(sarierrors.ActionFixArgs)
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	visited := map[types.SymbolID]bool{root: true}
	result := &Result{Nodes: []Node{{SymbolID: root, Depth: 0}}}

	frontier := []types.SymbolID{root}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []types.SymbolID
		for _, id := range frontier {
			rels, err := fetchRelations(ctx, r, id, dir)
			if err != nil {
				return nil, err
			}
			for _, rel := range rels {
				if allowed != nil && !allowed[rel.RelType] {
					continue
				}
				to := relationTarget(rel, dir)
				from, toNode := relationEdgeEnds(id, to, dir)
				result.Edges = append(result.Edges, Edge{From: from, To: toNode, RelType: rel.RelType, Depth: depth})
				if visited[to] {
					continue
				}
				visited[to] = true
				name, path := relationTargetInfo(rel, dir)
				result.Nodes = append(result.Nodes, Node{SymbolID: to, Name: name, Path: path, Depth: depth})
				next = append(next, to)
			}
		}
		frontier = next
	}

	if len(frontier) > 0 {
		result.Truncated = true
	}
	return result, nil
}

func fetchRelations(ctx context.Context, r RelationReader, id types.SymbolID, dir direction) ([]types.Relation, error) {
	if dir == directionForward {
		return r.RelationsFrom(ctx, id)
	}
	return r.RelationsTo(ctx, id)
}

func relationTarget(rel types.Relation, dir direction) types.SymbolID {
	if dir == directionForward {
		return rel.ToSymbolID
	}
	return rel.FromSymbolID
}

func relationEdgeEnds(center, other types.SymbolID, dir direction) (from, to types.SymbolID) {
	if dir == directionForward {
		return center, other
	}
	return other, center
}

func relationTargetInfo(rel types.Relation, dir direction) (name string, path types.DocID) {
	if dir == directionForward {
		return rel.ToSymbol, rel.ToPath
	}
	return rel.FromSymbol, rel.FromPath
}
