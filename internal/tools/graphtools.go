package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/graph"
	"github.com/sari-dev/sari/internal/types"
)

// GraphResult mirrors graph.Result in JSON-friendly form.
type GraphResult struct {
	Nodes     []GraphNode `json:"nodes"`
	Edges     []GraphEdge `json:"edges"`
	Truncated bool        `json:"truncated"`
}

type GraphNode struct {
	SymbolID string `json:"symbol_id"`
	Path     string `json:"path"`
	Name     string `json:"name"`
	Depth    int    `json:"depth"`
}

type GraphEdge struct {
	From    string `json:"from"`
	To      string `json:"to"`
	RelType string `json:"rel_type"`
	Depth   int    `json:"depth"`
}

func toGraphResult(r *graph.Result) GraphResult {
	out := GraphResult{Truncated: r.Truncated}
	for _, n := range r.Nodes {
		out.Nodes = append(out.Nodes, GraphNode{SymbolID: string(n.SymbolID), Path: n.Path, Name: n.Name, Depth: n.Depth})
	}
	for _, e := range r.Edges {
		out.Edges = append(out.Edges, GraphEdge{From: string(e.From), To: string(e.To), RelType: string(e.RelType), Depth: e.Depth})
	}
	return out
}

func registerGraphTools(reg *Registry, deps *Deps) {
	symbolIDSchema := func() *jsonschema.Schema {
		return &jsonschema.Schema{
			Type:     "object",
			Required: []string{"symbol_id"},
			Properties: map[string]*jsonschema.Schema{
				"symbol_id": {Type: "string"},
				"max_depth": {Type: "integer", Description: "Defaults to 6 if omitted or non-positive"},
			},
		}
	}

	symbolIDArg := func(args map[string]interface{}) (types.SymbolID, int, error) {
		id, ok := stringArg(args, "symbol_id")
		if !ok || id == "" {
			return "", 0, sarierrors.New(sarierrors.InvalidArgs, "symbol_id is required").WithParam("symbol_id").WithClientAction(sarierrors.ActionFixArgs)
		}
		return types.SymbolID(id), intArg(args, "max_depth", graph.DefaultMaxDepth), nil
	}

	reg.Register(&Tool{
		Name:        "get_callers",
		Description: "Reverse call-graph traversal: every symbol that (transitively) calls symbol_id.",
		Schema:      symbolIDSchema(),
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			id, depth, err := symbolIDArg(args)
			if err != nil {
				return nil, err
			}
			r, err := graph.GetCallers(ctx, deps.graphReader(), id, depth)
			if err != nil {
				return nil, err
			}
			return toGraphResult(r), nil
		},
	})

	reg.Register(&Tool{
		Name:        "get_implementations",
		Description: "Reverse traversal over implements/inherits edges: every symbol that (transitively) implements or extends symbol_id.",
		Schema:      symbolIDSchema(),
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			id, depth, err := symbolIDArg(args)
			if err != nil {
				return nil, err
			}
			r, err := graph.GetImplementations(ctx, deps.graphReader(), id, depth)
			if err != nil {
				return nil, err
			}
			return toGraphResult(r), nil
		},
	})

	reg.Register(&Tool{
		Name:        "call_graph",
		Description: "Forward traversal over every relation type rooted at symbol_id.",
		Schema:      symbolIDSchema(),
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			id, depth, err := symbolIDArg(args)
			if err != nil {
				return nil, err
			}
			r, err := graph.CallGraph(ctx, deps.graphReader(), id, depth)
			if err != nil {
				return nil, err
			}
			return toGraphResult(r), nil
		},
	})
}
