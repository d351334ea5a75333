package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/search"
	"github.com/sari-dev/sari/internal/types"
)

// SymbolResult is one row of search_symbols.
type SymbolResult struct {
	SymbolID string `json:"symbol_id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Path     string `json:"path"`
	Line     int    `json:"line"`
	EndLine  int    `json:"end_line"`
	Qualname string `json:"qualname"`
}

// SearchHitResult is one search hit, decorated with the candidate_ref the
// read stabilization gate accepts in place of a fresh search.
type SearchHitResult struct {
	search.SearchHit
	CandidateRef string `json:"candidate_ref"`
}

// searchMeta nests the engine's own §4 search.Meta alongside §6's
// stabilization envelope, both under the response's single "meta" key.
type searchMeta struct {
	search.Meta
	Stabilization *Stabilization `json:"stabilization,omitempty"`
}

// SearchResult is search's output: the underlying engine response, with
// every hit carrying a minted candidate_ref and the response envelope
// carrying meta.stabilization.
type SearchResult struct {
	Hits []SearchHitResult `json:"hits"`
	Meta searchMeta        `json:"meta"`
}

func registerSearchTools(reg *Registry, deps *Deps) {
	reg.Register(&Tool{
		Name:        "search",
		Description: "Hybrid full-text search over indexed files, with repo/path/file-type filters and recency boost.",
		Schema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"query"},
			Properties: map[string]*jsonschema.Schema{
				"query":         {Type: "string"},
				"limit":         {Type: "integer"},
				"offset":        {Type: "integer"},
				"repo":          {Type: "string"},
				"path_pattern":  {Type: "string"},
				"file_types":    {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				"recency_boost": {Type: "boolean"},
				"exact_total":   {Type: "boolean", Description: "Compute an exact hit count instead of an approximate one"},
			},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			query, ok := stringArg(args, "query")
			if !ok || query == "" {
				return nil, sarierrors.New(sarierrors.InvalidArgs, "query is required").WithParam("query").WithClientAction(sarierrors.ActionFixArgs)
			}
			req := search.Request{
				Query:        query,
				Limit:        intArg(args, "limit", 0),
				Offset:       intArg(args, "offset", 0),
				Repo:         firstOr(args, "repo"),
				PathPattern:  firstOr(args, "path_pattern"),
				FileTypes:    stringSliceArg(args, "file_types"),
				RecencyBoost: boolArg(args, "recency_boost", false),
				TotalMode:    search.TotalApprox,
			}
			if boolArg(args, "exact_total", false) {
				req.TotalMode = search.TotalExact
			}
			if root := deps.RootID; root != "" {
				req.RootIDs = []types.RootID{root}
			}
			resp, err := deps.Engine.Search(ctx, req)
			if err != nil {
				return nil, err
			}

			hits := make([]SearchHitResult, 0, len(resp.Hits))
			for _, h := range resp.Hits {
				hits = append(hits, SearchHitResult{SearchHit: h, CandidateRef: deps.Session.IssueCandidateRef()})
			}
			return SearchResult{
				Hits: hits,
				Meta: searchMeta{Meta: resp.Meta, Stabilization: okStabilization(deps.Session)},
			}, nil
		},
	})

	reg.Register(&Tool{
		Name:        "search_symbols",
		Description: "Find symbols by exact name within the workspace root, or every symbol defined in a given file.",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {Type: "string", Description: "Exact symbol name to find"},
				"path": {Type: "string", Description: "File path to list symbols for, instead of a name lookup"},
			},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			name, hasName := stringArg(args, "name")
			path, hasPath := stringArg(args, "path")

			var syms []types.Symbol
			var err error
			switch {
			case hasPath && path != "":
				syms, err = deps.Store.SymbolsForFile(ctx, types.DocID(path))
			case hasName && name != "":
				syms, err = deps.Store.FindSymbolsByName(ctx, deps.RootID, name)
			default:
				return nil, sarierrors.New(sarierrors.InvalidArgs, "name or path is required").WithParam("name").WithClientAction(sarierrors.ActionFixArgs)
			}
			if err != nil {
				return nil, err
			}

			out := make([]SymbolResult, 0, len(syms))
			for _, s := range syms {
				out = append(out, SymbolResult{
					SymbolID: string(s.SymbolID), Name: s.Name, Kind: string(s.Kind),
					Path: string(s.Path), Line: s.Line, EndLine: s.EndLine, Qualname: s.Qualname,
				})
			}
			return out, nil
		},
	})
}

func firstOr(args map[string]interface{}, key string) string {
	s, _ := stringArg(args, key)
	return s
}
