// Package search implements §4.5: the hybrid Search Engine that merges
// TextIndex results with Store-side filters and policy.
package search

import "github.com/sari-dev/sari/internal/types"

// TotalMode selects how Meta.Total is computed.
type TotalMode string

const (
	TotalExact  TotalMode = "exact"
	TotalApprox TotalMode = "approx"
)

// Request is the Search Engine's request contract.
type Request struct {
	Query           string
	Limit           int
	Offset          int
	Repo            string
	RootIDs         []types.RootID
	FileTypes       []string
	PathPattern     string
	ExcludePatterns []string
	SnippetLines    int
	RecencyBoost    bool
	TotalMode       TotalMode
}

// SearchHit is one ranked result.
type SearchHit struct {
	DocID         types.DocID
	Repo          string
	Path          string
	Score         float64
	Snippet       string
	MTime         string
	Size          int64
	MatchCount    int
	FileType      string
	HitReason     string
	ContextSymbol string
	Docstring     string
	Metadata      map[string]string
}

// Meta carries the response-level facts callers need alongside
// the hit list.
type Meta struct {
	Total              int
	TotalMode          TotalMode
	Engine             string
	LatencyMs          int64
	IndexVersion       string
	DeepPaginationWarn bool
}

// Response is the Search Engine's full response contract.
type Response struct {
	Hits []SearchHit
	Meta Meta
}
