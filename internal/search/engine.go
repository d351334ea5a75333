package search

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sari-dev/sari/internal/config"
	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/store"
	"github.com/sari-dev/sari/internal/textindex"
	"github.com/sari-dev/sari/internal/types"
)

// Engine is the hybrid Search Engine of §4.5: it merges a TextIndex
// snapshot with Store-side constraints (root scoping, repo, path
// pattern, file type) and policy (pagination depth, recency boost).
type Engine struct {
	cfg   *config.Config
	store *store.Store
	index *textindex.Index
	fuzzy fuzzyMatcher
}

// NewEngine builds a Search Engine bound to s and idx.
func NewEngine(cfg *config.Config, s *store.Store, idx *textindex.Index) *Engine {
	return &Engine{cfg: cfg, store: s, index: idx, fuzzy: newFuzzyMatcher(0.82)}
}

// Search executes req against the current index snapshot, returning a
// deterministically ordered, paginated response.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return nil, sarierrors.New(sarierrors.InvalidArgs, "query must not be empty").WithParam("query")
	}

	req = e.applyDefaults(req)

	allowed, err := e.resolveAllowedRoots(ctx, req.RootIDs)
	if err != nil {
		return nil, err
	}

	reader := e.index.Snapshot()
	terms := textindex.TokenizeQuery(req.Query)

	weights := e.cfg.Search.Ranking
	if !req.RecencyBoost {
		weights.RecencyHalfLifeDays = 0
	}

	rawHits := reader.Query(terms, weights, 0)
	hitReason := "text_match"
	if len(rawHits) == 0 {
		rawHits, hitReason = e.fuzzyFallback(reader, req.Query)
	}

	filtered := make([]textindex.Hit, 0, len(rawHits))
	for _, h := range rawHits {
		meta, ok := reader.DocMeta(h.DocID)
		if !ok {
			continue
		}
		if !e.passesFilters(meta, allowed, req) {
			continue
		}
		filtered = append(filtered, h)
	}

	total := -1
	if req.TotalMode == TotalExact {
		total = len(filtered)
	}

	deepWarn := req.Offset+req.Limit > e.cfg.Search.MaxPaginationDepth

	page := paginate(filtered, req.Offset, req.Limit)

	hits := make([]SearchHit, 0, len(page))
	for _, h := range page {
		hit, err := e.buildHit(ctx, reader, h, req, hitReason)
		if err != nil {
			continue
		}
		hits = append(hits, hit)
	}

	return &Response{
		Hits: hits,
		Meta: Meta{
			Total:              total,
			TotalMode:          req.TotalMode,
			Engine:             "sari-hybrid",
			LatencyMs:          time.Since(start).Milliseconds(),
			IndexVersion:       reader.IndexVersion(),
			DeepPaginationWarn: deepWarn,
		},
	}, nil
}

func (e *Engine) applyDefaults(req Request) Request {
	if req.Limit <= 0 {
		req.Limit = e.cfg.Search.DefaultLimit
	}
	if req.Limit > e.cfg.Search.MaxLimit {
		req.Limit = e.cfg.Search.MaxLimit
	}
	if req.SnippetLines <= 0 {
		req.SnippetLines = 3
	}
	if req.TotalMode == "" {
		req.TotalMode = TotalExact
	}
	return req
}

// resolveAllowedRoots intersects req with the daemon's active roots.
// An explicit, non-empty req.RootIDs that shares nothing with the
// active set is out of scope entirely, per §4.5.
func (e *Engine) resolveAllowedRoots(ctx context.Context, requested []types.RootID) (map[types.RootID]bool, error) {
	active, err := e.store.ListActiveRoots(ctx)
	if err != nil {
		return nil, sarierrors.Wrap(sarierrors.DBError, "list active roots", err)
	}
	activeSet := make(map[types.RootID]bool, len(active))
	for _, r := range active {
		activeSet[r.RootID] = true
	}
	if len(requested) == 0 {
		return activeSet, nil
	}
	out := make(map[types.RootID]bool)
	for _, r := range requested {
		if activeSet[r] {
			out[r] = true
		}
	}
	if len(out) == 0 {
		return nil, sarierrors.New(sarierrors.ErrRootOutOfScope, "requested root_ids are not active").
			WithClientAction(sarierrors.ActionNarrowScope)
	}
	return out, nil
}

// passesFilters applies root scope, repo, file_types, path_pattern and
// exclude_patterns, per §4.5 "Filter semantics": categories AND, within
// a category OR.
func (e *Engine) passesFilters(meta textindex.DocMeta, allowed map[types.RootID]bool, req Request) bool {
	if !allowed[meta.RootID] {
		return false
	}
	if req.Repo != "" && repoOf(meta.RelPath) != req.Repo {
		return false
	}
	if len(req.FileTypes) > 0 && !containsExt(req.FileTypes, meta.FileType) {
		return false
	}
	if req.PathPattern != "" && !matchesAnyCandidate(req.PathPattern, meta) {
		return false
	}
	for _, pattern := range req.ExcludePatterns {
		if matchesAnyCandidate(pattern, meta) {
			return false
		}
	}
	return true
}

// repoOf is the first path segment, or "__root__" for a top-level file.
func repoOf(relPath string) string {
	idx := strings.IndexByte(relPath, '/')
	if idx < 0 {
		return "__root__"
	}
	return relPath[:idx]
}

func containsExt(fileTypes []string, ext string) bool {
	for _, ft := range fileTypes {
		if ft == ext {
			return true
		}
	}
	return false
}

// matchesAnyCandidate runs fnmatch semantics over the three candidates
// named in §4.5: rel_path, root_id/rel_path, and first-segment-stripped
// rel_path.
func matchesAnyCandidate(pattern string, meta textindex.DocMeta) bool {
	candidates := []string{
		meta.RelPath,
		string(meta.RootID) + "/" + meta.RelPath,
		stripFirstSegment(meta.RelPath),
	}
	for _, c := range candidates {
		if ok, _ := doublestar.Match(pattern, c); ok {
			return true
		}
	}
	return false
}

func stripFirstSegment(relPath string) string {
	idx := strings.IndexByte(relPath, '/')
	if idx < 0 {
		return relPath
	}
	return relPath[idx+1:]
}

func paginate(hits []textindex.Hit, offset, limit int) []textindex.Hit {
	if offset >= len(hits) {
		return nil
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return hits[offset:end]
}

// fuzzyFallback is tried when the exact AND-match over the inverted
// index returns nothing: it scores every indexed path against the raw
// query string and returns near-miss documents, letting a typo or
// partial filename still surface a result.
func (e *Engine) fuzzyFallback(reader *textindex.Reader, query string) ([]textindex.Hit, string) {
	var hits []textindex.Hit
	for _, meta := range reader.AllDocs() {
		base := basename(meta.RelPath)
		if e.fuzzy.matches(query, base) {
			hits = append(hits, textindex.Hit{
				DocID:      meta.DocID,
				Score:      e.fuzzy.similarity(query, base),
				MatchCount: 1,
			})
		}
	}
	return hits, "fuzzy_match"
}

func basename(relPath string) string {
	idx := strings.LastIndexByte(relPath, '/')
	if idx < 0 {
		return relPath
	}
	return relPath[idx+1:]
}

// buildHit assembles the response-facing SearchHit for one TextIndex
// hit: snippet extraction and context_symbol/docstring attachment read
// through to Store.
func (e *Engine) buildHit(ctx context.Context, reader *textindex.Reader, h textindex.Hit, req Request, reason string) (SearchHit, error) {
	meta, _ := reader.DocMeta(h.DocID)

	hit := SearchHit{
		DocID:      h.DocID,
		Repo:       repoOf(meta.RelPath),
		Path:       string(h.DocID),
		Score:      h.Score,
		MTime:      meta.MTime.UTC().Format(time.RFC3339),
		FileType:   meta.FileType,
		MatchCount: h.MatchCount,
		HitReason:  reason,
	}

	res, err := e.store.ReadFile(ctx, h.DocID, int64(e.cfg.Store.MaxSingleReadLines)*200)
	if err != nil {
		return hit, nil // filters already confirmed scope; a stale doc just ships without a body
	}
	hit.Size = res.File.Size
	hit.Snippet = extractSnippet(string(res.Content), req.Query, req.SnippetLines)

	if syms, err := e.store.SymbolsForFile(ctx, h.DocID); err == nil {
		if sym := symbolContaining(syms, hit.Snippet); sym != nil {
			hit.ContextSymbol = sym.Qualname
			hit.Docstring = sym.Docstring
		}
	}

	return hit, nil
}

// extractSnippet returns up to contextLines of text around the first
// line containing any token of query.
func extractSnippet(content, query string, contextLines int) string {
	lines := splitLines(content)
	needle := strings.ToLower(strings.Fields(query)[0])
	matchLine := -1
	for i, l := range lines {
		if strings.Contains(strings.ToLower(l), needle) {
			matchLine = i
			break
		}
	}
	if matchLine < 0 {
		matchLine = 0
	}
	start := matchLine - contextLines
	if start < 0 {
		start = 0
	}
	end := matchLine + contextLines + 1
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}

func splitLines(content string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

// symbolContaining returns the last symbol whose declaration text
// appears to precede the snippet, a cheap proxy for "which function is
// this hit inside" without re-parsing.
func symbolContaining(syms []types.Symbol, snippet string) *types.Symbol {
	var best *types.Symbol
	for i := range syms {
		if strings.Contains(snippet, syms[i].Name) {
			best = &syms[i]
		}
	}
	return best
}
