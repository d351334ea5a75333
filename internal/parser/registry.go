// Package parser implements §4.3: an ordered registry of language and
// heuristic parsers that deterministically select and invoke a parser
// for a (path, content, language_hint) tuple.
package parser

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/sari-dev/sari/internal/types"
)

// Category distinguishes a precise language parser from a best-effort
// heuristic one; language always outranks heuristic in selection.
type Category int

const (
	CategoryLanguage Category = iota
	CategoryHeuristic
)

// ParseResult is the pure output of a Parser invocation: the symbols
// and relations found plus the outcome status, per §4.3 "Responsibility".
type ParseResult struct {
	Status    types.ParseStatus
	Reason    types.ParseReason
	Symbols   []types.Symbol
	Relations []types.Relation
	Errors    []string
}

// Context is the read-only input handed to a Parser. Parsers must not
// read any file other than Content, per §4.3 "Parser purity".
type Context struct {
	Path         string // rel_path
	Content      []byte
	LanguageHint string
	DocID        types.DocID
	RootID       types.RootID
}

// Parser is a stateless, side-effect-free capability that extracts
// symbols/relations from one file's content. Implementations must be
// safe for concurrent use by multiple goroutines.
type Parser interface {
	Name() string
	Extensions() []string
	Category() Category
	Priority() int
	CanHandle(ctx *Context) bool
	Parse(ctx context.Context, pctx *Context) (ParseResult, error)
}

// Registry holds every registered Parser and implements the
// deterministic selection algorithm of §4.3 "Selection rules".
type Registry struct {
	byExt       map[string][]Parser
	wildcard    []Parser // parsers with no Extensions(), tried for every path
	order       map[Parser]int // registration order, for tie-breaks
	timeout     time.Duration
	registeredN int
}

// NewRegistry returns an empty Registry. timeout bounds each Parse call
// per §4.3 "must complete within a bounded time ... budget".
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Registry{
		byExt:   make(map[string][]Parser),
		order:   make(map[Parser]int),
		timeout: timeout,
	}
}

// Register adds p for each of its extensions, in registration order.
// A parser that returns no Extensions() is treated as a wildcard and
// is considered a candidate for every path — this is how the
// line-heuristic fallback parser participates in selection.
func (r *Registry) Register(p Parser) {
	r.order[p] = r.registeredN
	r.registeredN++
	exts := p.Extensions()
	if len(exts) == 0 {
		r.wildcard = append(r.wildcard, p)
		return
	}
	for _, ext := range exts {
		r.byExt[ext] = append(r.byExt[ext], p)
	}
}

// candidates returns parsers registered for path's extension plus any
// wildcard parsers, ordered by category (language before heuristic),
// then priority desc, then registration order — steps 1, 3 and 4 of
// the selection algorithm.
func (r *Registry) candidates(path string) []Parser {
	ext := filepath.Ext(path)
	list := append([]Parser(nil), r.byExt[ext]...)
	list = append(list, r.wildcard...)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Category() != list[j].Category() {
			return list[i].Category() < list[j].Category()
		}
		if list[i].Priority() != list[j].Priority() {
			return list[i].Priority() > list[j].Priority()
		}
		return r.order[list[i]] < r.order[list[j]]
	})
	return list
}

// Dispatch selects and invokes a parser for pctx, applying the
// fallback chain of §4.3 rule 5: on failure, try the next candidate in
// the same category; if all language parsers fail, fall through to
// heuristic parsers; if those fail too, mark parse_status=failed.
func (r *Registry) Dispatch(ctx context.Context, pctx *Context) ParseResult {
	candidates := r.candidates(pctx.Path)

	var filtered []Parser
	for _, p := range candidates {
		if p.CanHandle(pctx) { // step 2: can_handle filter
			filtered = append(filtered, p)
		}
	}

	var lastErrs []string
	for _, p := range filtered {
		res, err := r.invoke(ctx, p, pctx)
		if err == nil && res.Status != types.ParseFailed {
			return res
		}
		if err != nil {
			lastErrs = append(lastErrs, p.Name()+": "+err.Error())
		} else {
			lastErrs = append(lastErrs, res.Errors...)
		}
	}

	return ParseResult{
		Status: types.ParseFailed,
		Reason: types.ReasonError,
		Errors: lastErrs,
	}
}

// invoke runs p.Parse under the registry's timeout budget, so a
// misbehaving parser cannot stall the ingest worker that calls it.
func (r *Registry) invoke(ctx context.Context, p Parser, pctx *Context) (ParseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		res ParseResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: errRecovered(rec)}
			}
		}()
		res, err := p.Parse(ctx, pctx)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return ParseResult{}, ctx.Err()
	}
}
