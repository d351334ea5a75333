package parser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sari-dev/sari/internal/types"
)

// stubParser is a minimal Parser for exercising registry selection
// logic without any real language dependency.
type stubParser struct {
	name     string
	exts     []string
	category Category
	priority int
	handles  func(*Context) bool
	parse    func(context.Context, *Context) (ParseResult, error)
}

func (s *stubParser) Name() string         { return s.name }
func (s *stubParser) Extensions() []string { return s.exts }
func (s *stubParser) Category() Category   { return s.category }
func (s *stubParser) Priority() int        { return s.priority }
func (s *stubParser) CanHandle(ctx *Context) bool {
	if s.handles != nil {
		return s.handles(ctx)
	}
	return true
}
func (s *stubParser) Parse(ctx context.Context, pctx *Context) (ParseResult, error) {
	return s.parse(ctx, pctx)
}

func ok(name string) *stubParser {
	return &stubParser{name: name, exts: []string{".go"}, category: CategoryLanguage, priority: 100,
		parse: func(context.Context, *Context) (ParseResult, error) {
			return ParseResult{Status: types.ParseOK}, nil
		}}
}

func TestRegistry_SelectsLanguageOverHeuristic(t *testing.T) {
	r := NewRegistry(time.Second)
	lang := ok("lang")
	heur := &stubParser{name: "heur", exts: []string{".go"}, category: CategoryHeuristic, priority: 999,
		parse: func(context.Context, *Context) (ParseResult, error) {
			return ParseResult{Status: types.ParseOK}, nil
		}}
	r.Register(heur)
	r.Register(lang)

	candidates := r.candidates("main.go")
	require.Len(t, candidates, 2)
	assert.Equal(t, "lang", candidates[0].Name())
}

func TestRegistry_HigherPriorityWinsWithinCategory(t *testing.T) {
	r := NewRegistry(time.Second)
	low := &stubParser{name: "low", exts: []string{".go"}, category: CategoryLanguage, priority: 10,
		parse: func(context.Context, *Context) (ParseResult, error) { return ParseResult{Status: types.ParseOK}, nil }}
	high := &stubParser{name: "high", exts: []string{".go"}, category: CategoryLanguage, priority: 90,
		parse: func(context.Context, *Context) (ParseResult, error) { return ParseResult{Status: types.ParseOK}, nil }}
	r.Register(low)
	r.Register(high)

	candidates := r.candidates("main.go")
	require.Len(t, candidates, 2)
	assert.Equal(t, "high", candidates[0].Name())
}

func TestRegistry_RegistrationOrderBreaksTies(t *testing.T) {
	r := NewRegistry(time.Second)
	first := &stubParser{name: "first", exts: []string{".go"}, category: CategoryLanguage, priority: 50,
		parse: func(context.Context, *Context) (ParseResult, error) { return ParseResult{Status: types.ParseOK}, nil }}
	second := &stubParser{name: "second", exts: []string{".go"}, category: CategoryLanguage, priority: 50,
		parse: func(context.Context, *Context) (ParseResult, error) { return ParseResult{Status: types.ParseOK}, nil }}
	r.Register(first)
	r.Register(second)

	candidates := r.candidates("main.go")
	require.Len(t, candidates, 2)
	assert.Equal(t, "first", candidates[0].Name())
}

func TestRegistry_CanHandleFiltersCandidates(t *testing.T) {
	r := NewRegistry(time.Second)
	refuses := &stubParser{name: "refuses", exts: []string{".go"}, category: CategoryLanguage, priority: 100,
		handles: func(*Context) bool { return false },
		parse:   func(context.Context, *Context) (ParseResult, error) { return ParseResult{Status: types.ParseOK}, nil }}
	accepts := &stubParser{name: "accepts", exts: []string{".go"}, category: CategoryLanguage, priority: 10,
		parse: func(context.Context, *Context) (ParseResult, error) { return ParseResult{Status: types.ParseOK, Symbols: []types.Symbol{{Name: "x"}}}, nil }}
	r.Register(refuses)
	r.Register(accepts)

	res := r.Dispatch(context.Background(), &Context{Path: "main.go", Content: []byte("x")})
	require.Len(t, res.Symbols, 1)
	assert.Equal(t, "x", res.Symbols[0].Name)
}

func TestRegistry_FallsThroughOnFailure(t *testing.T) {
	r := NewRegistry(time.Second)
	fails := &stubParser{name: "fails", exts: []string{".go"}, category: CategoryLanguage, priority: 100,
		parse: func(context.Context, *Context) (ParseResult, error) {
			return ParseResult{Status: types.ParseFailed, Reason: types.ReasonError}, nil
		}}
	succeeds := &stubParser{name: "succeeds", exts: []string{".go"}, category: CategoryHeuristic, priority: 10,
		parse: func(context.Context, *Context) (ParseResult, error) {
			return ParseResult{Status: types.ParseOK, Symbols: []types.Symbol{{Name: "fallback"}}}, nil
		}}
	r.Register(fails)
	r.Register(succeeds)

	res := r.Dispatch(context.Background(), &Context{Path: "main.go", Content: []byte("x")})
	require.Len(t, res.Symbols, 1)
	assert.Equal(t, "fallback", res.Symbols[0].Name)
}

func TestRegistry_AllCandidatesFailMarksFailed(t *testing.T) {
	r := NewRegistry(time.Second)
	fails := &stubParser{name: "fails", exts: []string{".go"}, category: CategoryLanguage, priority: 100,
		parse: func(context.Context, *Context) (ParseResult, error) {
			return ParseResult{Status: types.ParseFailed, Reason: types.ReasonError, Errors: []string{"boom"}}, nil
		}}
	r.Register(fails)

	res := r.Dispatch(context.Background(), &Context{Path: "main.go", Content: []byte("x")})
	assert.Equal(t, types.ParseFailed, res.Status)
	assert.Contains(t, res.Errors, "fails: boom")
}

func TestRegistry_WildcardParserMatchesEveryExtension(t *testing.T) {
	r := NewRegistry(time.Second)
	fallback := &stubParser{name: "fallback", exts: nil, category: CategoryHeuristic, priority: 0,
		parse: func(context.Context, *Context) (ParseResult, error) {
			return ParseResult{Status: types.ParseOK, Symbols: []types.Symbol{{Name: "wild"}}}, nil
		}}
	r.Register(fallback)

	res := r.Dispatch(context.Background(), &Context{Path: "weird.xyz", Content: []byte("x")})
	require.Len(t, res.Symbols, 1)
	assert.Equal(t, "wild", res.Symbols[0].Name)
}

func TestRegistry_TimeoutIsolatesSlowParser(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	slow := &stubParser{name: "slow", exts: []string{".go"}, category: CategoryLanguage, priority: 100,
		parse: func(ctx context.Context, _ *Context) (ParseResult, error) {
			select {
			case <-time.After(time.Second):
				return ParseResult{Status: types.ParseOK}, nil
			case <-ctx.Done():
				return ParseResult{}, ctx.Err()
			}
		}}
	r.Register(slow)

	start := time.Now()
	res := r.Dispatch(context.Background(), &Context{Path: "main.go", Content: []byte("x")})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, types.ParseFailed, res.Status)
}

func TestRegistry_PanicIsolatedAsFailure(t *testing.T) {
	r := NewRegistry(time.Second)
	panics := &stubParser{name: "panics", exts: []string{".go"}, category: CategoryLanguage, priority: 100,
		parse: func(context.Context, *Context) (ParseResult, error) {
			panic("boom")
		}}
	r.Register(panics)

	res := r.Dispatch(context.Background(), &Context{Path: "main.go", Content: []byte("x")})
	assert.Equal(t, types.ParseFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "panicked")
}
