package parser

import (
	"bufio"
	"bytes"
	"context"
	"regexp"

	"github.com/sari-dev/sari/internal/types"
)

// declPattern recognizes common function/method/class/struct/interface
// declaration lines across C-like and Python-like languages well enough
// for a best-effort outline when no language parser claimed the file.
var declPattern = regexp.MustCompile(
	`^\s*(?:export\s+|public\s+|private\s+|static\s+|async\s+)*` +
		`(?:func|function|def|class|struct|interface|type|fn)\s+([A-Za-z_][A-Za-z0-9_]*)`,
)

// FallbackParser is the parser of last resort: registered for no
// specific extension, it matches every path via CanHandle and is
// always tried last within CategoryHeuristic because it registers
// with the lowest priority. It never fails — every file it sees
// produces ParseOK, possibly with zero symbols.
type FallbackParser struct{}

func NewFallbackParser() *FallbackParser { return &FallbackParser{} }

func (p *FallbackParser) Name() string         { return "line-heuristic" }
func (p *FallbackParser) Extensions() []string { return nil } // wildcard: Registry treats no-extensions as match-all
func (p *FallbackParser) Category() Category   { return CategoryHeuristic }
func (p *FallbackParser) Priority() int        { return 0 }

func (p *FallbackParser) CanHandle(ctx *Context) bool {
	return len(ctx.Content) > 0 && !looksBinary(ctx.Content)
}

func (p *FallbackParser) Parse(_ context.Context, pctx *Context) (ParseResult, error) {
	var symbols []types.Symbol

	scanner := bufio.NewScanner(bytes.NewReader(pctx.Content))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		m := declPattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		name := m[1]
		qualname := pctx.Path + "#" + name
		symbols = append(symbols, types.Symbol{
			SymbolID: types.NewSymbolID(pctx.DocID, qualname),
			RootID:   pctx.RootID,
			Path:     pctx.DocID,
			Name:     name,
			Line:     line,
			EndLine:  line,
			Kind:     types.KindOther,
			Qualname: qualname,
		})
	}

	return ParseResult{Status: types.ParseOK, Reason: types.ReasonNoParse, Symbols: symbols}, nil
}

// looksBinary applies the conventional NUL-byte-in-first-8KB heuristic.
func looksBinary(content []byte) bool {
	n := len(content)
	if n > 8192 {
		n = 8192
	}
	return bytes.IndexByte(content[:n], 0) >= 0
}
