package parser

import (
	"context"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"

	"github.com/sari-dev/sari/internal/types"
)

// goQuery captures top-level functions, methods and type declarations —
// the reference-language query shape every other tree-sitter parser in
// this registry follows.
const goQuery = `
(function_declaration name: (identifier) @function.name) @function
(method_declaration
	receiver: (parameter_list) @method.receiver
	name: (field_identifier) @method.name) @method
(type_declaration
	(type_spec name: (type_identifier) @type.name)) @type
`

// GoParser is the reference-language tree-sitter parser: category
// language, priority above any heuristic fallback for .go files.
type GoParser struct {
	language *tree_sitter.Language
	query    *tree_sitter.Query
}

// NewGoParser builds the Go tree-sitter parser and compiles its query
// once at construction so Parse calls never recompile it.
func NewGoParser() (*GoParser, error) {
	lang := tree_sitter.NewLanguage(tree_sitter_go.Language())
	query, queryErr := tree_sitter.NewQuery(lang, goQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	return &GoParser{language: lang, query: query}, nil
}

func (p *GoParser) Name() string          { return "treesitter-go" }
func (p *GoParser) Extensions() []string  { return []string{".go"} }
func (p *GoParser) Category() Category    { return CategoryLanguage }
func (p *GoParser) Priority() int         { return 100 }

func (p *GoParser) CanHandle(ctx *Context) bool {
	return len(ctx.Content) > 0
}

func (p *GoParser) Parse(_ context.Context, pctx *Context) (ParseResult, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(p.language); err != nil {
		return ParseResult{}, err
	}

	tree := parser.Parse(pctx.Content, nil)
	if tree == nil {
		return ParseResult{Status: types.ParseFailed, Reason: types.ReasonError}, nil
	}
	defer tree.Close()

	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()

	matches := qc.Matches(p.query, tree.RootNode(), pctx.Content)
	captureNames := p.query.CaptureNames()

	var symbols []types.Symbol
	var relations []types.Relation
	names := make(map[string]string, 4)

	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for k := range names {
			delete(names, k)
		}
		for _, c := range match.Captures {
			name := captureNames[c.Index]
			if strings.HasSuffix(name, ".name") {
				names[name] = string(pctx.Content[c.Node.StartByte():c.Node.EndByte()])
			}
		}
		for _, c := range match.Captures {
			name := captureNames[c.Index]
			node := c.Node
			startLine := int(node.StartPosition().Row) + 1
			endLine := int(node.EndPosition().Row) + 1

			switch name {
			case "function":
				symbols = append(symbols, newSymbol(pctx, names["function.name"], types.KindFunction, startLine, endLine, node, pctx.Content))
			case "method":
				symbols = append(symbols, newSymbol(pctx, names["method.name"], types.KindMethod, startLine, endLine, node, pctx.Content))
			case "type":
				symbols = append(symbols, newSymbol(pctx, names["type.name"], types.KindStruct, startLine, endLine, node, pctx.Content))
			}
		}
	}

	status := types.ParseOK
	reason := types.ReasonNone
	if len(symbols) == 0 {
		status = types.ParseOK // a file with no top-level decls is still valid
	}

	return ParseResult{Status: status, Reason: reason, Symbols: symbols, Relations: relations}, nil
}

func newSymbol(pctx *Context, name string, kind types.SymbolKind, startLine, endLine int, node tree_sitter.Node, content []byte) types.Symbol {
	qualname := name
	if pctx.Path != "" {
		qualname = pctx.Path + "#" + name
	}
	return types.Symbol{
		SymbolID: types.NewSymbolID(pctx.DocID, qualname),
		RootID:   pctx.RootID,
		Path:     pctx.DocID,
		Name:     name,
		Line:     startLine,
		EndLine:  endLine,
		Kind:     kind,
		Content:  string(content[node.StartByte():node.EndByte()]),
		Qualname: qualname,
	}
}
