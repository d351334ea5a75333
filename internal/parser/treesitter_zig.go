package parser

import (
	"context"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"

	"github.com/sari-dev/sari/internal/types"
)

// zigQuery mirrors goQuery's shape for Zig's function and container
// (struct/enum/union) declarations.
const zigQuery = `
(function_declaration name: (identifier) @function.name) @function
(variable_declaration
	name: (identifier) @type.name
	(container_declaration)) @type
`

// ZigParser is the second tree-sitter language parser in the registry,
// grounded on the same query-cursor idiom as GoParser.
type ZigParser struct {
	language *tree_sitter.Language
	query    *tree_sitter.Query
}

// NewZigParser builds the Zig tree-sitter parser and compiles its query.
func NewZigParser() (*ZigParser, error) {
	lang := tree_sitter.NewLanguage(tree_sitter_zig.Language())
	query, queryErr := tree_sitter.NewQuery(lang, zigQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	return &ZigParser{language: lang, query: query}, nil
}

func (p *ZigParser) Name() string         { return "treesitter-zig" }
func (p *ZigParser) Extensions() []string { return []string{".zig"} }
func (p *ZigParser) Category() Category   { return CategoryLanguage }
func (p *ZigParser) Priority() int        { return 100 }

func (p *ZigParser) CanHandle(ctx *Context) bool {
	return len(ctx.Content) > 0
}

func (p *ZigParser) Parse(_ context.Context, pctx *Context) (ParseResult, error) {
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
	names := make(map[string]string, 2)

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
			case "type":
				symbols = append(symbols, newSymbol(pctx, names["type.name"], types.KindStruct, startLine, endLine, node, pctx.Content))
			}
		}
	}

	return ParseResult{Status: types.ParseOK, Reason: types.ReasonNone, Symbols: symbols}, nil
}
