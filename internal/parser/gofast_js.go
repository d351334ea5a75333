package parser

import (
	"context"

	"github.com/t14raptor/go-fast/ast"
	"github.com/t14raptor/go-fast/parser"

	"github.com/sari-dev/sari/internal/types"
)

// JSParser extracts JavaScript symbols with an AST walk via go-fast.
// It is registered as CategoryHeuristic: go-fast rejects ES module
// syntax and TypeScript, so the registry's fallback chain lets a
// failure here fall through to the line-heuristic parser instead of
// failing the file outright.
type JSParser struct{}

func NewJSParser() *JSParser { return &JSParser{} }

func (p *JSParser) Name() string         { return "gofast-js" }
func (p *JSParser) Extensions() []string { return []string{".js", ".mjs", ".cjs", ".jsx"} }
func (p *JSParser) Category() Category   { return CategoryHeuristic }
func (p *JSParser) Priority() int        { return 50 }

func (p *JSParser) CanHandle(ctx *Context) bool {
	return len(ctx.Content) > 0
}

func (p *JSParser) Parse(_ context.Context, pctx *Context) (ParseResult, error) {
	content := string(pctx.Content)
	program, err := parser.ParseFile(content)
	if err != nil {
		// go-fast doesn't support ES6 modules or TypeScript; the
		// registry falls through to the next candidate on this path.
		return ParseResult{Status: types.ParseFailed, Reason: types.ReasonNoParse,
			Errors: []string{err.Error()}}, nil
	}

	w := &jsWalker{content: content}
	for _, stmt := range program.Body {
		w.visitStatement(stmt.Stmt, pctx, nil)
	}

	return ParseResult{Status: types.ParseOK, Reason: types.ReasonNone, Symbols: w.symbols}, nil
}

type jsWalker struct {
	content string
	symbols []types.Symbol
}

func (w *jsWalker) lineFromIdx(idx int) int {
	line := 1
	for i := 0; i < idx && i < len(w.content); i++ {
		if w.content[i] == '\n' {
			line++
		}
	}
	return line
}

func (w *jsWalker) addSymbol(pctx *Context, name string, kind types.SymbolKind, idx int) {
	if name == "" {
		return
	}
	line := w.lineFromIdx(idx)
	qualname := pctx.Path + "#" + name
	w.symbols = append(w.symbols, types.Symbol{
		SymbolID: types.NewSymbolID(pctx.DocID, qualname),
		RootID:   pctx.RootID,
		Path:     pctx.DocID,
		Name:     name,
		Line:     line,
		EndLine:  line,
		Kind:     kind,
		Qualname: qualname,
	})
}

func (w *jsWalker) visitStatement(stmt ast.Stmt, pctx *Context, parentClass *string) {
	if stmt == nil {
		return
	}
	switch s := stmt.(type) {
	case *ast.FunctionDeclaration:
		if s.Function != nil && s.Function.Name != nil {
			w.addSymbol(pctx, s.Function.Name.Name, types.KindFunction, int(s.Function.Function))
			if s.Function.Body != nil {
				for _, bodyStmt := range s.Function.Body.List {
					w.visitStatement(bodyStmt.Stmt, pctx, nil)
				}
			}
		}

	case *ast.ClassDeclaration:
		if s.Class != nil && s.Class.Name != nil {
			name := s.Class.Name.Name
			w.addSymbol(pctx, name, types.KindClass, int(s.Class.Class))
			for _, element := range s.Class.Body {
				w.visitClassElement(element.Element, pctx, name)
			}
		}

	case *ast.VariableDeclaration:
		for _, decl := range s.List {
			if decl.Target == nil || decl.Target.Target == nil {
				continue
			}
			name := bindingName(decl.Target.Target)
			if name == "" {
				continue
			}
			if decl.Initializer != nil && decl.Initializer.Expr != nil {
				switch init := decl.Initializer.Expr.(type) {
				case *ast.FunctionLiteral:
					w.addSymbol(pctx, name, types.KindFunction, int(s.Idx))
					continue
				case *ast.ArrowFunctionLiteral:
					_ = init
					w.addSymbol(pctx, name, types.KindFunction, int(s.Idx))
					continue
				}
			}
			w.addSymbol(pctx, name, types.KindVariable, int(s.Idx))
		}

	case *ast.BlockStatement:
		for _, bodyStmt := range s.List {
			w.visitStatement(bodyStmt.Stmt, pctx, parentClass)
		}
	}
}

func (w *jsWalker) visitClassElement(element ast.Element, pctx *Context, parentClass string) {
	if element == nil {
		return
	}
	switch e := element.(type) {
	case *ast.MethodDefinition:
		if e.Key != nil && e.Key.Expr != nil {
			name := expressionName(e.Key.Expr)
			if name != "" {
				w.addSymbol(pctx, parentClass+"."+name, types.KindMethod, int(e.Idx))
			}
		}
	case *ast.FieldDefinition:
		if e.Key != nil && e.Key.Expr != nil {
			name := expressionName(e.Key.Expr)
			if name != "" {
				w.addSymbol(pctx, parentClass+"."+name, types.KindVariable, int(e.Idx))
			}
		}
	}
}

func bindingName(target ast.Target) string {
	if ident, ok := target.(*ast.Identifier); ok {
		return ident.Name
	}
	return ""
}

func expressionName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Identifier:
		return e.Name
	case *ast.PrivateIdentifier:
		if e.Identifier != nil {
			return "#" + e.Identifier.Name
		}
	case *ast.StringLiteral:
		return e.Value
	}
	return ""
}
