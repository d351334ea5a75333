package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/pmezard/go-difflib/difflib"

	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/types"
)

// ReadResult is read's unified output across every mode.
type ReadResult struct {
	Mode          string       `json:"mode"`
	Path          string       `json:"path,omitempty"`
	SymbolID      string       `json:"symbol_id,omitempty"`
	Tag           string       `json:"tag,omitempty"`
	Content       string       `json:"content,omitempty"`
	TextTruncated bool         `json:"text_truncated,omitempty"`
	Diff          string       `json:"diff,omitempty"`
	Meta          ResponseMeta `json:"meta"`
}

const defaultReadMaxBytes = 1 << 20 // 1MiB, per §4 "configurable byte cap" default

func registerReadTools(reg *Registry, deps *Deps) {
	unified := &Tool{
		Name:        "read",
		Description: "Unified read across modes: file | symbol | snippet | diff_preview.",
		Schema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"mode"},
			Properties: map[string]*jsonschema.Schema{
				"mode":          {Type: "string", Description: "file | symbol | snippet | diff_preview"},
				"path":          {Type: "string"},
				"symbol_id":     {Type: "string"},
				"tag":           {Type: "string"},
				"max_bytes":     {Type: "integer"},
				"new_text":      {Type: "string", Description: "Proposed replacement content, for diff_preview"},
				"candidate_ref": {Type: "string", Description: "A candidate_ref minted by a prior search hit this session; required unless this is a precision read"},
				"start_line":    {Type: "integer", Description: "Precision-read: 1-indexed start line (with end_line, bypasses the candidate_ref gate)"},
				"end_line":      {Type: "integer", Description: "Precision-read: 1-indexed end line, inclusive; span capped at 200 lines"},
			},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			mode, _ := stringArg(args, "mode")
			switch mode {
			case "file":
				return readFile(ctx, deps, args)
			case "symbol":
				return readSymbol(ctx, deps, args)
			case "snippet":
				return readSnippet(ctx, deps, args)
			case "diff_preview":
				return readDiffPreview(ctx, deps, args)
			default:
				return nil, sarierrors.New(sarierrors.InvalidArgs, "mode must be one of file, symbol, snippet, diff_preview").
					WithParam("mode").WithClientAction(sarierrors.ActionFixArgs)
			}
		},
	}
	reg.Register(unified)

	// Legacy wrappers, thin per §6.
	reg.Register(&Tool{
		Name: "read_file", Description: "Thin wrapper over read(mode=file).",
		Schema: &jsonschema.Schema{Type: "object", Required: []string{"path"}, Properties: map[string]*jsonschema.Schema{
			"path": {Type: "string"}, "max_bytes": {Type: "integer"},
			"candidate_ref": {Type: "string"}, "start_line": {Type: "integer"}, "end_line": {Type: "integer"},
		}},
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return readFile(ctx, deps, args) },
	})
	reg.Register(&Tool{
		Name: "read_symbol", Description: "Thin wrapper over read(mode=symbol).",
		Schema: &jsonschema.Schema{Type: "object", Required: []string{"symbol_id"}, Properties: map[string]*jsonschema.Schema{
			"symbol_id": {Type: "string"}, "candidate_ref": {Type: "string"},
		}},
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return readSymbol(ctx, deps, args) },
	})
	reg.Register(&Tool{
		Name: "get_snippet", Description: "Thin wrapper over read(mode=snippet).",
		Schema: &jsonschema.Schema{Type: "object", Required: []string{"tag"}, Properties: map[string]*jsonschema.Schema{
			"tag": {Type: "string"}, "candidate_ref": {Type: "string"},
		}},
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return readSnippet(ctx, deps, args) },
	})
	reg.Register(&Tool{
		Name: "dry_run_diff", Description: "Thin wrapper over read(mode=diff_preview).",
		Schema: &jsonschema.Schema{Type: "object", Required: []string{"path", "new_text"}, Properties: map[string]*jsonschema.Schema{
			"path": {Type: "string"}, "new_text": {Type: "string"}, "candidate_ref": {Type: "string"},
		}},
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return readDiffPreview(ctx, deps, args) },
	})
}

func readFile(ctx context.Context, deps *Deps, args map[string]interface{}) (interface{}, error) {
	path, ok := stringArg(args, "path")
	if !ok || path == "" {
		return nil, sarierrors.New(sarierrors.InvalidArgs, "path is required").WithParam("path").WithClientAction(sarierrors.ActionFixArgs)
	}
	maxBytes := int64(intArg(args, "max_bytes", defaultReadMaxBytes))
	candidateRef, _ := stringArg(args, "candidate_ref")
	precision, start, end := precisionReadRange(args)

	if err := gateRead(deps, candidateRef, precision); err != nil {
		return nil, err
	}

	res, err := deps.Store.ReadFile(ctx, types.DocID(path), maxBytes)
	if err != nil {
		return nil, err
	}
	content := string(res.Content)
	truncated := res.TextTruncated

	if precision {
		content = sliceLines(content, start, end)
		deps.Session.RecordRead(end - start + 1)
		return ReadResult{Mode: "file", Path: path, Content: content, TextTruncated: truncated,
			Meta: ResponseMeta{Stabilization: okStabilization(deps.Session)}}, nil
	}

	maxLines := deps.Config.Store.MaxSingleReadLines
	lines := countLines(content)
	if maxLines > 0 && lines > maxLines {
		content = sliceLines(content, 1, maxLines)
		truncated = true
		deps.Session.RecordRead(maxLines)
		return ReadResult{Mode: "file", Path: path, Content: content, TextTruncated: truncated,
			Meta: ResponseMeta{Stabilization: softLimitStabilization(deps.Session, maxLines)}}, nil
	}

	deps.Session.RecordRead(lines)
	return ReadResult{Mode: "file", Path: path, Content: content, TextTruncated: truncated,
		Meta: ResponseMeta{Stabilization: okStabilization(deps.Session)}}, nil
}

func readSymbol(ctx context.Context, deps *Deps, args map[string]interface{}) (interface{}, error) {
	symbolID, ok := stringArg(args, "symbol_id")
	if !ok || symbolID == "" {
		return nil, sarierrors.New(sarierrors.InvalidArgs, "symbol_id is required").WithParam("symbol_id").WithClientAction(sarierrors.ActionFixArgs)
	}
	candidateRef, _ := stringArg(args, "candidate_ref")
	if err := gateRead(deps, candidateRef, false); err != nil {
		return nil, err
	}

	sym, err := deps.Store.GetSymbol(ctx, types.SymbolID(symbolID))
	if err != nil {
		return nil, err
	}
	deps.Session.RecordRead(countLines(sym.Content))
	return ReadResult{Mode: "symbol", SymbolID: symbolID, Path: string(sym.Path), Content: sym.Content,
		Meta: ResponseMeta{Stabilization: okStabilization(deps.Session)}}, nil
}

func readSnippet(ctx context.Context, deps *Deps, args map[string]interface{}) (interface{}, error) {
	tag, ok := stringArg(args, "tag")
	if !ok || tag == "" {
		return nil, sarierrors.New(sarierrors.InvalidArgs, "tag is required").WithParam("tag").WithClientAction(sarierrors.ActionFixArgs)
	}
	candidateRef, _ := stringArg(args, "candidate_ref")
	if err := gateRead(deps, candidateRef, false); err != nil {
		return nil, err
	}

	snip, err := deps.Store.GetSnippet(ctx, tag)
	if err != nil {
		return nil, err
	}
	if snip == nil {
		return nil, sarierrors.New(sarierrors.NotIndexed, "no snippet with that tag").WithParam("tag").WithClientAction(sarierrors.ActionFixArgs)
	}
	deps.Session.RecordRead(countLines(snip.Content))
	return ReadResult{Mode: "snippet", Tag: tag, Path: string(snip.Path), Content: snip.Content,
		Meta: ResponseMeta{Stabilization: okStabilization(deps.Session)}}, nil
}

// readDiffPreview renders a unified diff between a file's current
// content and a proposed replacement, without writing anything — a
// read-only preview a caller can inspect before driving an actual edit
// through the ingest path.
func readDiffPreview(ctx context.Context, deps *Deps, args map[string]interface{}) (interface{}, error) {
	path, ok := stringArg(args, "path")
	if !ok || path == "" {
		return nil, sarierrors.New(sarierrors.InvalidArgs, "path is required").WithParam("path").WithClientAction(sarierrors.ActionFixArgs)
	}
	newText, ok := stringArg(args, "new_text")
	if !ok {
		return nil, sarierrors.New(sarierrors.InvalidArgs, "new_text is required").WithParam("new_text").WithClientAction(sarierrors.ActionFixArgs)
	}
	candidateRef, _ := stringArg(args, "candidate_ref")
	if err := gateRead(deps, candidateRef, false); err != nil {
		return nil, err
	}

	res, err := deps.Store.ReadFile(ctx, types.DocID(path), 0)
	if err != nil {
		return nil, err
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(res.Content)),
		B:        difflib.SplitLines(newText),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return nil, sarierrors.Wrap(sarierrors.IOError, "render diff", err)
	}
	deps.Session.RecordRead(countLines(text))
	return ReadResult{Mode: "diff_preview", Path: path, Diff: text,
		Meta: ResponseMeta{Stabilization: okStabilization(deps.Session)}}, nil
}
