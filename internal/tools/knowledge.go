package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/types"
)

func registerKnowledgeTools(reg *Registry, deps *Deps) {
	reg.Register(&Tool{
		Name:        "save_snippet",
		Description: "Save (or resave) a tagged code snippet. Resaving archives the prior body rather than discarding it.",
		Schema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"tag", "content"},
			Properties: map[string]*jsonschema.Schema{
				"tag":           {Type: "string"},
				"path":          {Type: "string"},
				"start_line":    {Type: "integer"},
				"end_line":      {Type: "integer"},
				"content":       {Type: "string"},
				"content_hash":  {Type: "string"},
				"anchor_before": {Type: "string"},
				"anchor_after":  {Type: "string"},
				"note":          {Type: "string"},
			},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			tag, ok := stringArg(args, "tag")
			if !ok || tag == "" {
				return nil, sarierrors.New(sarierrors.InvalidArgs, "tag is required").WithParam("tag").WithClientAction(sarierrors.ActionFixArgs)
			}
			content, ok := stringArg(args, "content")
			if !ok {
				return nil, sarierrors.New(sarierrors.InvalidArgs, "content is required").WithParam("content").WithClientAction(sarierrors.ActionFixArgs)
			}
			path, _ := stringArg(args, "path")
			anchorBefore, _ := stringArg(args, "anchor_before")
			anchorAfter, _ := stringArg(args, "anchor_after")
			note, _ := stringArg(args, "note")
			contentHash, _ := stringArg(args, "content_hash")

			snip := types.Snippet{
				Tag: tag, Path: types.DocID(path), RootID: deps.RootID,
				StartLine: intArg(args, "start_line", 0), EndLine: intArg(args, "end_line", 0),
				Content: content, ContentHash: contentHash,
				AnchorBefore: anchorBefore, AnchorAfter: anchorAfter, Note: note,
			}
			if err := deps.Store.SaveSnippet(ctx, snip); err != nil {
				return nil, err
			}
			return map[string]interface{}{"tag": tag, "saved": true}, nil
		},
	})

	reg.Register(&Tool{
		Name:        "get_snippet",
		Description: "Fetch a previously saved snippet by tag.",
		Schema: &jsonschema.Schema{
			Type: "object", Required: []string{"tag"},
			Properties: map[string]*jsonschema.Schema{"tag": {Type: "string"}},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return readSnippet(ctx, deps, args)
		},
	})

	reg.Register(&Tool{
		Name:        "archive_context",
		Description: "Mark a knowledge-store topic deprecated, keeping its history queryable.",
		Schema: &jsonschema.Schema{
			Type: "object", Required: []string{"topic"},
			Properties: map[string]*jsonschema.Schema{"topic": {Type: "string"}},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			topic, ok := stringArg(args, "topic")
			if !ok || topic == "" {
				return nil, sarierrors.New(sarierrors.InvalidArgs, "topic is required").WithParam("topic").WithClientAction(sarierrors.ActionFixArgs)
			}
			if err := deps.Store.ArchiveContext(ctx, topic); err != nil {
				return nil, err
			}
			return map[string]interface{}{"topic": topic, "archived": true}, nil
		},
	})

	reg.Register(&Tool{
		Name:        "get_context",
		Description: "Fetch (or save, if content is given) a topic's knowledge-store record.",
		Schema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"topic"},
			Properties: map[string]*jsonschema.Schema{
				"topic":         {Type: "string"},
				"content":       {Type: "string", Description: "If present, the record is saved instead of fetched"},
				"tags":          {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				"related_files": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			topic, ok := stringArg(args, "topic")
			if !ok || topic == "" {
				return nil, sarierrors.New(sarierrors.InvalidArgs, "topic is required").WithParam("topic").WithClientAction(sarierrors.ActionFixArgs)
			}
			if content, hasContent := stringArg(args, "content"); hasContent {
				rec := types.Context{
					Topic: topic, Content: content,
					Tags: stringSliceArg(args, "tags"), RelatedFiles: stringSliceArg(args, "related_files"),
				}
				if err := deps.Store.SaveContext(ctx, rec); err != nil {
					return nil, err
				}
				return map[string]interface{}{"topic": topic, "saved": true}, nil
			}
			rec, err := deps.Store.GetContext(ctx, topic)
			if err != nil {
				return nil, err
			}
			if rec == nil {
				return nil, sarierrors.New(sarierrors.NotIndexed, "no context with that topic").WithParam("topic").WithClientAction(sarierrors.ActionFixArgs)
			}
			return rec, nil
		},
	})
}
