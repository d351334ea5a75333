// Package mcp exposes internal/tools.Registry over the Model Context
// Protocol, for clients that speak MCP directly rather than
// internal/gateway's line/Content-Length JSON-RPC, grounded on the
// teacher's internal/mcp/server.go mcp.NewServer/AddTool wiring.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sari-dev/sari/internal/logging"
	"github.com/sari-dev/sari/internal/tools"
)

// Server adapts every tool in a Registry into one MCP tool, registered
// once at construction time.
type Server struct {
	inner *mcp.Server
}

// NewServer builds an MCP server exposing every tool currently
// registered in reg. Tools registered after this call are not picked
// up — callers build the Registry fully (internal/tools.Register)
// before constructing the Server.
func NewServer(reg *tools.Registry, name, version string) *Server {
	inner := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)

	for _, t := range reg.List() {
		t := t
		inner.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Schema,
		}, handlerFor(reg, t.Name))
	}

	return &Server{inner: inner}
}

// handlerFor adapts a Registry.Invoke call into the
// func(ctx, *mcp.CallToolRequest) (*mcp.CallToolResult, error) shape
// the SDK expects, decoding req.Params.Arguments into the
// map[string]interface{} every Tool.Execute takes.
func handlerFor(reg *tools.Registry, name string) func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args map[string]interface{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(fmt.Errorf("invalid arguments for %s: %w", name, err)), nil
			}
		}

		result, err := reg.Invoke(ctx, name, args)
		if err != nil {
			logging.LogMCP("tool %s failed: %v", name, err)
			return errorResult(err), nil
		}

		content, err := json.Marshal(result)
		if err != nil {
			return errorResult(fmt.Errorf("marshal result for %s: %w", name, err)), nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(content)}}}, nil
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

// Run serves the MCP protocol over stdio until ctx is cancelled or the
// transport errors — stdout must not carry any other writer once this
// is called, per internal/logging's StdioMode contract.
func (s *Server) Run(ctx context.Context) error {
	logging.SetStdioMode(true)
	return s.inner.Run(ctx, &mcp.StdioTransport{})
}
