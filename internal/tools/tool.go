// Package tools implements §9's tool capability model: every operation
// a client can invoke (Discovery, Search, Read, Graph, Maintenance,
// Knowledge) is a Tool — a name, a JSON Schema, and an Execute function
// — registered once in a Registry and shared by both transports
// (internal/gateway's line/Content-Length JSON-RPC and internal/mcp's
// MCP stdio server), following a registerTools/AddTool
// idiom in internal/mcp/server.go.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	sarierrors "github.com/sari-dev/sari/internal/errors"
)

// Tool is one invokable operation. Execute receives already-decoded
// arguments (a map, matching Schema) and returns a result value that
// the caller marshals to JSON (or derives a PACK line from, via
// EncodePack).
type Tool struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Execute     func(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Registry is the shared, name-keyed tool set both transports dispatch
// through.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds t, replacing any existing tool of the same name — the
// last registration wins, matching AddTool's semantics.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Get returns the tool named name, or (nil, false).
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool, sorted by name for deterministic
// discovery responses.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke looks up name and runs it against args, translating an
// unknown tool name into a structured INVALID_ARGS error rather than a
// bare "not found" string, per §7's error taxonomy.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, sarierrors.New(sarierrors.InvalidArgs, fmt.Sprintf("unknown tool %q", name)).
			WithParam("tool").WithClientAction(sarierrors.ActionFixArgs)
	}
	return t.Execute(ctx, args)
}

// stringArg reads a required or optional string argument.
func stringArg(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// intArg reads an optional integer argument, tolerating the
// float64-from-JSON representation that map[string]interface{}
// decoding produces.
func intArg(args map[string]interface{}, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

func boolArg(args map[string]interface{}, key string, def bool) bool {
	v, ok := args[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func stringSliceArg(args map[string]interface{}, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
