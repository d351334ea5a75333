package tools

import (
	"context"

	"github.com/sari-dev/sari/internal/config"
	"github.com/sari-dev/sari/internal/graph"
	"github.com/sari-dev/sari/internal/ingest"
	"github.com/sari-dev/sari/internal/parser"
	"github.com/sari-dev/sari/internal/search"
	"github.com/sari-dev/sari/internal/store"
	"github.com/sari-dev/sari/internal/textindex"
	"github.com/sari-dev/sari/internal/types"
)

// Deps bundles the per-workspace subsystems a tool needs. One Deps is
// built per workspace session (internal/daemon.WorkspaceSession) and
// shared across every Tool's Execute call for that workspace.
type Deps struct {
	Config  *config.Config
	Store   *store.Store
	Index   *textindex.Index
	Engine  *search.Engine
	Parsers *parser.Registry

	// Orchestrator is nil for a session with no attached writer (e.g. a
	// read replica); maintenance tools that mutate the index check for
	// this and fail with NOT_INDEXED rather than panicking.
	Orchestrator *ingest.Orchestrator

	RootID types.RootID

	// Session tracks the read stabilization gate's state (§6/§7/§8):
	// whether search has been called, which candidate_ref tokens it has
	// minted, and the session-wide read budget. Built fresh alongside
	// Deps if the caller leaves it nil.
	Session *Session
}

// Register wires every tool in the §9 surface (Discovery, Search, Read,
// Graph, Maintenance, Knowledge) into reg against deps.
func Register(reg *Registry, deps *Deps) {
	if deps.Session == nil {
		deps.Session = NewSession()
	}
	registerDiscoveryTools(reg, deps)
	registerSearchTools(reg, deps)
	registerReadTools(reg, deps)
	registerGraphTools(reg, deps)
	registerMaintenanceTools(reg, deps)
	registerKnowledgeTools(reg, deps)
}

// relationReader adapts *store.Store to internal/graph.RelationReader.
type relationReader struct{ s *store.Store }

func (r relationReader) RelationsFrom(ctx context.Context, id types.SymbolID) ([]types.Relation, error) {
	return r.s.RelationsFrom(ctx, id)
}

func (r relationReader) RelationsTo(ctx context.Context, id types.SymbolID) ([]types.Relation, error) {
	return r.s.RelationsTo(ctx, id)
}

func (d *Deps) graphReader() graph.RelationReader {
	return relationReader{s: d.Store}
}
