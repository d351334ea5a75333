package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sari-dev/sari/internal/config"
	"github.com/sari-dev/sari/internal/ingest"
	"github.com/sari-dev/sari/internal/parser"
	"github.com/sari-dev/sari/internal/search"
	"github.com/sari-dev/sari/internal/store"
	"github.com/sari-dev/sari/internal/textindex"
	"github.com/sari-dev/sari/internal/tools"
	"github.com/sari-dev/sari/internal/types"
)

// workspaceDataDir is where one workspace's Store and TextIndex persist,
// per store.Open's documented "<workspace>/.sari/store.db" convention.
func workspaceDataDir(root string) string {
	return filepath.Join(root, ".sari")
}

// runtime bundles every subsystem a single workspace daemon wires
// together: the durable Store, the in-memory TextIndex, the Parser
// registry, the Ingest Orchestrator, the Search Engine, and the Tool
// Registry built over all of them. One runtime is built per `daemon
// start` invocation and torn down on graceful shutdown.
type runtime struct {
	cfg      *config.Config
	rootID   types.RootID
	store    *store.Store
	writer   *store.Writer
	index    *textindex.Index
	parsers  *parser.Registry
	orch     *ingest.Orchestrator
	engine   *search.Engine
	registry *tools.Registry
}

// newRuntime wires every subsystem for cfg.Project.Root, opening the
// workspace Store/Writer and registering every known parser. Callers
// must call (*runtime).Close on shutdown.
func newRuntime(cfg *config.Config) (*runtime, error) {
	rootID := types.NewRootID(cfg.Project.Root, cfg.Ingest.FollowSymlinks)

	dataDir := workspaceDataDir(cfg.Project.Root)
	s, err := store.Open(dataDir, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	w, err := store.NewWriter(s)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open writer: %w", err)
	}

	idx := textindex.New(cfg)

	parsers := parser.NewRegistry(5 * time.Second)
	registerParsers(parsers)

	orch := ingest.NewOrchestrator(cfg, parsers, w, idx)
	engine := search.NewEngine(cfg, s, idx)

	reg := tools.NewRegistry()
	tools.Register(reg, &tools.Deps{
		Config:       cfg,
		Store:        s,
		Index:        idx,
		Engine:       engine,
		Parsers:      parsers,
		Orchestrator: orch,
		RootID:       rootID,
	})

	return &runtime{
		cfg:      cfg,
		rootID:   rootID,
		store:    s,
		writer:   w,
		index:    idx,
		parsers:  parsers,
		orch:     orch,
		engine:   engine,
		registry: reg,
	}, nil
}

// registerParsers wires every parser §4.3 ships: the two precise
// language parsers (Go, Zig) and the two heuristic fallbacks. A parser
// whose constructor fails (a missing grammar binding) is skipped with a
// warning rather than aborting startup — the registry's selection
// algorithm degrades to the remaining parsers for that extension.
func registerParsers(reg *parser.Registry) {
	if p, err := parser.NewGoParser(); err == nil {
		reg.Register(p)
	} else {
		uiWarnf("go parser unavailable: %v", err)
	}
	if p, err := parser.NewZigParser(); err == nil {
		reg.Register(p)
	} else {
		uiWarnf("zig parser unavailable: %v", err)
	}
	reg.Register(parser.NewJSParser())
	reg.Register(parser.NewFallbackParser())
}

// Close releases the Store/Writer. The TextIndex and Parser Registry
// hold no external resources.
func (rt *runtime) Close() error {
	if err := rt.writer.Close(); err != nil {
		return err
	}
	return rt.store.Close()
}

// upsertSelf records this workspace's Root row so reads of roots/* see
// a consistent CreatedAt across restarts, creating it on first run.
func (rt *runtime) upsertSelf() error {
	now := time.Now()
	existing, err := rt.store.GetRoot(context.Background(), rt.rootID)
	createdAt := now
	if err == nil && existing != nil {
		createdAt = existing.CreatedAt
	}
	return rt.writer.UpsertRoot(&types.Root{
		RootID:         rt.rootID,
		RootPath:       rt.cfg.Project.Root,
		RealPath:       rt.cfg.Project.Root,
		Label:          rt.cfg.Project.Name,
		State:          types.RootActive,
		FollowSymlinks: rt.cfg.Ingest.FollowSymlinks,
		ConfigSnapshot: rt.cfg.ConfigHash(),
		CreatedAt:      createdAt,
		UpdatedAt:      now,
	})
}
