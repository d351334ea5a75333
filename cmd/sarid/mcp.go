package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/sari-dev/sari/internal/mcp"
	"github.com/sari-dev/sari/internal/version"
)

// mcpCommand serves the workspace's Tool Registry over MCP stdio,
// for editor/agent clients that speak MCP directly rather than going
// through a running daemon's gateway. It owns its own runtime (and
// thus the workspace's Store writer) for the lifetime of the stdio
// session, so it must not be run concurrently with `sarid daemon
// start` against the same workspace.
func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:   "mcp",
		Usage:  "Serve this workspace's tools over MCP stdio",
		Action: runMCP,
	}
}

func runMCP(c *cli.Context) error {
	gf := globalsFrom(c)
	cfg, err := loadWorkspaceConfig(gf)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.upsertSelf(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(rt.registry, "sarid", version.Version)
	return server.Run(ctx)
}
