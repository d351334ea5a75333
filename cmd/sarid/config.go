package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/sari-dev/sari/internal/config"
	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/ui"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show, validate, or scaffold the workspace's .sari.kdl",
		Subcommands: []*cli.Command{
			{Name: "show", Usage: "Print the effective resolved config as JSON", Action: runConfigShow},
			{Name: "validate", Usage: "Load and validate the effective config", Action: runConfigValidate},
			{Name: "init", Usage: "Write a default .sari.kdl in the workspace root", Action: runConfigInit},
		},
	}
}

func runConfigShow(c *cli.Context) error {
	gf := globalsFrom(c)
	cfg, err := loadWorkspaceConfig(gf)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runConfigValidate(c *cli.Context) error {
	gf := globalsFrom(c)
	cfg, err := loadWorkspaceConfig(gf)
	if err != nil {
		return err
	}
	ui.Successf("config for %s is valid (worker_concurrency=%d)", cfg.Project.Root, cfg.Ingest.WorkerConcurrency)
	return nil
}

// runConfigInit scaffolds a default .sari.kdl matching the defaults
// config.Default already assumes, so the written file is documentation
// a user can edit rather than a requirement to run at all.
func runConfigInit(c *cli.Context) error {
	gf := globalsFrom(c)
	path := filepath.Join(gf.root, ".sari.kdl")

	if _, err := os.Stat(path); err == nil {
		return sarierrors.New(sarierrors.InvalidArgs, fmt.Sprintf("%s already exists", path)).
			WithClientAction(sarierrors.ActionFixArgs)
	}

	def := config.Default(gf.root)
	if err := os.WriteFile(path, []byte(defaultConfigKDL(def)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	ui.Successf("wrote %s", path)
	return nil
}

func defaultConfigKDL(cfg *config.Config) string {
	return fmt.Sprintf(`project {
    name %q
}

ingest {
    max_file_bytes %d
    max_total_size_mb %d
    follow_symlinks %v
    respect_gitignore %v
    watch_mode %v
    worker_concurrency %d
}

daemon {
    idle_sec %d
    grace_sec %d
    heartbeat_ms %d
}

registry {
    strict_ssot %v
}
`,
		filepath.Base(cfg.Project.Root),
		cfg.Ingest.MaxFileBytes,
		cfg.Ingest.MaxTotalSizeMB,
		cfg.Ingest.FollowSymlinks,
		cfg.Ingest.RespectGitignore,
		cfg.Ingest.WatchMode,
		cfg.Ingest.WorkerConcurrency,
		cfg.Daemon.IdleSec,
		cfg.Daemon.GraceSec,
		cfg.Daemon.HeartbeatMs,
		cfg.Registry.StrictSSOT,
	)
}
