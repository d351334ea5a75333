// Command sarid is the Sari daemon and CLI: it starts and supervises
// the always-on workspace daemon (`daemon start|stop|status`), drives
// maintenance operations against a running daemon (`doctor`, `rescan`,
// `scan-once`), and inspects the TextIndex engine and effective config
// (`engine ...`, `config ...`), in cmd/lci/main.go's
// urfave/cli/v2 command-tree idiom.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/sari-dev/sari/internal/config"
	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/ui"
	"github.com/sari-dev/sari/internal/version"
)

// globalFlags is resolved once in Before and threaded through every
// command via cli.Context.App.Metadata, in cmd/lci/main.go's
// loadConfigWithOverrides helper generalized across every subcommand
// instead of being re-run ad hoc per command.
type globalFlags struct {
	root    string
	include []string
	exclude []string
	quiet   bool
	noColor bool
	json    bool
}

func main() {
	app := &cli.App{
		Name:                   "sarid",
		Usage:                  "Sari: a local always-on code-intelligence daemon",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Usage: "Workspace root (defaults to cwd)"},
			&cli.StringSliceFlag{Name: "include", Usage: "Include glob patterns"},
			&cli.StringSliceFlag{Name: "exclude", Usage: "Exclude glob patterns"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Suppress progress output"},
			&cli.BoolFlag{Name: "no-color", Usage: "Disable colored output"},
			&cli.BoolFlag{Name: "json", Usage: "Emit machine-readable JSON instead of decorated text"},
		},
		Before: func(c *cli.Context) error {
			root := c.String("root")
			if root == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				root = wd
			}
			abs, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolve root %q: %w", root, err)
			}

			gf := &globalFlags{
				root:    abs,
				include: c.StringSlice("include"),
				exclude: c.StringSlice("exclude"),
				quiet:   c.Bool("quiet") || c.Bool("json"),
				noColor: c.Bool("no-color"),
				json:    c.Bool("json"),
			}
			ui.Init(gf.noColor)
			c.App.Metadata["global"] = gf
			return nil
		},
		Commands: []*cli.Command{
			daemonCommand(),
			doctorCommand(),
			rescanCommand(),
			scanOnceCommand(),
			engineCommand(),
			configCommand(),
			mcpCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		ui.Error(err.Error())
		if se, ok := err.(*sarierrors.Error); ok && se.Hint != "" {
			ui.Infof("hint: %s", se.Hint)
		}
		os.Exit(exitCodeFor(err))
	}
}

// globalsFrom recovers the globalFlags resolved in Before.
func globalsFrom(c *cli.Context) *globalFlags {
	return c.App.Metadata["global"].(*globalFlags)
}

// loadWorkspaceConfig loads and validates the effective config for the
// resolved workspace root, applying any --include/--exclude overrides.
func loadWorkspaceConfig(gf *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(gf.root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if len(gf.include) > 0 {
		cfg.Include = gf.include
	}
	if len(gf.exclude) > 0 {
		cfg.Exclude = append(cfg.Exclude, gf.exclude...)
	}
	cfg.Project.Root = gf.root
	cfg.EnrichExclusionsWithBuildArtifacts()

	if err := config.NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func uiWarnf(format string, args ...interface{}) {
	ui.Warningf(format, args...)
}
