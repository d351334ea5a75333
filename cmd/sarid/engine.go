package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	sarierrors "github.com/sari-dev/sari/internal/errors"
)

// engineCommand inspects and rebuilds the TextIndex engine of a running
// daemon. Sari's TextIndex is an in-process structure (no separate
// engine binary to install), so "install" and "rebuild" both resolve to
// a full rescan — the only difference is the user-facing intent.
func engineCommand() *cli.Command {
	return &cli.Command{
		Name:  "engine",
		Usage: "Inspect or rebuild the TextIndex engine",
		Subcommands: []*cli.Command{
			{Name: "status", Usage: "Report index version and document count", Action: runToolCommand("status", nil)},
			{Name: "install", Usage: "Build the index for a workspace that has never been scanned", Action: runToolCommand("rescan", nil)},
			{Name: "rebuild", Usage: "Discard and rebuild the index from a full rescan", Action: runToolCommand("rescan", nil)},
			{Name: "verify", Usage: "Check the index is present and consistent", Action: runEngineVerify},
		},
	}
}

// runEngineVerify dials the "status" tool and classifies the result:
// an index with zero documents is ERR_ENGINE_UNAVAILABLE/INDEX_MISSING,
// per §7's engine-reason taxonomy, rather than a silent empty report.
func runEngineVerify(c *cli.Context) error {
	gf := globalsFrom(c)
	client, err := resolveDaemon(gf.root)
	if err != nil {
		return err
	}
	result, err := client.invoke(context.Background(), "status", nil)
	if err != nil {
		return err
	}

	status, ok := result.(map[string]interface{})
	if !ok {
		return fmt.Errorf("unexpected status response shape")
	}
	docCount, _ := status["doc_count"].(float64)
	indexVersion, _ := status["index_version"].(string)

	if docCount == 0 || indexVersion == "" {
		return sarierrors.New(sarierrors.ErrEngineUnavailable, "index has no documents yet").
			WithEngineReason(sarierrors.EngineIndexMissing).
			WithClientAction(sarierrors.ActionReindex)
	}
	return printToolResult(result)
}
