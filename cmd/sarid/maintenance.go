package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"
)

// doctorCommand reports the retry backlog of the running daemon,
// dispatched against the already-unified "doctor" tool rather than
// reimplementing failed-task bookkeeping in the CLI.
func doctorCommand() *cli.Command {
	return &cli.Command{
		Name:   "doctor",
		Usage:  "Report indexing health: retry backlog and surfaced failures",
		Action: runToolCommand("doctor", nil),
	}
}

// rescanCommand asks the running daemon to walk its workspace root and
// re-enqueue every file, without opening a second Store/Writer.
func rescanCommand() *cli.Command {
	return &cli.Command{
		Name:   "rescan",
		Usage:  "Walk the workspace root and re-enqueue every file for indexing",
		Action: runToolCommand("rescan", nil),
	}
}

// scanOnceCommand asks the running daemon to synchronously drain its
// current work queue once, useful for scripted "index then exit" runs.
func scanOnceCommand() *cli.Command {
	return &cli.Command{
		Name:   "scan-once",
		Usage:  "Drain the current work queue once, processing every queued item",
		Action: runToolCommand("scan_once", nil),
	}
}

// runToolCommand builds a cli.ActionFunc that resolves the running
// daemon for the global --root and invokes tool with the given static
// args (nil meaning no arguments), printing the result as JSON.
func runToolCommand(tool string, args map[string]interface{}) cli.ActionFunc {
	return func(c *cli.Context) error {
		gf := globalsFrom(c)
		client, err := resolveDaemon(gf.root)
		if err != nil {
			return err
		}
		result, err := client.invoke(context.Background(), tool, args)
		if err != nil {
			return err
		}
		return printToolResult(result)
	}
}

func printToolResult(result interface{}) error {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
