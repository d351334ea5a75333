package tools

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/ingest"
	"github.com/sari-dev/sari/internal/types"
)

// DoctorReport is doctor's output: the retry backlog plus the count of
// items that have crossed the surfaced-failure threshold.
type DoctorReport struct {
	PendingFailed  int               `json:"pending_failed_tasks"`
	SurfacedFailed int               `json:"surfaced_failed_tasks"`
	FailedTasks    []DoctorFailedRow `json:"failed_tasks"`
}

type DoctorFailedRow struct {
	Path       string `json:"path"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error"`
	LastFailed string `json:"last_failed"`
}

func registerMaintenanceTools(reg *Registry, deps *Deps) {
	reg.Register(&Tool{
		Name:        "index_file",
		Description: "(Re)index a single file by relative path, bypassing a full rescan.",
		Schema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"path"},
			Properties: map[string]*jsonschema.Schema{
				"path": {Type: "string", Description: "Path relative to the workspace root"},
			},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			if deps.Orchestrator == nil {
				return nil, sarierrors.New(sarierrors.NotIndexed, "no writer attached to this session").WithClientAction(sarierrors.ActionReindex)
			}
			rel, ok := stringArg(args, "path")
			if !ok || rel == "" {
				return nil, sarierrors.New(sarierrors.InvalidArgs, "path is required").WithParam("path").WithClientAction(sarierrors.ActionFixArgs)
			}

			root := deps.Config.Project.Root
			abs := filepath.Join(root, filepath.FromSlash(rel))
			info, err := os.Stat(abs)
			if err != nil {
				return nil, sarierrors.Wrap(sarierrors.IOError, "stat file", err)
			}

			item := ingest.FileItem{
				Root: root, RootID: deps.RootID, AbsPath: abs, RelPath: rel,
				Repo: types.Repo(rel), Size: info.Size(), MTime: info.ModTime(),
				Ext: filepath.Ext(rel),
			}
			if err := deps.Orchestrator.ProcessOne(ctx, item); err != nil {
				return nil, err
			}
			return map[string]interface{}{"path": rel, "reindexed": true}, nil
		},
	})

	reg.Register(&Tool{
		Name:        "rescan",
		Description: "Walk the workspace root and (re)enqueue every file for indexing.",
		Schema:      &jsonschema.Schema{Type: "object"},
		Execute: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
			if deps.Orchestrator == nil {
				return nil, sarierrors.New(sarierrors.NotIndexed, "no writer attached to this session").WithClientAction(sarierrors.ActionReindex)
			}
			if err := deps.Orchestrator.ScanRoot(ctx, deps.RootID, deps.Config.Project.Root); err != nil {
				return nil, err
			}
			return map[string]interface{}{"queued": deps.Orchestrator.Queue().Depth()}, nil
		},
	})

	reg.Register(&Tool{
		Name:        "scan_once",
		Description: "Drain the current work queue once, processing every queued item synchronously.",
		Schema:      &jsonschema.Schema{Type: "object"},
		Execute: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
			if deps.Orchestrator == nil {
				return nil, sarierrors.New(sarierrors.NotIndexed, "no writer attached to this session").WithClientAction(sarierrors.ActionReindex)
			}
			processed := 0
			for {
				work, ok := deps.Orchestrator.Queue().Pop()
				if !ok {
					break
				}
				if err := deps.Orchestrator.ProcessOne(ctx, work.Item); err != nil {
					return nil, err
				}
				processed++
			}
			return map[string]interface{}{"processed": processed}, nil
		},
	})

	reg.Register(&Tool{
		Name:        "doctor",
		Description: "Report the retry backlog and items that have crossed the surfaced-failure threshold.",
		Schema:      &jsonschema.Schema{Type: "object"},
		Execute: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
			tasks, err := deps.Store.ListFailedTasks(ctx, time.Now())
			if err != nil {
				return nil, err
			}
			surfaced, err := deps.Store.CountSurfacedFailures(ctx)
			if err != nil {
				return nil, err
			}
			rows := make([]DoctorFailedRow, 0, len(tasks))
			for _, t := range tasks {
				rows = append(rows, DoctorFailedRow{
					Path: string(t.Path), Attempts: t.Attempts, Error: t.Error,
					LastFailed: t.LastFailed.Format(time.RFC3339),
				})
			}
			return DoctorReport{PendingFailed: len(tasks), SurfacedFailed: surfaced, FailedTasks: rows}, nil
		},
	})
}
