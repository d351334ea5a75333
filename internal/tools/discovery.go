package tools

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// repoOf returns the first path segment of a workspace-relative path,
// used to group list_files/repo_candidates output in a multi-repo
// workspace (RelPath has no separate repo field of its own).
func repoOf(relPath string) string {
	if i := strings.IndexByte(relPath, '/'); i >= 0 {
		return relPath[:i]
	}
	return relPath
}

// StatusResult is status's output.
type StatusResult struct {
	IndexVersion  string `json:"index_version"`
	DocCount      int64  `json:"doc_count"`
	RootPath      string `json:"root_path"`
	PendingFailed int    `json:"pending_failed_tasks"`

	// IndexReady is true once the first commit has landed: a non-empty
	// index version and at least one indexed doc. §8's seed scenarios
	// poll this rather than doc_count directly, since a commit can land
	// an index_version before every doc in it is individually queryable.
	IndexReady bool `json:"index_ready"`
}

// FileEntry is one row of list_files.
type FileEntry struct {
	Path  string `json:"path"`
	Repo  string `json:"repo"`
	MTime string `json:"mtime"`
}

func registerDiscoveryTools(reg *Registry, deps *Deps) {
	reg.Register(&Tool{
		Name:        "status",
		Description: "Report index version, document count, and pending-failure backlog for this workspace.",
		Schema:      &jsonschema.Schema{Type: "object"},
		Execute: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
			state, err := deps.Store.GetEngineState(ctx)
			if err != nil {
				return nil, err
			}
			pending, err := deps.Store.ListFailedTasks(ctx, time.Now())
			if err != nil {
				return nil, err
			}
			return StatusResult{
				IndexVersion:  state.IndexVersion,
				DocCount:      state.DocCount,
				RootPath:      deps.Config.Project.Root,
				PendingFailed: len(pending),
				IndexReady:    state.DocCount > 0 && state.IndexVersion != "",
			}, nil
		},
	})

	reg.Register(&Tool{
		Name:        "list_files",
		Description: "List indexed files for this workspace, optionally filtered by repo (first path segment) or a substring of the path.",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"repo":   {Type: "string", Description: "Restrict to one repo (top-level path segment)"},
				"filter": {Type: "string", Description: "Substring the path must contain"},
				"max":    {Type: "integer", Description: "Maximum rows to return (default 200)"},
			},
		},
		Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			repo, _ := stringArg(args, "repo")
			filter, _ := stringArg(args, "filter")
			max := intArg(args, "max", 200)

			entries, err := listFiles(ctx, deps, repo, filter, max)
			if err != nil {
				return nil, err
			}
			return entries, nil
		},
	})

	reg.Register(&Tool{
		Name:        "repo_candidates",
		Description: "List the distinct repo names (top-level path segments) discoverable across indexed files, for disambiguating a multi-repo workspace.",
		Schema:      &jsonschema.Schema{Type: "object"},
		Execute: func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
			entries, err := listFiles(ctx, deps, "", "", len(deps.Index.Snapshot().AllDocs()))
			if err != nil {
				return nil, err
			}
			seen := map[string]bool{}
			var repos []string
			for _, e := range entries {
				if !seen[e.Repo] {
					seen[e.Repo] = true
					repos = append(repos, e.Repo)
				}
			}
			sort.Strings(repos)
			return repos, nil
		},
	})
}

// listFiles enumerates a workspace's indexed files via a snapshot of the
// text index's document metadata rather than a direct Store scan, since
// the index already holds every live doc's path/mtime in memory and a
// Reader is a stable point-in-time view.
func listFiles(_ context.Context, deps *Deps, repo, filter string, max int) ([]FileEntry, error) {
	if max <= 0 {
		max = 200
	}
	var out []FileEntry
	for _, meta := range deps.Index.Snapshot().AllDocs() {
		r := repoOf(meta.RelPath)
		if repo != "" && r != repo {
			continue
		}
		if filter != "" && !strings.Contains(meta.RelPath, filter) {
			continue
		}
		out = append(out, FileEntry{Path: meta.RelPath, Repo: r, MTime: meta.MTime.Format("2006-01-02T15:04:05Z07:00")})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}
