// Package ingest implements §4.4: Collector, Loader, Validator and
// Orchestrator stages plus the bounded scheduling machinery (event bus,
// debounce/coalesce, token bucket, priority queue, workers) that keeps
// Store and TextIndex in sync with the filesystem.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sari-dev/sari/internal/config"
	"github.com/sari-dev/sari/internal/logging"
	"github.com/sari-dev/sari/internal/types"
)

// FileItem is the Collector's lazy stream element, produced before any
// content is read.
type FileItem struct {
	Root       string
	RootID     types.RootID
	AbsPath    string
	RelPath    string
	Repo       string
	Size       int64
	MTime      time.Time
	Ext        string
	Priority   int
	IsExcluded bool
}

// filePriority ranks a file by extension so common source languages are
// processed ahead of docs/config and everything else, mirroring the
// coarse language-family tiers used for parser candidate ranking.
func filePriority(ext string) int {
	switch ext {
	case ".go", ".rs", ".py", ".js", ".ts", ".zig":
		return 10
	case ".java", ".cpp", ".c", ".h":
		return 8
	case ".md", ".txt", ".yaml", ".yml", ".json":
		return 5
	default:
		return 1
	}
}

// Collector walks a root applying include/exclude policy: a file is
// emitted as not excluded only if it matches no Exclude pattern, matches
// at least one Include pattern (when Include is non-empty), and is within
// max_file_bytes (0 = no limit). Directories matching an Exclude pattern
// are pruned. An Include match does not override an Exclude match, and
// there is no separate include_files list.
type Collector struct {
	cfg *config.Config
}

func NewCollector(cfg *config.Config) *Collector {
	return &Collector{cfg: cfg}
}

// Collect walks root and sends FileItems to out. Files outside root are
// never emitted; directories matching an exclude pattern are pruned
// entirely rather than walked.
func (c *Collector) Collect(ctx context.Context, rootID types.RootID, root string, out chan<- FileItem) error {
	visited := make(map[string]bool)

	return filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if walkErr != nil {
			logging.LogIngest("collector: walk error at %s: %v", path, walkErr)
			return nil
		}

		if info.IsDir() {
			if c.cfg.Ingest.FollowSymlinks {
				real, err := filepath.EvalSymlinks(path)
				if err != nil {
					return nil
				}
				if visited[real] {
					return filepath.SkipDir
				}
				visited[real] = true
			}
			if path != root {
				rel, _ := filepath.Rel(root, path)
				rel = filepath.ToSlash(rel)
				if c.excluded(rel) || c.excluded(rel+"/") {
					return filepath.SkipDir
				}
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		item := FileItem{
			Root:     root,
			RootID:   rootID,
			AbsPath:  path,
			RelPath:  rel,
			Repo:     types.Repo(rel),
			Size:     info.Size(),
			MTime:    info.ModTime(),
			Ext:      filepath.Ext(rel),
			Priority: filePriority(filepath.Ext(rel)),
		}
		item.IsExcluded = c.excluded(rel) || !c.included(rel) || c.overSize(info.Size())

		select {
		case out <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

func (c *Collector) excluded(rel string) bool {
	for _, pattern := range c.cfg.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

func (c *Collector) included(rel string) bool {
	if len(c.cfg.Include) == 0 {
		return true
	}
	for _, pattern := range c.cfg.Include {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// overSize enforces max_file_bytes; 0 means unlimited (§8 invariant:
// "max_file_bytes=0: no file is rejected by size alone").
func (c *Collector) overSize(size int64) bool {
	if c.cfg.Ingest.MaxFileBytes == 0 {
		return false
	}
	return size > c.cfg.Ingest.MaxFileBytes
}
