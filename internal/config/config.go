// Package config loads and merges Sari's KDL configuration: global
// (~/.sari.kdl) and per-workspace (.sari.kdl) files, enriched with
// detected build-artifact exclusions.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sari-dev/sari/internal/types"
)

// Config is the fully resolved configuration for one workspace root.
type Config struct {
	Version int
	Project Project
	Ingest  Ingest
	Store   Store
	Index   TextIndexCfg
	Search  Search
	Daemon  Daemon
	Registry Registry

	Include []string
	Exclude []string
}

// Project identifies the workspace root this config applies to.
type Project struct {
	Root string
	Name string
}

// Ingest mirrors §4.4 Collector/Loader/scheduling knobs.
type Ingest struct {
	MaxFileBytes        int64
	MaxTotalSizeMB      int64
	MaxFileCount        int
	FollowSymlinks      bool
	RespectGitignore    bool
	WatchMode           bool
	DebounceMinMs       int
	DebounceMaxMs       int
	GitCheckoutDebounceMs int
	CoalesceShards      int
	TokenBucketCapacity int
	TokenBucketRefillPerSec int
	WorkerConcurrency   int // 0 = auto-detect min(cpu-2, 8)
	QueueHighWatermark  int
	QueueLowWatermark   int
	DecodePolicy        string // "strong" | "ignore"
	AllowMetadataOnlyOK bool
}

// Store mirrors §4.1 knobs.
type Store struct {
	CommitBatchSize   int
	ReaderPoolSize    int
	MaxSingleReadLines int
	GCGraceHours      int
	IdleCheckpointSec int

	// MaxReadsPerSession and MaxTotalReadLines are the §8 session-wide
	// read budget: once either is exceeded, a read without a
	// candidate_ref/precision-read fails BUDGET_EXCEEDED rather than
	// being served.
	MaxReadsPerSession int
	MaxTotalReadLines  int
}

// TextIndexCfg mirrors §4.2 knobs.
type TextIndexCfg struct {
	MaxDocBytes   int64
	ReaderReloadMs int
}

// Search mirrors §4.5 knobs plus the ranking weights from the Open
// Question decision recorded in DESIGN.md.
type Search struct {
	DefaultLimit      int
	MaxLimit          int
	MaxPaginationDepth int
	Ranking           RankWeights
}

// RankWeights are the configurable weights of the TextIndex ranking
// formula bm25_like * recency_factor * structural_boost * exact_token_bonus.
type RankWeights struct {
	RecencyHalfLifeDays float64
	StructuralBoost     float64
	ExactTokenBonus     float64
	CodeFileBoost       float64
	DocFilePenalty      float64
	ConfigFileBoost     float64
}

// Daemon mirrors §4.7 lifecycle knobs.
type Daemon struct {
	IdleSec        int
	DrainTimeoutSec int
	GraceSec       int
	HeartbeatMs    int
	RollbackStrikeCount int
}

// Registry mirrors §4.6 knobs.
type Registry struct {
	StrictSSOT bool
}

// Default returns the built-in baseline configuration for root, used
// when neither a global nor project KDL file is present.
func Default(root string) *Config {
	cfg := &Config{
		Version: 2,
		Project: Project{Root: root},
		Ingest: Ingest{
			MaxFileBytes:          types.DefaultMaxFileBytes,
			MaxTotalSizeMB:        types.DefaultMaxTotalSizeMB,
			MaxFileCount:          types.DefaultMaxFileCount,
			FollowSymlinks:        false,
			RespectGitignore:      true,
			WatchMode:             true,
			DebounceMinMs:         50,
			DebounceMaxMs:         500,
			GitCheckoutDebounceMs: 3000,
			CoalesceShards:        16,
			TokenBucketCapacity:   512,
			TokenBucketRefillPerSec: 128,
			WorkerConcurrency:     0,
			QueueHighWatermark:    4096,
			QueueLowWatermark:     1024,
			DecodePolicy:          "strong",
			AllowMetadataOnlyOK:   false,
		},
		Store: Store{
			CommitBatchSize:    types.DefaultCommitBatchSize,
			ReaderPoolSize:     types.DefaultReaderPoolSize,
			MaxSingleReadLines: 300,
			GCGraceHours:       24,
			IdleCheckpointSec:  30,
			MaxReadsPerSession: 25,
			MaxTotalReadLines:  2500,
		},
		Index: TextIndexCfg{
			MaxDocBytes:    types.DefaultMaxDocBytes,
			ReaderReloadMs: types.DefaultReaderReloadMs,
		},
		Search: Search{
			DefaultLimit:       20,
			MaxLimit:           200,
			MaxPaginationDepth: 1000,
			Ranking: RankWeights{
				RecencyHalfLifeDays: 30,
				StructuralBoost:     1.5,
				ExactTokenBonus:     2.0,
				CodeFileBoost:       50.0,
				DocFilePenalty:      -20.0,
				ConfigFileBoost:     10.0,
			},
		},
		Daemon: Daemon{
			IdleSec:             600,
			DrainTimeoutSec:     45,
			GraceSec:            10,
			HeartbeatMs:         2000,
			RollbackStrikeCount: 3,
		},
		Registry: Registry{StrictSSOT: true},
		Include:  []string{},
		Exclude:  append([]string{}, defaultExcludes...),
	}
	if cfg.Ingest.WorkerConcurrency == 0 {
		cfg.Ingest.WorkerConcurrency = workerConcurrencyDefault()
	}
	cfg.EnrichExclusionsWithBuildArtifacts()
	return cfg
}

func workerConcurrencyDefault() int {
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	if n > 8 {
		n = 8
	}
	return n
}

var defaultExcludes = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/.venv/**",
	"**/venv/**",
	"**/__pycache__/**",
	"**/vendor/**",
	"**/dist/**",
	"**/build/**",
	"**/target/**",
	"**/.cache/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/Thumbs.db",
	"**/desktop.ini",
	"**/logs/**",
	"**/*.log",
}

// Load resolves the effective config for root: global ~/.sari.kdl merged
// with the project's .sari.kdl, falling back to Default when neither
// exists.
func Load(root string) (*Config, error) {
	var base *Config
	if home, err := os.UserHomeDir(); err == nil {
		if g, err := LoadKDL(home); err == nil && g != nil {
			base = g
		}
	}

	project, err := LoadKDL(root)
	if err != nil {
		return nil, err
	}

	switch {
	case base != nil && project != nil:
		return mergeConfigs(base, project), nil
	case project != nil:
		return project, nil
	case base != nil:
		base.Project.Root = root
		return base, nil
	default:
		abs, err := filepath.Abs(root)
		if err != nil {
			abs = root
		}
		return Default(abs), nil
	}
}

// mergeConfigs merges a global base config with a project config: the
// project config wins wholesale except Exclude, which is the
// deduplicated union of both, and Include, which keeps base's list only
// when the project specifies none.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		seen := make(map[string]bool, len(base.Exclude)+len(project.Exclude))
		out := make([]string, 0, len(base.Exclude)+len(project.Exclude))
		for _, p := range base.Exclude {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
		for _, p := range project.Exclude {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
		merged.Exclude = out
	}

	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}

// EnrichExclusionsWithBuildArtifacts detects language build-output
// directories under Project.Root and appends them to Exclude.
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	if c.Project.Root == "" {
		return
	}
	detected := NewBuildArtifactDetector(c.Project.Root).DetectOutputDirectories()
	if len(detected) == 0 {
		return
	}
	c.Exclude = DeduplicatePatterns(append(c.Exclude, detected...))
}

// ConfigHash returns a stable, unhashed string summary of the ranking
// weights in effect. The daemon stores it as the root's config_snapshot;
// it is not folded into index_version or engine_state.config_hash.
func (c *Config) ConfigHash() string {
	r := c.Search.Ranking
	return fmt.Sprintf("recency=%.4f|struct=%.4f|exact=%.4f|code=%.4f|doc=%.4f|cfg=%.4f",
		r.RecencyHalfLifeDays, r.StructuralBoost, r.ExactTokenBonus,
		r.CodeFileBoost, r.DocFilePenalty, r.ConfigFileBoost)
}
