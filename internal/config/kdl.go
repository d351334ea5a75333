package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

const configFileName = ".sari.kdl"

// LoadKDL loads .sari.kdl from projectRoot. Returns (nil, nil) when the
// file does not exist.
func LoadKDL(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, configFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", configFileName, err)
	}

	cfg, err := parseKDL(string(content), projectRoot)
	if err != nil {
		return nil, err
	}

	if cfg.Project.Root == "" {
		abs, err := filepath.Abs(projectRoot)
		if err != nil {
			abs = projectRoot
		}
		cfg.Project.Root = abs
	} else if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(projectRoot, cfg.Project.Root))
	}

	return cfg, nil
}

func parseKDL(content, projectRoot string) (*Config, error) {
	cfg := Default(projectRoot)
	cfg.Exclude = nil // an explicit exclude block, if present, replaces defaults

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", configFileName, err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "ingest":
			parseIngest(cfg, n)
		case "store":
			parseStore(cfg, n)
		case "index":
			parseIndex(cfg, n)
		case "search":
			parseSearch(cfg, n)
		case "daemon":
			parseDaemon(cfg, n)
		case "registry":
			for _, cn := range n.Children {
				if nodeName(cn) == "strict_ssot" {
					if b, ok := firstBoolArg(cn); ok {
						cfg.Registry.StrictSSOT = b
					}
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			cfg.Exclude = collectStringArgs(n)
		}
	}

	if cfg.Exclude == nil {
		cfg.Exclude = append([]string{}, defaultExcludes...)
	}
	cfg.EnrichExclusionsWithBuildArtifacts()
	return cfg, nil
}

func parseIngest(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "max_file_bytes":
			if v, ok := firstIntArg(cn); ok {
				cfg.Ingest.MaxFileBytes = int64(v)
			}
		case "max_total_size_mb":
			if v, ok := firstIntArg(cn); ok {
				cfg.Ingest.MaxTotalSizeMB = int64(v)
			}
		case "max_file_count":
			if v, ok := firstIntArg(cn); ok {
				cfg.Ingest.MaxFileCount = v
			}
		case "follow_symlinks":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Ingest.FollowSymlinks = b
			}
		case "respect_gitignore":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Ingest.RespectGitignore = b
			}
		case "watch_mode":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Ingest.WatchMode = b
			}
		case "debounce_min_ms":
			if v, ok := firstIntArg(cn); ok {
				cfg.Ingest.DebounceMinMs = v
			}
		case "debounce_max_ms":
			if v, ok := firstIntArg(cn); ok {
				cfg.Ingest.DebounceMaxMs = v
			}
		case "git_checkout_debounce_ms":
			if v, ok := firstIntArg(cn); ok {
				cfg.Ingest.GitCheckoutDebounceMs = v
			}
		case "coalesce_shards":
			if v, ok := firstIntArg(cn); ok {
				cfg.Ingest.CoalesceShards = v
			}
		case "token_bucket_capacity":
			if v, ok := firstIntArg(cn); ok {
				cfg.Ingest.TokenBucketCapacity = v
			}
		case "token_bucket_refill_per_sec":
			if v, ok := firstIntArg(cn); ok {
				cfg.Ingest.TokenBucketRefillPerSec = v
			}
		case "worker_concurrency":
			if v, ok := firstIntArg(cn); ok {
				cfg.Ingest.WorkerConcurrency = v
			}
		case "queue_high_watermark":
			if v, ok := firstIntArg(cn); ok {
				cfg.Ingest.QueueHighWatermark = v
			}
		case "queue_low_watermark":
			if v, ok := firstIntArg(cn); ok {
				cfg.Ingest.QueueLowWatermark = v
			}
		case "decode_policy":
			if s, ok := firstStringArg(cn); ok {
				cfg.Ingest.DecodePolicy = s
			}
		case "allow_metadata_only_ok":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Ingest.AllowMetadataOnlyOK = b
			}
		}
	}
}

func parseStore(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "commit_batch_size":
			if v, ok := firstIntArg(cn); ok {
				cfg.Store.CommitBatchSize = v
			}
		case "reader_pool_size":
			if v, ok := firstIntArg(cn); ok {
				cfg.Store.ReaderPoolSize = v
			}
		case "max_single_read_lines":
			if v, ok := firstIntArg(cn); ok {
				cfg.Store.MaxSingleReadLines = v
			}
		case "gc_grace_hours":
			if v, ok := firstIntArg(cn); ok {
				cfg.Store.GCGraceHours = v
			}
		case "idle_checkpoint_sec":
			if v, ok := firstIntArg(cn); ok {
				cfg.Store.IdleCheckpointSec = v
			}
		case "max_reads_per_session":
			if v, ok := firstIntArg(cn); ok {
				cfg.Store.MaxReadsPerSession = v
			}
		case "max_total_read_lines":
			if v, ok := firstIntArg(cn); ok {
				cfg.Store.MaxTotalReadLines = v
			}
		}
	}
}

func parseIndex(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "max_doc_bytes":
			if v, ok := firstIntArg(cn); ok {
				cfg.Index.MaxDocBytes = int64(v)
			}
		case "reader_reload_ms":
			if v, ok := firstIntArg(cn); ok {
				cfg.Index.ReaderReloadMs = v
			}
		}
	}
}

func parseSearch(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "default_limit":
			if v, ok := firstIntArg(cn); ok {
				cfg.Search.DefaultLimit = v
			}
		case "max_limit":
			if v, ok := firstIntArg(cn); ok {
				cfg.Search.MaxLimit = v
			}
		case "max_pagination_depth":
			if v, ok := firstIntArg(cn); ok {
				cfg.Search.MaxPaginationDepth = v
			}
		case "ranking":
			for _, rn := range cn.Children {
				switch nodeName(rn) {
				case "recency_half_life_days":
					if v, ok := firstFloatArg(rn); ok {
						cfg.Search.Ranking.RecencyHalfLifeDays = v
					}
				case "structural_boost":
					if v, ok := firstFloatArg(rn); ok {
						cfg.Search.Ranking.StructuralBoost = v
					}
				case "exact_token_bonus":
					if v, ok := firstFloatArg(rn); ok {
						cfg.Search.Ranking.ExactTokenBonus = v
					}
				case "code_file_boost":
					if v, ok := firstFloatArg(rn); ok {
						cfg.Search.Ranking.CodeFileBoost = v
					}
				case "doc_file_penalty":
					if v, ok := firstFloatArg(rn); ok {
						cfg.Search.Ranking.DocFilePenalty = v
					}
				case "config_file_boost":
					if v, ok := firstFloatArg(rn); ok {
						cfg.Search.Ranking.ConfigFileBoost = v
					}
				}
			}
		}
	}
}

func parseDaemon(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "idle_sec":
			if v, ok := firstIntArg(cn); ok {
				cfg.Daemon.IdleSec = v
			}
		case "drain_timeout_sec":
			if v, ok := firstIntArg(cn); ok {
				cfg.Daemon.DrainTimeoutSec = v
			}
		case "grace_sec":
			if v, ok := firstIntArg(cn); ok {
				cfg.Daemon.GraceSec = v
			}
		case "heartbeat_ms":
			if v, ok := firstIntArg(cn); ok {
				cfg.Daemon.HeartbeatMs = v
			}
		case "rollback_strike_count":
			if v, ok := firstIntArg(cn); ok {
				cfg.Daemon.RollbackStrikeCount = v
			}
		}
	}
}

// --- kdl-go document-model helpers, shared by every section parser. ---

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
