package config

import (
	"fmt"

	sarierrors "github.com/sari-dev/sari/internal/errors"
)

// Validator checks a resolved Config for internally-consistent values
// before it is handed to the daemon's components.
type Validator struct{}

// NewValidator returns a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates cfg and fills in any zero-valued
// knobs that must not be zero, returning an INVALID_ARGS error on the
// first problem found.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if cfg.Project.Root == "" {
		return sarierrors.New(sarierrors.InvalidArgs, "project root cannot be empty").WithParam("project.root")
	}
	if err := v.validateIngest(&cfg.Ingest); err != nil {
		return err
	}
	if err := v.validateStore(&cfg.Store); err != nil {
		return err
	}
	if err := v.validateSearch(&cfg.Search); err != nil {
		return err
	}
	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateIngest(i *Ingest) error {
	if i.MaxFileBytes < 0 {
		return sarierrors.New(sarierrors.InvalidArgs, fmt.Sprintf("ingest.max_file_bytes must be non-negative (0 = unlimited), got %d", i.MaxFileBytes)).WithParam("ingest.max_file_bytes")
	}
	if i.DebounceMinMs < 0 || i.DebounceMaxMs < i.DebounceMinMs {
		return sarierrors.New(sarierrors.InvalidArgs, "ingest.debounce_min_ms must be <= debounce_max_ms").WithParam("ingest.debounce_min_ms")
	}
	if i.CoalesceShards <= 0 {
		return sarierrors.New(sarierrors.InvalidArgs, "ingest.coalesce_shards must be positive").WithParam("ingest.coalesce_shards")
	}
	if i.DecodePolicy != "strong" && i.DecodePolicy != "ignore" {
		return sarierrors.New(sarierrors.InvalidArgs, fmt.Sprintf("ingest.decode_policy must be strong|ignore, got %q", i.DecodePolicy)).WithParam("ingest.decode_policy")
	}
	return nil
}

func (v *Validator) validateStore(s *Store) error {
	if s.CommitBatchSize <= 0 {
		return sarierrors.New(sarierrors.InvalidArgs, "store.commit_batch_size must be positive").WithParam("store.commit_batch_size")
	}
	if s.ReaderPoolSize <= 0 {
		return sarierrors.New(sarierrors.InvalidArgs, "store.reader_pool_size must be positive").WithParam("store.reader_pool_size")
	}
	return nil
}

func (v *Validator) validateSearch(s *Search) error {
	if s.MaxLimit <= 0 || s.MaxLimit > 200 {
		return sarierrors.New(sarierrors.InvalidArgs, fmt.Sprintf("search.max_limit must be in (0,200], got %d", s.MaxLimit)).WithParam("search.max_limit")
	}
	if s.DefaultLimit <= 0 || s.DefaultLimit > s.MaxLimit {
		return sarierrors.New(sarierrors.InvalidArgs, "search.default_limit must be in (0, max_limit]").WithParam("search.default_limit")
	}
	return nil
}

// setSmartDefaults fills zero-valued knobs whose zero is not a
// meaningful setting.
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Ingest.WorkerConcurrency <= 0 {
		cfg.Ingest.WorkerConcurrency = workerConcurrencyDefault()
	}
	if cfg.Ingest.QueueHighWatermark <= 0 {
		cfg.Ingest.QueueHighWatermark = 4096
	}
	if cfg.Ingest.QueueLowWatermark <= 0 || cfg.Ingest.QueueLowWatermark >= cfg.Ingest.QueueHighWatermark {
		cfg.Ingest.QueueLowWatermark = cfg.Ingest.QueueHighWatermark / 4
	}
	if cfg.Daemon.RollbackStrikeCount <= 0 {
		cfg.Daemon.RollbackStrikeCount = 3
	}
}
