package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeConfigs_ExclusionsUnionDeduplicated(t *testing.T) {
	base := &Config{Exclude: []string{"**/node_modules/**", "**/vendor/**"}}
	project := &Config{Exclude: []string{"**/node_modules/**", "**/dist/**"}}

	merged := mergeConfigs(base, project)

	assert.Len(t, merged.Exclude, 3)
	assert.Contains(t, merged.Exclude, "**/node_modules/**")
	assert.Contains(t, merged.Exclude, "**/vendor/**")
	assert.Contains(t, merged.Exclude, "**/dist/**")
}

func TestMergeConfigs_IncludeFallsBackToBaseWhenProjectEmpty(t *testing.T) {
	base := &Config{Include: []string{"**/*.go"}}
	project := &Config{Include: nil}

	merged := mergeConfigs(base, project)

	assert.Equal(t, []string{"**/*.go"}, merged.Include)
}

func TestMergeConfigs_ProjectIncludeWinsWhenNonEmpty(t *testing.T) {
	base := &Config{Include: []string{"**/*.go"}}
	project := &Config{Include: []string{"**/*.rs"}}

	merged := mergeConfigs(base, project)

	assert.Equal(t, []string{"**/*.rs"}, merged.Include)
}

func TestDefault_FillsConcreteBudgets(t *testing.T) {
	cfg := Default("/tmp/project")

	assert.Equal(t, 2, cfg.Version)
	assert.Greater(t, cfg.Ingest.MaxFileBytes, int64(0))
	assert.Greater(t, cfg.Store.CommitBatchSize, 0)
	assert.Greater(t, cfg.Search.MaxLimit, 0)
	assert.NotEmpty(t, cfg.Exclude)
}

func TestLoadKDL_ParsesProjectAndSections(t *testing.T) {
	dir := t.TempDir()
	kdl := `
project {
    name "demo"
}
ingest {
    max_file_bytes 1048576
    worker_concurrency 4
    decode_policy "ignore"
}
search {
    default_limit 10
    max_limit 50
    ranking {
        exact_token_bonus 3.5
    }
}
exclude {
    "**/fixtures/**"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".sari.kdl"), []byte(kdl), 0o644))

	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "demo", cfg.Project.Name)
	assert.Equal(t, int64(1048576), cfg.Ingest.MaxFileBytes)
	assert.Equal(t, 4, cfg.Ingest.WorkerConcurrency)
	assert.Equal(t, "ignore", cfg.Ingest.DecodePolicy)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 50, cfg.Search.MaxLimit)
	assert.Equal(t, 3.5, cfg.Search.Ranking.ExactTokenBonus)
	assert.Equal(t, []string{"**/fixtures/**"}, cfg.Exclude)
}

func TestLoadKDL_MissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestValidateAndSetDefaults_RejectsBadLimits(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Search.MaxLimit = 0

	err := NewValidator().ValidateAndSetDefaults(cfg)
	assert.Error(t, err)
}

func TestValidateAndSetDefaults_FillsWorkerConcurrency(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Ingest.WorkerConcurrency = 0

	require.NoError(t, NewValidator().ValidateAndSetDefaults(cfg))
	assert.Greater(t, cfg.Ingest.WorkerConcurrency, 0)
}

func TestDeduplicatePatterns(t *testing.T) {
	out := DeduplicatePatterns([]string{"a", "b", "a", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, out)
}
