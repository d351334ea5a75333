package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sari-dev/sari/internal/types"
)

// currentSchemaVersion is the schema version this package writes.
// Readers tolerate v1 (no deployment block) and migrate forward.
const currentSchemaVersion = 2

// readRecord loads and parses the registry file at path. A missing file
// returns a fresh empty v2 record, not an error — there is nothing to
// migrate from on first run.
func readRecord(path string) (*types.RegistryRecord, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return types.NewRegistryRecord(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if len(data) == 0 {
		return types.NewRegistryRecord(), nil
	}

	var rec types.RegistryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	migrate(&rec)
	return &rec, nil
}

// migrate brings an older schema record up to currentSchemaVersion.
// v1 records carry daemons/workspaces but no deployment block; v2
// introduces the generation-gated deployment state machine.
func migrate(rec *types.RegistryRecord) {
	if rec.Daemons == nil {
		rec.Daemons = make(map[string]types.RegistryDaemon)
	}
	if rec.Workspaces == nil {
		rec.Workspaces = make(map[string]types.RegistryWorkspace)
	}
	if rec.SchemaVersion < currentSchemaVersion {
		if rec.Deployment.State == "" {
			rec.Deployment.State = types.DeployIdle
		}
		rec.SchemaVersion = currentSchemaVersion
	}
}

// writeRecord persists rec to path atomically: write to a sibling temp
// file, fsync, then rename over the destination so readers never
// observe a partial write.
func writeRecord(path string, rec *types.RegistryRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".registry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp registry file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp registry file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp registry file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename registry file: %w", err)
	}
	return nil
}
