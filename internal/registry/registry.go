// Package registry implements §4.6: the single JSON file that is the
// source of truth for which daemon is live and how to reach the
// gateway for a given workspace.
package registry

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sari-dev/sari/internal/types"
)

const (
	fileName = "registry.json"
	lockSuffix = ".lock"
	lockTimeout = 5 * time.Second
)

// Registry is a handle onto the on-disk registry file. It holds no
// in-memory state between calls: every Read/Update round-trips through
// the file so that multiple daemon processes on the same host observe
// a single consistent record.
type Registry struct {
	path     string
	lockPath string
}

// New returns a Registry backed by <dataDir>/registry.json.
func New(dataDir string) *Registry {
	path := filepath.Join(dataDir, fileName)
	return &Registry{path: path, lockPath: path + lockSuffix}
}

// Read loads the current record, pruning dead daemons and unbound
// workspaces as a side effect of the read (the prune is not persisted
// unless a caller subsequently calls Update).
func (r *Registry) Read() (*types.RegistryRecord, error) {
	lock := newFileLock(r.lockPath)
	if err := lock.acquire(lockTimeout); err != nil {
		return nil, fmt.Errorf("registry read: %w", err)
	}
	defer lock.release()

	rec, err := readRecord(r.path)
	if err != nil {
		return nil, err
	}
	prune(rec)
	return rec, nil
}

// Update loads the current record, prunes it, runs fn against it, and
// atomically persists the result — all under a single held lock, so
// the read-modify-write is race-free across processes on the host.
func (r *Registry) Update(fn func(rec *types.RegistryRecord) error) error {
	lock := newFileLock(r.lockPath)
	if err := lock.acquire(lockTimeout); err != nil {
		return fmt.Errorf("registry update: %w", err)
	}
	defer lock.release()

	rec, err := readRecord(r.path)
	if err != nil {
		return err
	}
	prune(rec)

	if err := fn(rec); err != nil {
		return err
	}

	return writeRecord(r.path, rec)
}

// Heartbeat upserts the calling daemon's own entry and bumps
// last_seen_ts, per §3 Lifecycle "heartbeated (last_seen_ts)".
func (r *Registry) Heartbeat(bootID string, d types.RegistryDaemon) error {
	return r.Update(func(rec *types.RegistryRecord) error {
		d.LastSeenTS = time.Now()
		rec.Daemons[bootID] = d
		return nil
	})
}

// BindWorkspace records which boot_id currently serves ws, creating or
// overwriting the workspace's routing entry.
func (r *Registry) BindWorkspace(ws string, w types.RegistryWorkspace) error {
	return r.Update(func(rec *types.RegistryRecord) error {
		w.LastActiveTS = time.Now()
		rec.Workspaces[ws] = w
		return nil
	})
}

// ResolveWorkspace returns the live daemon entry bound to ws, or
// (zero, false) if unbound (pruned, never bound, or its daemon died).
func (r *Registry) ResolveWorkspace(ws string) (types.RegistryDaemon, bool, error) {
	_, d, ok, err := r.ResolveWorkspaceFull(ws)
	return d, ok, err
}

// ResolveWorkspaceFull is ResolveWorkspace plus the boot_id key, needed
// by callers (the lifecycle controller) that must address the daemon
// entry directly, e.g. to flip its draining flag.
func (r *Registry) ResolveWorkspaceFull(ws string) (string, types.RegistryDaemon, bool, error) {
	rec, err := r.Read()
	if err != nil {
		return "", types.RegistryDaemon{}, false, err
	}
	w, ok := rec.Workspaces[ws]
	if !ok {
		return "", types.RegistryDaemon{}, false, nil
	}
	d, ok := rec.Daemons[w.BootID]
	return w.BootID, d, ok, nil
}

// SetDraining flips the draining flag on the daemon identified by
// bootID, a no-op if that daemon is not present.
func (r *Registry) SetDraining(bootID string, draining bool) error {
	return r.Update(func(rec *types.RegistryRecord) error {
		d, ok := rec.Daemons[bootID]
		if !ok {
			return nil
		}
		d.Draining = draining
		rec.Daemons[bootID] = d
		return nil
	})
}
