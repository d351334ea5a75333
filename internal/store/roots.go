package store

import (
	"context"
	"database/sql"

	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/types"
)

// UpsertRoot records or updates a watched workspace. Unlike File/Symbol
// rows this goes through the writer directly (roots mutate rarely and
// are not part of the per-doc ingest batch).
func (w *Writer) UpsertRoot(r *types.Root) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.beginLocked(); err != nil {
		return err
	}
	_, err := w.tx.Exec(`
		INSERT INTO roots (root_id, root_path, real_path, label, state, follow_symlinks, config_snapshot, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(root_id) DO UPDATE SET
			root_path=excluded.root_path, real_path=excluded.real_path, label=excluded.label,
			state=excluded.state, follow_symlinks=excluded.follow_symlinks,
			config_snapshot=excluded.config_snapshot, updated_at=excluded.updated_at
	`, string(r.RootID), r.RootPath, r.RealPath, r.Label, string(r.State), r.FollowSymlinks,
		r.ConfigSnapshot, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		w.rollbackLocked()
		return sarierrors.Wrap(sarierrors.DBError, "upsert root", err)
	}
	w.pending++
	return w.maybeCommitLocked()
}

// GetRoot returns a watched workspace by id.
func (s *Store) GetRoot(ctx context.Context, id types.RootID) (*types.Root, error) {
	db, release, err := s.acquireReader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	row := db.QueryRowContext(ctx, `
		SELECT root_id, root_path, real_path, label, state, follow_symlinks, config_snapshot, created_at, updated_at
		FROM roots WHERE root_id = ?`, string(id))

	var r types.Root
	var rootID, state string
	if err := row.Scan(&rootID, &r.RootPath, &r.RealPath, &r.Label, &state, &r.FollowSymlinks,
		&r.ConfigSnapshot, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, sarierrors.New(sarierrors.RepoNotFound, "root not found")
		}
		return nil, sarierrors.Wrap(sarierrors.DBError, "read root row", err)
	}
	r.RootID = types.RootID(rootID)
	r.State = types.RootState(state)
	return &r, nil
}

// ListActiveRoots returns every Root in RootActive state.
func (s *Store) ListActiveRoots(ctx context.Context) ([]types.Root, error) {
	db, release, err := s.acquireReader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.QueryContext(ctx, `
		SELECT root_id, root_path, real_path, label, state, follow_symlinks, config_snapshot, created_at, updated_at
		FROM roots WHERE state = ?`, string(types.RootActive))
	if err != nil {
		return nil, sarierrors.Wrap(sarierrors.DBError, "list active roots", err)
	}
	defer rows.Close()

	var out []types.Root
	for rows.Next() {
		var r types.Root
		var rootID, state string
		if err := rows.Scan(&rootID, &r.RootPath, &r.RealPath, &r.Label, &state, &r.FollowSymlinks,
			&r.ConfigSnapshot, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, sarierrors.Wrap(sarierrors.DBError, "scan root row", err)
		}
		r.RootID = types.RootID(rootID)
		r.State = types.RootState(state)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetEngineState persists the current TextIndex engine facts, used so
// EngineState survives a daemon restart for crash-free resume.
func (w *Writer) SetEngineState(es *types.EngineState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.beginLocked(); err != nil {
		return err
	}
	_, err := w.tx.Exec(`
		UPDATE engine_state SET index_version=?, doc_count=?, last_commit_ts=?, config_hash=? WHERE id = 1
	`, es.IndexVersion, es.DocCount, es.LastCommitTS, es.ConfigHash)
	if err != nil {
		w.rollbackLocked()
		return sarierrors.Wrap(sarierrors.DBError, "set engine state", err)
	}
	w.pending++
	return w.maybeCommitLocked()
}

// GetEngineState reads the current TextIndex engine facts.
func (s *Store) GetEngineState(ctx context.Context) (*types.EngineState, error) {
	db, release, err := s.acquireReader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var es types.EngineState
	var lastCommit sql.NullTime
	err = db.QueryRowContext(ctx, `SELECT index_version, doc_count, last_commit_ts, config_hash FROM engine_state WHERE id = 1`).
		Scan(&es.IndexVersion, &es.DocCount, &lastCommit, &es.ConfigHash)
	if err != nil {
		return nil, sarierrors.Wrap(sarierrors.DBError, "read engine state", err)
	}
	if lastCommit.Valid {
		es.LastCommitTS = lastCommit.Time
	}
	return &es, nil
}
