package store

import (
	"database/sql"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sari-dev/sari/internal/config"
	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/logging"
	"github.com/sari-dev/sari/internal/types"
)

// Writer is the single owner of all Store mutations, per §4.1 "all
// mutations pass through one writer task". Only one Writer may exist
// for a given Store; NewWriter enforces that with claimed, below.
type Writer struct {
	store        *Store
	claimed      *int32
	batchSize    int
	mu           sync.Mutex
	tx           *sql.Tx
	pending      int
	batchStarted time.Time
	readPressure int32 // set by SignalReadPressure, read by nextBatchSize
}

// NewWriter claims exclusive write ownership of s. A second call on
// the same Store (before the first Writer is closed) fails with
// ERR_DB_WRITE_NOT_SINGLE_WRITER — this is the enforcement point for
// the single-writer invariant.
func NewWriter(s *Store) (*Writer, error) {
	if !atomic.CompareAndSwapInt32(s.writerClaim(), 0, 1) {
		return nil, sarierrors.New(sarierrors.ErrDBWriteNotSingleWriter, "a writer is already attached to this store")
	}
	size := s.cfg.Store.CommitBatchSize
	if size <= 0 {
		size = types.DefaultCommitBatchSize
	}
	return &Writer{store: s, claimed: s.writerClaim(), batchSize: size}, nil
}

// Close releases write ownership so a future Writer may attach.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.rollbackLocked()
	atomic.StoreInt32(w.claimed, 0)
	return err
}

// SignalReadPressure tells the writer to shrink its batch size and
// yield more often between commits, per the read-priority policy.
func (w *Writer) SignalReadPressure(active bool) {
	if active {
		atomic.StoreInt32(&w.readPressure, 1)
	} else {
		atomic.StoreInt32(&w.readPressure, 0)
	}
}

func (w *Writer) effectiveBatchSize() int {
	if atomic.LoadInt32(&w.readPressure) == 1 {
		half := w.batchSize / 4
		if half < 1 {
			half = 1
		}
		return half
	}
	return w.batchSize
}

// BeginBatch starts a new transaction if one is not already open.
func (w *Writer) BeginBatch() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.beginLocked()
}

func (w *Writer) beginLocked() error {
	if w.tx != nil {
		return nil
	}
	tx, err := w.store.db.Begin()
	if err != nil {
		return sarierrors.Wrap(sarierrors.DBError, "begin batch", err)
	}
	w.tx = tx
	w.pending = 0
	w.batchStarted = time.Now()
	return nil
}

// Upsert writes or replaces File + Symbol + Relation rows for one doc
// in the currently open batch, auto-committing when the batch is full.
func (w *Writer) Upsert(file *types.File, symbols []types.Symbol, relations []types.Relation) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.beginLocked(); err != nil {
		return err
	}

	if err := w.upsertFile(file); err != nil {
		w.rollbackLocked()
		return err
	}
	if _, err := w.tx.Exec(`DELETE FROM symbols WHERE path = ?`, string(file.Path)); err != nil {
		w.rollbackLocked()
		return sarierrors.Wrap(sarierrors.DBError, "clear prior symbols", err)
	}
	if _, err := w.tx.Exec(`DELETE FROM relations WHERE from_path = ?`, string(file.Path)); err != nil {
		w.rollbackLocked()
		return sarierrors.Wrap(sarierrors.DBError, "clear prior relations", err)
	}
	for i := range symbols {
		if err := w.upsertSymbol(&symbols[i]); err != nil {
			w.rollbackLocked()
			return err
		}
	}
	for i := range relations {
		if err := w.upsertRelation(&relations[i]); err != nil {
			w.rollbackLocked()
			return err
		}
	}

	w.pending++
	return w.maybeCommitLocked()
}

func (w *Writer) upsertFile(f *types.File) error {
	_, err := w.tx.Exec(`
		INSERT INTO files (path, root_id, rel_path, repo, mtime, size, content, content_hash,
			parse_status, parse_reason, ast_status, ast_reason, is_binary, sampled, last_seen, deleted_ts)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,NULL)
		ON CONFLICT(path) DO UPDATE SET
			root_id=excluded.root_id, rel_path=excluded.rel_path, repo=excluded.repo,
			mtime=excluded.mtime, size=excluded.size, content=excluded.content,
			content_hash=excluded.content_hash, parse_status=excluded.parse_status,
			parse_reason=excluded.parse_reason, ast_status=excluded.ast_status,
			ast_reason=excluded.ast_reason, is_binary=excluded.is_binary,
			sampled=excluded.sampled, last_seen=excluded.last_seen, deleted_ts=NULL
	`, string(f.Path), string(f.RootID), f.RelPath, f.Repo, f.MTime, f.Size, f.Content, f.ContentHash,
		string(f.ParseStatus), string(f.ParseReason), string(f.ASTStatus), string(f.ASTReason),
		f.IsBinary, f.Sampled, f.LastSeen)
	if err != nil {
		return sarierrors.Wrap(sarierrors.DBError, "upsert file", err)
	}
	return nil
}

func (w *Writer) upsertSymbol(s *types.Symbol) error {
	_, err := w.tx.Exec(`
		INSERT INTO symbols (symbol_id, root_id, path, name, line, end_line, kind, content, parent_name, qualname, docstring)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(symbol_id) DO UPDATE SET
			line=excluded.line, end_line=excluded.end_line, kind=excluded.kind,
			content=excluded.content, parent_name=excluded.parent_name,
			qualname=excluded.qualname, docstring=excluded.docstring
	`, string(s.SymbolID), string(s.RootID), string(s.Path), s.Name, s.Line, s.EndLine,
		string(s.Kind), s.Content, s.ParentName, s.Qualname, s.Docstring)
	if err != nil {
		return sarierrors.Wrap(sarierrors.DBError, "upsert symbol", err)
	}
	return nil
}

func (w *Writer) upsertRelation(r *types.Relation) error {
	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return sarierrors.Wrap(sarierrors.DBError, "marshal relation metadata", err)
	}
	_, err = w.tx.Exec(`
		INSERT INTO relations (from_path, from_root_id, from_symbol, from_symbol_id,
			to_path, to_root_id, to_symbol, to_symbol_id, rel_type, line, metadata_json)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
	`, string(r.FromPath), string(r.FromRootID), r.FromSymbol, string(r.FromSymbolID),
		string(r.ToPath), string(r.ToRootID), r.ToSymbol, string(r.ToSymbolID),
		string(r.RelType), r.Line, string(meta))
	if err != nil {
		return sarierrors.Wrap(sarierrors.DBError, "upsert relation", err)
	}
	return nil
}

// Delete tombstones the given doc_ids: deleted_ts is set but rows are
// retained until tombstone GC runs, so in-flight readers never observe
// a half-deleted symbol/relation set.
func (w *Writer) Delete(docIDs []types.DocID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.beginLocked(); err != nil {
		return err
	}
	now := time.Now()
	for _, id := range docIDs {
		if _, err := w.tx.Exec(`UPDATE files SET deleted_ts = ? WHERE path = ?`, now, string(id)); err != nil {
			w.rollbackLocked()
			return sarierrors.Wrap(sarierrors.DBError, "tombstone file", err)
		}
	}
	w.pending += len(docIDs)
	return w.maybeCommitLocked()
}

// UpsertFailedTask records/updates a retry entry for path.
func (w *Writer) UpsertFailedTask(ft *types.FailedTask) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.beginLocked(); err != nil {
		return err
	}
	_, err := w.tx.Exec(`
		INSERT INTO failed_tasks (path, attempts, error, next_retry, last_failed)
		VALUES (?,?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET
			attempts=excluded.attempts, error=excluded.error,
			next_retry=excluded.next_retry, last_failed=excluded.last_failed
	`, string(ft.Path), ft.Attempts, ft.Error, ft.NextRetry, ft.LastFailed)
	if err != nil {
		w.rollbackLocked()
		return sarierrors.Wrap(sarierrors.DBError, "upsert failed task", err)
	}
	w.pending++
	return w.maybeCommitLocked()
}

// ClearFailedTask removes a retry entry after a successful reprocess.
func (w *Writer) ClearFailedTask(path types.DocID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.beginLocked(); err != nil {
		return err
	}
	if _, err := w.tx.Exec(`DELETE FROM failed_tasks WHERE path = ?`, string(path)); err != nil {
		w.rollbackLocked()
		return sarierrors.Wrap(sarierrors.DBError, "clear failed task", err)
	}
	w.pending++
	return w.maybeCommitLocked()
}

// EndBatch forces a commit of any currently open batch.
func (w *Writer) EndBatch() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.commitLocked()
}

func (w *Writer) maybeCommitLocked() error {
	full := w.pending >= w.effectiveBatchSize()
	stale := time.Since(w.batchStarted) > 200*time.Millisecond
	if full || stale {
		return w.commitLocked()
	}
	return nil
}

func (w *Writer) commitLocked() error {
	if w.tx == nil {
		return nil
	}
	err := w.tx.Commit()
	w.tx = nil
	n := w.pending
	w.pending = 0
	if err != nil {
		return sarierrors.Wrap(sarierrors.DBError, "commit batch", err)
	}
	logging.LogStore("committed batch of %d rows", n)
	return nil
}

func (w *Writer) rollbackLocked() error {
	if w.tx == nil {
		return nil
	}
	err := w.tx.Rollback()
	w.tx = nil
	w.pending = 0
	return err
}

func (s *Store) writerClaim() *int32 {
	return &s.writerClaimValue
}
