package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/types"
)

// acquireReader borrows a connection from the bounded pool, falling
// back to the shared write handle (read-only queries only) when the
// pool is exhausted, matching §4.1 "overflow falls back to a shared
// read handle".
func (s *Store) acquireReader(ctx context.Context) (*sql.DB, func(), error) {
	select {
	case rdb := <-s.readPool:
		return rdb, func() { s.readPool <- rdb }, nil
	case <-ctx.Done():
		return nil, func() {}, ctx.Err()
	default:
	}
	select {
	case rdb := <-s.readPool:
		return rdb, func() { s.readPool <- rdb }, nil
	case <-time.After(50 * time.Millisecond):
		return s.db, func() {}, nil
	case <-ctx.Done():
		return nil, func() {}, ctx.Err()
	}
}

// ReadFileResult is the outcome of ReadFile, honoring the configured
// byte cap.
type ReadFileResult struct {
	File          types.File
	Content       []byte
	TextTruncated bool
}

// ReadFile enforces a configurable byte cap: content beyond maxBytes is
// truncated to the requested prefix and TextTruncated is set.
func (s *Store) ReadFile(ctx context.Context, path types.DocID, maxBytes int64) (*ReadFileResult, error) {
	db, release, err := s.acquireReader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	row := db.QueryRowContext(ctx, `
		SELECT path, root_id, rel_path, repo, mtime, size, content, content_hash,
			parse_status, parse_reason, ast_status, ast_reason, is_binary, sampled, last_seen, deleted_ts
		FROM files WHERE path = ? AND deleted_ts IS NULL`, string(path))

	var f types.File
	var p, rootID, parseStatus, parseReason, astStatus, astReason string
	var deletedTS sql.NullTime
	if err := row.Scan(&p, &rootID, &f.RelPath, &f.Repo, &f.MTime, &f.Size, &f.Content, &f.ContentHash,
		&parseStatus, &parseReason, &astStatus, &astReason, &f.IsBinary, &f.Sampled, &f.LastSeen, &deletedTS); err != nil {
		if err == sql.ErrNoRows {
			return nil, sarierrors.New(sarierrors.NotIndexed, "file not indexed").WithClientAction(sarierrors.ActionReindex)
		}
		return nil, sarierrors.Wrap(sarierrors.DBError, "read file row", err)
	}
	f.Path = path
	f.RootID = types.RootID(rootID)
	f.ParseStatus = types.ParseStatus(parseStatus)
	f.ParseReason = types.ParseReason(parseReason)
	f.ASTStatus = types.ParseStatus(astStatus)
	f.ASTReason = types.ParseReason(astReason)

	content := f.Content
	truncated := false
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		content = content[:maxBytes]
		truncated = true
	}
	return &ReadFileResult{File: f, Content: content, TextTruncated: truncated}, nil
}

// GetSymbol returns a single symbol by id, or SYMBOL_NOT_FOUND.
func (s *Store) GetSymbol(ctx context.Context, id types.SymbolID) (*types.Symbol, error) {
	db, release, err := s.acquireReader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	row := db.QueryRowContext(ctx, `
		SELECT symbol_id, root_id, path, name, line, end_line, kind, content, parent_name, qualname, docstring
		FROM symbols WHERE symbol_id = ?`, string(id))

	var sym types.Symbol
	var symbolID, rootID, path, kind string
	if err := row.Scan(&symbolID, &rootID, &path, &sym.Name, &sym.Line, &sym.EndLine, &kind,
		&sym.Content, &sym.ParentName, &sym.Qualname, &sym.Docstring); err != nil {
		if err == sql.ErrNoRows {
			return nil, sarierrors.New(sarierrors.SymbolNotFound, "symbol not found").WithClientAction(sarierrors.ActionSearchSymbol)
		}
		return nil, sarierrors.Wrap(sarierrors.DBError, "read symbol row", err)
	}
	sym.SymbolID = types.SymbolID(symbolID)
	sym.RootID = types.RootID(rootID)
	sym.Path = types.DocID(path)
	sym.Kind = types.SymbolKind(kind)
	return &sym, nil
}

// FindSymbolsByName returns every symbol matching name, used by the
// Search Engine's symbol-ref resolution and by call-graph lookups.
func (s *Store) FindSymbolsByName(ctx context.Context, rootID types.RootID, name string) ([]types.Symbol, error) {
	db, release, err := s.acquireReader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.QueryContext(ctx, `
		SELECT symbol_id, root_id, path, name, line, end_line, kind, content, parent_name, qualname, docstring
		FROM symbols WHERE root_id = ? AND name = ?`, string(rootID), name)
	if err != nil {
		return nil, sarierrors.Wrap(sarierrors.DBError, "query symbols by name", err)
	}
	defer rows.Close()

	var out []types.Symbol
	for rows.Next() {
		var sym types.Symbol
		var symbolID, rid, path, kind string
		if err := rows.Scan(&symbolID, &rid, &path, &sym.Name, &sym.Line, &sym.EndLine, &kind,
			&sym.Content, &sym.ParentName, &sym.Qualname, &sym.Docstring); err != nil {
			return nil, sarierrors.Wrap(sarierrors.DBError, "scan symbol row", err)
		}
		sym.SymbolID = types.SymbolID(symbolID)
		sym.RootID = types.RootID(rid)
		sym.Path = types.DocID(path)
		sym.Kind = types.SymbolKind(kind)
		out = append(out, sym)
	}
	return out, rows.Err()
}

// SymbolsForFile returns every symbol defined in path, ordered by
// line, used by the Search Engine to attach context_symbol/docstring
// to a hit without a second tokenized lookup.
func (s *Store) SymbolsForFile(ctx context.Context, path types.DocID) ([]types.Symbol, error) {
	db, release, err := s.acquireReader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.QueryContext(ctx, `
		SELECT symbol_id, root_id, path, name, line, end_line, kind, content, parent_name, qualname, docstring
		FROM symbols WHERE path = ? ORDER BY line`, string(path))
	if err != nil {
		return nil, sarierrors.Wrap(sarierrors.DBError, "query symbols by file", err)
	}
	defer rows.Close()

	var out []types.Symbol
	for rows.Next() {
		var sym types.Symbol
		var symbolID, rid, p, kind string
		if err := rows.Scan(&symbolID, &rid, &p, &sym.Name, &sym.Line, &sym.EndLine, &kind,
			&sym.Content, &sym.ParentName, &sym.Qualname, &sym.Docstring); err != nil {
			return nil, sarierrors.Wrap(sarierrors.DBError, "scan symbol row", err)
		}
		sym.SymbolID = types.SymbolID(symbolID)
		sym.RootID = types.RootID(rid)
		sym.Path = types.DocID(p)
		sym.Kind = types.SymbolKind(kind)
		out = append(out, sym)
	}
	return out, rows.Err()
}

// RelationsFrom returns outgoing edges of symbolID, used by the call
// graph traversal in internal/graph.
func (s *Store) RelationsFrom(ctx context.Context, symbolID types.SymbolID) ([]types.Relation, error) {
	return s.relationsWhere(ctx, "from_symbol_id = ?", string(symbolID))
}

// RelationsTo returns incoming edges of symbolID ("references").
func (s *Store) RelationsTo(ctx context.Context, symbolID types.SymbolID) ([]types.Relation, error) {
	return s.relationsWhere(ctx, "to_symbol_id = ?", string(symbolID))
}

func (s *Store) relationsWhere(ctx context.Context, where string, arg interface{}) ([]types.Relation, error) {
	db, release, err := s.acquireReader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.QueryContext(ctx, `
		SELECT from_path, from_root_id, from_symbol, from_symbol_id,
			to_path, to_root_id, to_symbol, to_symbol_id, rel_type, line, metadata_json
		FROM relations WHERE `+where, arg)
	if err != nil {
		return nil, sarierrors.Wrap(sarierrors.DBError, "query relations", err)
	}
	defer rows.Close()

	var out []types.Relation
	for rows.Next() {
		var r types.Relation
		var fromPath, fromRoot, toPath, toRoot, relType, metaJSON string
		var fromSymbolID, toSymbolID string
		if err := rows.Scan(&fromPath, &fromRoot, &r.FromSymbol, &fromSymbolID,
			&toPath, &toRoot, &r.ToSymbol, &toSymbolID, &relType, &r.Line, &metaJSON); err != nil {
			return nil, sarierrors.Wrap(sarierrors.DBError, "scan relation row", err)
		}
		r.FromPath = types.DocID(fromPath)
		r.FromRootID = types.RootID(fromRoot)
		r.FromSymbolID = types.SymbolID(fromSymbolID)
		r.ToPath = types.DocID(toPath)
		r.ToRootID = types.RootID(toRoot)
		r.ToSymbolID = types.SymbolID(toSymbolID)
		r.RelType = types.RelationType(relType)
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &r.Metadata)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListFailedTasks returns retry-queue entries due at or before now,
// used by the doctor and status tools. No ingest code reads these
// entries back to re-run due tasks.
func (s *Store) ListFailedTasks(ctx context.Context, dueBefore time.Time) ([]types.FailedTask, error) {
	db, release, err := s.acquireReader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.QueryContext(ctx, `SELECT path, attempts, error, next_retry, last_failed FROM failed_tasks WHERE next_retry <= ?`, dueBefore)
	if err != nil {
		return nil, sarierrors.Wrap(sarierrors.DBError, "query failed tasks", err)
	}
	defer rows.Close()

	var out []types.FailedTask
	for rows.Next() {
		var ft types.FailedTask
		var path string
		if err := rows.Scan(&path, &ft.Attempts, &ft.Error, &ft.NextRetry, &ft.LastFailed); err != nil {
			return nil, sarierrors.Wrap(sarierrors.DBError, "scan failed task row", err)
		}
		ft.Path = types.DocID(path)
		out = append(out, ft)
	}
	return out, rows.Err()
}

// CountSurfacedFailures returns the count of FailedTasks whose attempts
// meet types.FailedTaskSurfaceThreshold, for the doctor tool.
func (s *Store) CountSurfacedFailures(ctx context.Context) (int, error) {
	db, release, err := s.acquireReader(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	var n int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failed_tasks WHERE attempts >= ?`, types.FailedTaskSurfaceThreshold).Scan(&n)
	if err != nil {
		return 0, sarierrors.Wrap(sarierrors.DBError, "count surfaced failures", err)
	}
	return n, nil
}
