package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/types"
)

// SaveSnippet upserts tag's snippet body and appends the previous body
// (if any) to snippet_versions, per §4's Knowledge module: saving over
// an existing tag never loses the prior content.
func (s *Store) SaveSnippet(ctx context.Context, snip types.Snippet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sarierrors.Wrap(sarierrors.DBError, "begin snippet save", err)
	}
	defer tx.Rollback()

	var prevContent string
	var prevVersion int
	err = tx.QueryRowContext(ctx, `SELECT content FROM snippets WHERE tag = ?`, snip.Tag).Scan(&prevContent)
	if err == nil {
		if verr := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM snippet_versions WHERE tag = ?`, snip.Tag).Scan(&prevVersion); verr != nil {
			return sarierrors.Wrap(sarierrors.DBError, "read snippet version", verr)
		}
		if _, verr := tx.ExecContext(ctx, `INSERT INTO snippet_versions (tag, version, content, saved_at) VALUES (?, ?, ?, ?)`,
			snip.Tag, prevVersion+1, prevContent, time.Now()); verr != nil {
			return sarierrors.Wrap(sarierrors.DBError, "archive snippet version", verr)
		}
	} else if err != sql.ErrNoRows {
		return sarierrors.Wrap(sarierrors.DBError, "read existing snippet", err)
	}

	now := time.Now()
	if snip.CreatedAt.IsZero() {
		snip.CreatedAt = now
	}
	snip.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snippets (tag, path, root_id, start_line, end_line, content, content_hash,
			anchor_before, anchor_after, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tag) DO UPDATE SET
			path=excluded.path, root_id=excluded.root_id, start_line=excluded.start_line,
			end_line=excluded.end_line, content=excluded.content, content_hash=excluded.content_hash,
			anchor_before=excluded.anchor_before, anchor_after=excluded.anchor_after,
			note=excluded.note, updated_at=excluded.updated_at`,
		snip.Tag, string(snip.Path), string(snip.RootID), snip.StartLine, snip.EndLine, snip.Content, snip.ContentHash,
		snip.AnchorBefore, snip.AnchorAfter, snip.Note, snip.CreatedAt, snip.UpdatedAt)
	if err != nil {
		return sarierrors.Wrap(sarierrors.DBError, "upsert snippet", err)
	}

	return tx.Commit()
}

// GetSnippet returns the current body of tag, or nil if it has never
// been saved.
func (s *Store) GetSnippet(ctx context.Context, tag string) (*types.Snippet, error) {
	db, release, err := s.acquireReader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var snip types.Snippet
	var path, rootID string
	row := db.QueryRowContext(ctx, `
		SELECT tag, path, root_id, start_line, end_line, content, content_hash,
			anchor_before, anchor_after, note, created_at, updated_at
		FROM snippets WHERE tag = ?`, tag)
	if err := row.Scan(&snip.Tag, &path, &rootID, &snip.StartLine, &snip.EndLine, &snip.Content, &snip.ContentHash,
		&snip.AnchorBefore, &snip.AnchorAfter, &snip.Note, &snip.CreatedAt, &snip.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, sarierrors.Wrap(sarierrors.DBError, "query snippet", err)
	}
	snip.Path = types.DocID(path)
	snip.RootID = types.RootID(rootID)
	return &snip, nil
}

// SnippetHistory returns prior versions of tag, oldest first.
func (s *Store) SnippetHistory(ctx context.Context, tag string) ([]types.SnippetVersion, error) {
	db, release, err := s.acquireReader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := db.QueryContext(ctx, `SELECT tag, version, content, saved_at FROM snippet_versions WHERE tag = ? ORDER BY version ASC`, tag)
	if err != nil {
		return nil, sarierrors.Wrap(sarierrors.DBError, "query snippet history", err)
	}
	defer rows.Close()

	var out []types.SnippetVersion
	for rows.Next() {
		var v types.SnippetVersion
		if err := rows.Scan(&v.Tag, &v.Version, &v.Content, &v.SavedAt); err != nil {
			return nil, sarierrors.Wrap(sarierrors.DBError, "scan snippet version", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SaveContext upserts topic's knowledge record, per §4 Context module.
func (s *Store) SaveContext(ctx context.Context, rec types.Context) error {
	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return sarierrors.Wrap(sarierrors.IOError, "marshal context tags", err)
	}
	filesJSON, err := json.Marshal(rec.RelatedFiles)
	if err != nil {
		return sarierrors.Wrap(sarierrors.IOError, "marshal context related_files", err)
	}
	if rec.ValidFrom.IsZero() {
		rec.ValidFrom = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contexts (topic, content, tags_json, related_files_json, valid_from, valid_until, deprecated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(topic) DO UPDATE SET
			content=excluded.content, tags_json=excluded.tags_json,
			related_files_json=excluded.related_files_json, valid_from=excluded.valid_from,
			valid_until=excluded.valid_until, deprecated=excluded.deprecated`,
		rec.Topic, rec.Content, string(tagsJSON), string(filesJSON), rec.ValidFrom, rec.ValidUntil, rec.Deprecated)
	if err != nil {
		return sarierrors.Wrap(sarierrors.DBError, "upsert context", err)
	}
	return nil
}

// GetContext returns topic's knowledge record, or nil if it does not
// exist. Callers asking for current (non-deprecated) knowledge should
// check Deprecated themselves — archived records are kept, not deleted,
// so history is queryable.
func (s *Store) GetContext(ctx context.Context, topic string) (*types.Context, error) {
	db, release, err := s.acquireReader(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var rec types.Context
	var tagsJSON, filesJSON string
	var validUntil sql.NullTime
	row := db.QueryRowContext(ctx, `
		SELECT topic, content, tags_json, related_files_json, valid_from, valid_until, deprecated
		FROM contexts WHERE topic = ?`, topic)
	if err := row.Scan(&rec.Topic, &rec.Content, &tagsJSON, &filesJSON, &rec.ValidFrom, &validUntil, &rec.Deprecated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, sarierrors.Wrap(sarierrors.DBError, "query context", err)
	}
	if validUntil.Valid {
		rec.ValidUntil = &validUntil.Time
	}
	if tagsJSON != "" {
		_ = json.Unmarshal([]byte(tagsJSON), &rec.Tags)
	}
	if filesJSON != "" {
		_ = json.Unmarshal([]byte(filesJSON), &rec.RelatedFiles)
	}
	return &rec, nil
}

// ArchiveContext marks topic deprecated and stamps valid_until, rather
// than deleting it — archived knowledge remains queryable by GetContext
// for historical reference.
func (s *Store) ArchiveContext(ctx context.Context, topic string) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `UPDATE contexts SET deprecated = 1, valid_until = ? WHERE topic = ?`, now, topic)
	if err != nil {
		return sarierrors.Wrap(sarierrors.DBError, "archive context", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return sarierrors.Wrap(sarierrors.DBError, "archive context rows affected", err)
	}
	if n == 0 {
		return sarierrors.New(sarierrors.InvalidArgs, "no context with that topic").WithParam("topic").WithClientAction(sarierrors.ActionFixArgs)
	}
	return nil
}
