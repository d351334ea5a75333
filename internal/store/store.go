// Package store implements §4.1: an embedded, crash-safe, single-writer
// transactional store for Roots, Files, Symbols, Relations, Snippets,
// Contexts, FailedTasks and EngineState, backed by modernc.org/sqlite
// in WAL journal mode.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sari-dev/sari/internal/config"
	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/logging"
)

// Store owns the sqlite connection. The write handle is capped at one
// open connection and at most one Writer (claimed via NewWriter) may be
// attached at a time; the knowledge saves in knowledge.go write on the
// same handle without going through the Writer. Reads use a bounded
// pool of read-only connections.
type Store struct {
	dbPath string
	db     *sql.DB // write handle: max 1 open connection

	readPool chan *sql.DB // bounded pool of read-only connections
	readMu   sync.Mutex
	readAll  []*sql.DB

	writerClaimValue int32 // CAS flag: 0=unclaimed, 1=claimed by a Writer

	cfg *config.Config

	closeOnce sync.Once
	stopGC    chan struct{}
	gcWG      sync.WaitGroup
}

// Open creates or opens the store database under dataDir (typically
// <workspace>/.sari/store.db) and runs schema migrations.
func Open(dataDir string, cfg *config.Config) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, sarierrors.Wrap(sarierrors.IOError, "create store directory", err)
	}
	dbPath := filepath.Join(dataDir, "store.db")

	writeDSN := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", writeDSN)
	if err != nil {
		return nil, sarierrors.Wrap(sarierrors.DBError, "open store database", err)
	}
	db.SetMaxOpenConns(1) // single writer: the pool itself enforces the invariant

	s := &Store{
		dbPath: dbPath,
		db:     db,
		cfg:    cfg,
		stopGC: make(chan struct{}),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	poolSize := cfg.Store.ReaderPoolSize
	if poolSize <= 0 {
		poolSize = 32
	}
	s.readPool = make(chan *sql.DB, poolSize)
	for i := 0; i < poolSize; i++ {
		rdb, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", dbPath))
		if err != nil {
			s.Close()
			return nil, sarierrors.Wrap(sarierrors.DBError, "open reader connection", err)
		}
		rdb.SetMaxOpenConns(1)
		s.readAll = append(s.readAll, rdb)
		s.readPool <- rdb
	}

	s.gcWG.Add(1)
	go s.gcLoop()

	return s, nil
}

// Path returns the on-disk database file path.
func (s *Store) Path() string { return s.dbPath }

// Close stops background tasks and closes all connections.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopGC)
		s.gcWG.Wait()
		s.readMu.Lock()
		for _, rdb := range s.readAll {
			rdb.Close()
		}
		s.readMu.Unlock()
		err = s.db.Close()
	})
	return err
}

// schema is the full table+index set backing the §3 data model. Rows
// are identified by doc_id/symbol_id/tag the way internal/types derives
// them so the Store never recomputes identity.
const schema = `
CREATE TABLE IF NOT EXISTS roots (
	root_id TEXT PRIMARY KEY,
	root_path TEXT NOT NULL,
	real_path TEXT NOT NULL,
	label TEXT,
	state TEXT NOT NULL,
	follow_symlinks INTEGER NOT NULL,
	config_snapshot TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	path TEXT PRIMARY KEY,
	root_id TEXT NOT NULL,
	rel_path TEXT NOT NULL,
	repo TEXT NOT NULL,
	mtime DATETIME NOT NULL,
	size INTEGER NOT NULL,
	content BLOB,
	content_hash TEXT NOT NULL,
	parse_status TEXT NOT NULL,
	parse_reason TEXT NOT NULL,
	ast_status TEXT NOT NULL,
	ast_reason TEXT NOT NULL,
	is_binary INTEGER NOT NULL,
	sampled INTEGER NOT NULL,
	last_seen DATETIME NOT NULL,
	deleted_ts DATETIME
);
CREATE INDEX IF NOT EXISTS idx_files_root ON files(root_id);
CREATE INDEX IF NOT EXISTS idx_files_repo ON files(repo);
CREATE INDEX IF NOT EXISTS idx_files_deleted ON files(deleted_ts);

CREATE TABLE IF NOT EXISTS symbols (
	symbol_id TEXT PRIMARY KEY,
	root_id TEXT NOT NULL,
	path TEXT NOT NULL,
	name TEXT NOT NULL,
	line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	kind TEXT NOT NULL,
	content TEXT,
	parent_name TEXT,
	qualname TEXT NOT NULL,
	docstring TEXT
);
CREATE INDEX IF NOT EXISTS idx_symbols_path ON symbols(path);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_qualname ON symbols(qualname);

CREATE TABLE IF NOT EXISTS relations (
	from_path TEXT NOT NULL,
	from_root_id TEXT NOT NULL,
	from_symbol TEXT,
	from_symbol_id TEXT,
	to_path TEXT NOT NULL,
	to_root_id TEXT NOT NULL,
	to_symbol TEXT,
	to_symbol_id TEXT,
	rel_type TEXT NOT NULL,
	line INTEGER NOT NULL,
	metadata_json TEXT
);
CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_symbol_id);
CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(to_symbol_id);

CREATE TABLE IF NOT EXISTS snippets (
	tag TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	root_id TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	anchor_before TEXT,
	anchor_after TEXT,
	note TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS snippet_versions (
	tag TEXT NOT NULL,
	version INTEGER NOT NULL,
	content TEXT NOT NULL,
	saved_at DATETIME NOT NULL,
	PRIMARY KEY (tag, version)
);

CREATE TABLE IF NOT EXISTS contexts (
	topic TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	tags_json TEXT,
	related_files_json TEXT,
	valid_from DATETIME NOT NULL,
	valid_until DATETIME,
	deprecated INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS failed_tasks (
	path TEXT PRIMARY KEY,
	attempts INTEGER NOT NULL,
	error TEXT,
	next_retry DATETIME NOT NULL,
	last_failed DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_failed_tasks_next_retry ON failed_tasks(next_retry);

CREATE TABLE IF NOT EXISTS engine_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	index_version TEXT NOT NULL,
	doc_count INTEGER NOT NULL,
	last_commit_ts DATETIME,
	config_hash TEXT NOT NULL
);
INSERT OR IGNORE INTO engine_state (id, index_version, doc_count, config_hash)
VALUES (1, '', 0, '');
`

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return sarierrors.Wrap(sarierrors.DBError, "initialize schema", err)
	}
	return nil
}

// gcLoop drives the tombstone GC and idle checkpoint tasks described
// in §4.1 "Key algorithms".
func (s *Store) gcLoop() {
	defer s.gcWG.Done()
	gcGrace := time.Duration(s.cfg.Store.GCGraceHours) * time.Hour
	if gcGrace <= 0 {
		gcGrace = 24 * time.Hour
	}
	checkpointEvery := time.Duration(s.cfg.Store.IdleCheckpointSec) * time.Second
	if checkpointEvery <= 0 {
		checkpointEvery = 30 * time.Second
	}

	gcTicker := time.NewTicker(10 * time.Minute)
	idleTicker := time.NewTicker(checkpointEvery)
	defer gcTicker.Stop()
	defer idleTicker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-gcTicker.C:
			if err := s.collectTombstones(gcGrace); err != nil {
				logging.Error(logging.CategoryStore, "tombstone gc failed: %v", err)
			}
		case <-idleTicker.C:
			if err := s.passiveCheckpoint(); err != nil {
				logging.LogStore("idle checkpoint skipped: %v", err)
			}
		}
	}
}

func (s *Store) passiveCheckpoint() error {
	_, err := s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
	return err
}

// collectTombstones physically removes File rows (and their dependent
// Symbol/Relation rows) whose deleted_ts is older than grace.
func (s *Store) collectTombstones(grace time.Duration) error {
	cutoff := time.Now().Add(-grace)
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT path FROM files WHERE deleted_ts IS NOT NULL AND deleted_ts < ?`, cutoff)
	if err != nil {
		return err
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return err
		}
		paths = append(paths, p)
	}
	rows.Close()
	if len(paths) == 0 {
		return tx.Commit()
	}

	for _, p := range paths {
		if _, err := tx.Exec(`DELETE FROM symbols WHERE path = ?`, p); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM relations WHERE from_path = ? OR to_path = ?`, p, p); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, p); err != nil {
			return err
		}
	}
	logging.LogStore("tombstone gc removed %d files", len(paths))
	return tx.Commit()
}
