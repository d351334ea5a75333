// Package types holds the shared data-model for Sari: Roots, Files,
// Symbols, Relations, Snippets, Contexts, FailedTasks and EngineState.
// It has no internal dependencies so every other package can import it.
package types

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// RootID is the stable identifier for a watched workspace: a hash of its
// canonicalized absolute path plus the follow-symlinks flag. It is never
// recomputed for the lifetime of a Root.
type RootID string

// NewRootID hashes a canonicalized absolute path and a follow-symlinks
// flag into a stable RootID. Canonicalization lowers the path on
// case-insensitive filesystems is intentionally NOT performed here —
// callers pass an already-resolved real path.
func NewRootID(absPath string, followSymlinks bool) RootID {
	clean := filepath.ToSlash(filepath.Clean(absPath))
	h := xxhash.New()
	_, _ = h.WriteString(clean)
	if followSymlinks {
		_, _ = h.WriteString("|symlinks=1")
	} else {
		_, _ = h.WriteString("|symlinks=0")
	}
	return RootID(fmt.Sprintf("r%016x", h.Sum64()))
}

// DocID is the primary key for all per-file data in Store and TextIndex:
// "<root_id>/<rel_path>". rel_path always uses forward slashes and never
// carries a leading "./".
type DocID string

// NewDocID builds the canonical doc_id for a root + relative path.
func NewDocID(root RootID, relPath string) DocID {
	return DocID(string(root) + "/" + NormalizeRelPath(relPath))
}

// NormalizeRelPath forces forward slashes and strips any leading "./".
func NormalizeRelPath(relPath string) string {
	p := filepath.ToSlash(relPath)
	p = strings.TrimPrefix(p, "./")
	return p
}

// Split splits a DocID back into its root and relative path components.
func (d DocID) Split() (RootID, string) {
	s := string(d)
	idx := strings.IndexByte(s, '/')
	if idx < 0 {
		return RootID(s), ""
	}
	return RootID(s[:idx]), s[idx+1:]
}

// Repo returns the coarse filter value for a relative path: its first
// path segment, or "__root__" if the path has no directory component.
func Repo(relPath string) string {
	p := NormalizeRelPath(relPath)
	idx := strings.IndexByte(p, '/')
	if idx < 0 {
		return "__root__"
	}
	return p[:idx]
}

// ContentHash returns a stable content hash for file bytes, used for
// File.content_hash and for detecting unchanged (mtime,size,content_hash)
// on re-ingest.
func ContentHash(content []byte) string {
	return fmt.Sprintf("h%016x", xxhash.Sum64(content))
}

// SymbolID is a stable identifier for a symbol, derived from its
// qualified name and declaring path.
type SymbolID string

// NewSymbolID derives a stable SymbolID from a doc and a qualified name.
func NewSymbolID(doc DocID, qualname string) SymbolID {
	h := xxhash.New()
	_, _ = h.WriteString(string(doc))
	_, _ = h.WriteByte('#')
	_, _ = h.WriteString(qualname)
	return SymbolID(fmt.Sprintf("s%016x", h.Sum64()))
}
