package tools

import (
	"fmt"
	"sync"
)

// Session tracks the per-workspace-session state the §6/§7/§8 read
// stabilization gate needs: whether a search has ever been run, which
// candidate_ref tokens a prior search minted, and the session-wide read
// budget (§8 "Session-wide read budget enforced"). One Session is built
// alongside a Deps and lives for that workspace session's lifetime —
// the daemon process for `daemon start`, or the stdio connection for
// `mcp`.
type Session struct {
	mu         sync.Mutex
	searched   bool
	knownRefs  map[string]struct{}
	reads      int
	totalLines int

	refSeq uint64
}

// NewSession returns an empty Session, as a client that has neither
// searched nor read anything yet.
func NewSession() *Session {
	return &Session{knownRefs: make(map[string]struct{})}
}

// IssueCandidateRef mints and records a new candidate_ref token, marking
// the session as having searched. Every search hit gets its own ref.
func (s *Session) IssueCandidateRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searched = true
	s.refSeq++
	ref := fmt.Sprintf("cref-%d", s.refSeq)
	s.knownRefs[ref] = struct{}{}
	return ref
}

// EverSearched reports whether search has been called at least once
// this session.
func (s *Session) EverSearched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searched
}

// ValidRef reports whether ref was minted by a prior IssueCandidateRef
// call this session.
func (s *Session) ValidRef(ref string) bool {
	if ref == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.knownRefs[ref]
	return ok
}

// RecordRead accounts one successful read of lines lines against the
// session's budget.
func (s *Session) RecordRead(lines int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	s.totalLines += lines
}

// BudgetExhausted reports whether the session has already hit either
// half of the §8 read budget (max_reads_per_session, max_total_read_lines).
func (s *Session) BudgetExhausted(maxReads, maxTotalLines int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxReads > 0 && s.reads >= maxReads {
		return true
	}
	if maxTotalLines > 0 && s.totalLines >= maxTotalLines {
		return true
	}
	return false
}

// Snapshot reports the session's current counters, for
// meta.stabilization.metrics_snapshot.
func (s *Session) Snapshot() (reads, totalLines int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.totalLines
}
