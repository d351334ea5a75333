package daemon

import (
	"sync"
	"time"
)

// WorkspaceSession is the per-workspace substructure (indexer, watcher,
// HTTP routes) that the SessionManager refcounts, per §4.7 "Session &
// workspace routing".
type WorkspaceSession struct {
	Workspace string
	refcount  int
	Teardown  func()
}

// SessionManager creates workspace sessions on first use, refcounts
// them across concurrent requests, and tears a session down the moment
// its refcount reaches zero — while the daemon process itself keeps
// running. It also tracks whole-daemon idleness for the idle-TTL timer.
type SessionManager struct {
	mu         sync.Mutex
	sessions   map[string]*WorkspaceSession
	idleTTL    time.Duration
	lastActive time.Time
	inhibited  bool
}

// NewSessionManager builds a manager with the given idle TTL (§4.7
// "idle_sec, default 600 s").
func NewSessionManager(idleTTL time.Duration) *SessionManager {
	return &SessionManager{
		sessions:   make(map[string]*WorkspaceSession),
		idleTTL:    idleTTL,
		lastActive: time.Now(),
	}
}

// Acquire returns the session for ws, creating it via create if this is
// the first reference, and increments its refcount.
func (m *SessionManager) Acquire(ws string, create func() *WorkspaceSession) *WorkspaceSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[ws]
	if !ok {
		sess = create()
		sess.Workspace = ws
		m.sessions[ws] = sess
	}
	sess.refcount++
	m.lastActive = time.Now()
	setSessionsActive(len(m.sessions))
	return sess
}

// Release drops one reference to ws's session. At refcount zero the
// session's Teardown runs and it is removed from the live set.
func (m *SessionManager) Release(ws string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[ws]
	if !ok {
		return
	}
	sess.refcount--
	m.lastActive = time.Now()
	if sess.refcount <= 0 {
		delete(m.sessions, ws)
		if sess.Teardown != nil {
			sess.Teardown()
		}
	}
	setSessionsActive(len(m.sessions))
}

// Inhibit sets or clears the lifecycle "inhibit" signal that suppresses
// the idle-TTL shutdown trigger (§4.7).
func (m *SessionManager) Inhibit(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inhibited = v
}

// IdleExpired reports whether the daemon has had zero live sessions for
// at least idleTTL and is not inhibited — the trigger condition for a
// daemon-wide graceful stop.
func (m *SessionManager) IdleExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inhibited {
		return false
	}
	if len(m.sessions) > 0 {
		return false
	}
	return time.Since(m.lastActive) >= m.idleTTL
}

// ActiveCount returns the number of currently live (refcount>0) sessions.
func (m *SessionManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
