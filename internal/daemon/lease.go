// Package daemon implements §4.7: the single-process lifecycle
// controller — singleton startup, blue/green upgrade, session
// refcounting, and the heartbeat/lease suicide state machine.
package daemon

import (
	"context"
	"sync"
	"time"
)

// EventKind names one event on the lifecycle controller's serialized
// event queue, per §4.7 "Heartbeat & leases".
type EventKind string

const (
	EventLeaseIssue     EventKind = "LEASE_ISSUE"
	EventLeaseRenew     EventKind = "LEASE_RENEW"
	EventLeaseRevoke    EventKind = "LEASE_REVOKE"
	EventConnClosed     EventKind = "CONN_CLOSED"
	EventHeartbeatTick  EventKind = "HEARTBEAT_TICK"
	EventShutdownReq    EventKind = "SHUTDOWN_REQUEST"
)

// Event is one item on the LeaseController's queue.
type Event struct {
	Kind    EventKind
	LeaseID string
}

// SuicideState is the controller's own lifecycle state, distinct from
// DeploymentState: idle (leases held or none yet), grace (zero leases,
// waiting out the grace period), stopping (terminal, one-shot).
type SuicideState string

const (
	StateIdle     SuicideState = "idle"
	StateGrace    SuicideState = "grace"
	StateStopping SuicideState = "stopping"
)

// LeaseController runs the suicide state machine described in §4.7:
// grace -> stopping requires lease==0, the grace deadline reached, and
// zero in-flight workers; the stop callback fires exactly once.
type LeaseController struct {
	mu            sync.Mutex
	leases        map[string]struct{}
	state         SuicideState
	graceDeadline time.Time
	graceDuration time.Duration
	inFlight      func() int
	stopOnce      sync.Once
	onStop        func()
	events        chan Event
}

// NewLeaseController builds a controller. inFlight reports the number
// of requests currently being handled (queried only once grace has
// elapsed); onStop is invoked exactly once when the machine reaches
// "stopping".
func NewLeaseController(graceDuration time.Duration, inFlight func() int, onStop func()) *LeaseController {
	return &LeaseController{
		leases:        make(map[string]struct{}),
		state:         StateIdle,
		graceDuration: graceDuration,
		inFlight:      inFlight,
		onStop:        onStop,
		events:        make(chan Event, 256),
	}
}

// Submit enqueues ev for processing by Run. Non-blocking: the queue is
// generously buffered since every event is O(1) to handle.
func (c *LeaseController) Submit(ev Event) {
	select {
	case c.events <- ev:
	default:
		// Queue saturated is a sign of a runaway client; drop rather
		// than block the caller, same as any bounded mailbox.
	}
}

// Run drains the event queue until ctx is done. It must run on its own
// goroutine; all state mutation happens here, so the machine needs no
// separate lock against itself (the mutex below only guards State()
// reads from other goroutines).
func (c *LeaseController) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			c.handle(ev)
		case <-ticker.C:
			c.handle(Event{Kind: EventHeartbeatTick})
		}
	}
}

func (c *LeaseController) handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case EventLeaseIssue, EventLeaseRenew:
		c.leases[ev.LeaseID] = struct{}{}
		if c.state == StateGrace {
			c.state = StateIdle
			recordSuicideTransition(StateIdle)
		}
	case EventLeaseRevoke, EventConnClosed:
		delete(c.leases, ev.LeaseID)
		c.maybeEnterGrace()
	case EventShutdownReq:
		c.maybeEnterGrace()
	case EventHeartbeatTick:
		c.maybeFinalize()
	}
	setLeasesActive(len(c.leases))
}

// maybeEnterGrace starts the grace countdown once leases drop to zero,
// idempotently (re-entering grace does not push the deadline out).
func (c *LeaseController) maybeEnterGrace() {
	if c.state != StateIdle {
		return
	}
	if len(c.leases) > 0 {
		return
	}
	c.state = StateGrace
	c.graceDeadline = time.Now().Add(c.graceDuration)
	recordSuicideTransition(StateGrace)
}

// maybeFinalize promotes grace -> stopping once the deadline has
// passed, leases are still zero, and no worker is in flight.
func (c *LeaseController) maybeFinalize() {
	if c.state != StateGrace {
		return
	}
	if len(c.leases) > 0 {
		c.state = StateIdle
		return
	}
	if time.Now().Before(c.graceDeadline) {
		return
	}
	if c.inFlight() > 0 {
		return
	}
	c.state = StateStopping
	recordSuicideTransition(StateStopping)
	c.stopOnce.Do(c.onStop)
}

// State returns the controller's current suicide state.
func (c *LeaseController) State() SuicideState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LeaseCount returns the number of currently held leases.
func (c *LeaseController) LeaseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.leases)
}
