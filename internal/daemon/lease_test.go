package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLeaseController_StartsIdleWithNoLeases(t *testing.T) {
	c := NewLeaseController(10*time.Millisecond, func() int { return 0 }, func() {})
	assert.Equal(t, StateIdle, c.State())
}

func TestLeaseController_IssueThenRevokeEntersGrace(t *testing.T) {
	c := NewLeaseController(time.Hour, func() int { return 0 }, func() {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	c.Submit(Event{Kind: EventLeaseIssue, LeaseID: "l1"})
	c.Submit(Event{Kind: EventLeaseRevoke, LeaseID: "l1"})

	assert.Eventually(t, func() bool { return c.State() == StateGrace }, time.Second, time.Millisecond)
}

func TestLeaseController_FinalizesAfterGraceDeadlineWithNoInFlight(t *testing.T) {
	stopped := make(chan struct{})
	c := NewLeaseController(20*time.Millisecond, func() int { return 0 }, func() { close(stopped) })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	c.Submit(Event{Kind: EventShutdownReq})

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("onStop was never called")
	}
	assert.Equal(t, StateStopping, c.State())
}

func TestLeaseController_DoesNotFinalizeWhileWorkersInFlight(t *testing.T) {
	inFlight := 1
	c := NewLeaseController(5*time.Millisecond, func() int { return inFlight }, func() {
		t.Fatal("onStop must not fire while a worker is in flight")
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	c.Submit(Event{Kind: EventShutdownReq})
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateGrace, c.State())
}

func TestLeaseController_NewLeaseDuringGraceCancelsIt(t *testing.T) {
	c := NewLeaseController(time.Hour, func() int { return 0 }, func() {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	c.Submit(Event{Kind: EventShutdownReq})
	assert.Eventually(t, func() bool { return c.State() == StateGrace }, time.Second, time.Millisecond)

	c.Submit(Event{Kind: EventLeaseIssue, LeaseID: "new"})
	assert.Eventually(t, func() bool { return c.State() == StateIdle }, time.Second, time.Millisecond)
}

func TestLeaseController_StopOnlyFiresOnce(t *testing.T) {
	calls := 0
	c := NewLeaseController(5*time.Millisecond, func() int { return 0 }, func() { calls++ })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	c.Submit(Event{Kind: EventShutdownReq})
	assert.Eventually(t, func() bool { return c.State() == StateStopping }, time.Second, time.Millisecond)

	// Further ticks/events must not re-invoke onStop.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, calls)
}
