package ingest

import (
	"sync"
	"time"

	"github.com/sari-dev/sari/internal/types"
)

// WorkItem is one unit of ingest work: a file to load, parse, validate
// and commit.
type WorkItem struct {
	Item     FileItem
	Priority int
	EnqueuedAt time.Time
}

// effectiveScore ages priority upward the longer an item waits, so a
// long queue for one root cannot starve older low-priority items
// indefinitely — anti-starvation per §4.4 "Priority queue".
func (w WorkItem) effectiveScore(now time.Time) float64 {
	age := now.Sub(w.EnqueuedAt).Seconds()
	return float64(w.Priority) + age/2.0
}

// rootQueue is a per-root unordered slice; pop scans it linearly and
// takes the item with the highest effectiveScore at dequeue time.
type rootQueue struct {
	items []WorkItem
}

func (q *rootQueue) Len() int { return len(q.items) }
func (q *rootQueue) pop() (WorkItem, bool) {
	if len(q.items) == 0 {
		return WorkItem{}, false
	}
	now := time.Now()
	bestIdx := 0
	bestScore := q.items[0].effectiveScore(now)
	for i := 1; i < len(q.items); i++ {
		s := q.items[i].effectiveScore(now)
		if s > bestScore {
			bestScore = s
			bestIdx = i
		}
	}
	item := q.items[bestIdx]
	q.items = append(q.items[:bestIdx], q.items[bestIdx+1:]...)
	return item, true
}

// WorkQueue implements §4.4's priority queue with weighted-fair-queueing
// across roots: each root gets a configurable weight (default 1), and
// Dequeue round-robins across roots in proportion to weight so one
// root's backlog cannot starve another's.
type WorkQueue struct {
	mu      sync.Mutex
	notify  chan struct{}
	queues  map[types.RootID]*rootQueue
	weights map[types.RootID]int
	order   []types.RootID // round-robin cursor order
	credits map[types.RootID]int
	cursor  int
}

func NewWorkQueue() *WorkQueue {
	return &WorkQueue{
		notify:  make(chan struct{}, 1),
		queues:  make(map[types.RootID]*rootQueue),
		weights: make(map[types.RootID]int),
		credits: make(map[types.RootID]int),
	}
}

// SetWeight configures root's fair-queueing weight; default is 1.
func (q *WorkQueue) SetWeight(root types.RootID, weight int) {
	if weight < 1 {
		weight = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.weights[root] = weight
}

// Push enqueues item under its root's queue.
func (q *WorkQueue) Push(item FileItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rq, ok := q.queues[item.RootID]
	if !ok {
		rq = &rootQueue{}
		q.queues[item.RootID] = rq
		q.order = append(q.order, item.RootID)
	}
	rq.items = append(rq.items, WorkItem{Item: item, Priority: item.Priority, EnqueuedAt: time.Now()})

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Depth returns the total number of queued items across all roots, for
// backpressure watermark checks.
func (q *WorkQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	total := 0
	for _, rq := range q.queues {
		total += rq.Len()
	}
	return total
}

// Pop returns the next item to process, weighted-fair across roots, or
// false if the queue is empty.
func (q *WorkQueue) Pop() (WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *WorkQueue) popLocked() (WorkItem, bool) {
	n := len(q.order)
	if n == 0 {
		return WorkItem{}, false
	}
	for i := 0; i < n; i++ {
		idx := (q.cursor + i) % n
		root := q.order[idx]
		rq := q.queues[root]
		if rq == nil || rq.Len() == 0 {
			continue
		}
		weight := q.weights[root]
		if weight < 1 {
			weight = 1
		}
		if q.credits[root] <= 0 {
			q.credits[root] = weight
		}
		q.credits[root]--
		item, ok := rq.pop()
		if ok {
			q.cursor = idx
			if rq.Len() == 0 || q.credits[root] <= 0 {
				q.cursor = (idx + 1) % n
			}
			return item, true
		}
	}
	return WorkItem{}, false
}

// Wait returns the channel Push signals on. It holds at most one
// pending signal, so a receive does not guarantee that a Pop will
// succeed, and items already queued do not produce a new signal.
func (q *WorkQueue) Wait() <-chan struct{} {
	return q.notify
}
