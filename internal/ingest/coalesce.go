package ingest

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/sari-dev/sari/internal/config"
)

// EventType enumerates the filesystem event kinds the coalesce table
// tracks per path.
type EventType int

const (
	EventWrite EventType = iota
	EventCreate
	EventRemove
	EventRename
)

// coalesceShard is one lock-independent partition of the debounce
// table, generalizing a single global event-debouncer
// mutex into a sharded table so one hot path cannot serialize every
// other path's events during an event storm.
type coalesceShard struct {
	mu     sync.Mutex
	events map[string]EventType
	timers map[string]*time.Timer
}

// CoalesceTable per-path-debounces filesystem events across a sharded
// lock table, per §4.4 "Debounce/coalesce". The debounce window is
// adaptive between debounce_min_ms and debounce_max_ms: a path that
// keeps firing extends its own window up to the max, so a burst of
// writes to one file collapses to one flush.
type CoalesceTable struct {
	shards  []*coalesceShard
	minWait time.Duration
	maxWait time.Duration

	rateMu    sync.Mutex
	recent    int
	windowEnd time.Time

	flush func(path string, ev EventType)
}

// NewCoalesceTable builds a table with cfg.Ingest.CoalesceShards
// shards. flush is invoked once per path after its window elapses.
func NewCoalesceTable(cfg *config.Config, flush func(path string, ev EventType)) *CoalesceTable {
	n := cfg.Ingest.CoalesceShards
	if n <= 0 {
		n = 16
	}
	shards := make([]*coalesceShard, n)
	for i := range shards {
		shards[i] = &coalesceShard{
			events: make(map[string]EventType),
			timers: make(map[string]*time.Timer),
		}
	}
	return &CoalesceTable{
		shards:  shards,
		minWait: time.Duration(cfg.Ingest.DebounceMinMs) * time.Millisecond,
		maxWait: time.Duration(cfg.Ingest.DebounceMaxMs) * time.Millisecond,
		flush:   flush,
	}
}

func (t *CoalesceTable) shardFor(path string) *coalesceShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	return t.shards[h.Sum32()%uint32(len(t.shards))]
}

// Add records one event for path, (re)starting its debounce timer with
// a window widened by the currently observed event rate.
func (t *CoalesceTable) Add(path string, ev EventType) {
	wait := t.adaptiveWait()

	s := t.shardFor(path)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[path] = ev
	if timer, ok := s.timers[path]; ok {
		timer.Stop()
	}
	s.timers[path] = time.AfterFunc(wait, func() { t.flushOne(s, path) })
}

func (t *CoalesceTable) flushOne(s *coalesceShard, path string) {
	s.mu.Lock()
	ev, ok := s.events[path]
	delete(s.events, path)
	delete(s.timers, path)
	s.mu.Unlock()
	if ok && t.flush != nil {
		t.flush(path, ev)
	}
}

// adaptiveWait grows the debounce window toward maxWait as the
// observed event rate (events in the trailing one-second window)
// rises, and relaxes back to minWait once the burst subsides.
func (t *CoalesceTable) adaptiveWait() time.Duration {
	t.rateMu.Lock()
	defer t.rateMu.Unlock()

	now := time.Now()
	if now.After(t.windowEnd) {
		t.recent = 0
		t.windowEnd = now.Add(time.Second)
	}
	t.recent++

	const burstThreshold = 50
	if t.recent <= 1 {
		return t.minWait
	}
	frac := float64(t.recent) / burstThreshold
	if frac > 1 {
		frac = 1
	}
	span := t.maxWait - t.minWait
	return t.minWait + time.Duration(frac*float64(span))
}
