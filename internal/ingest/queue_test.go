package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sari-dev/sari/internal/types"
)

func TestWorkQueue_HigherPriorityPopsFirstWithinSameRoot(t *testing.T) {
	q := NewWorkQueue()
	q.Push(FileItem{RootID: "r1", RelPath: "low.txt", Priority: 1})
	q.Push(FileItem{RootID: "r1", RelPath: "high.go", Priority: 10})

	item, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "high.go", item.Item.RelPath)
}

func TestWorkQueue_AgingPreventsIndefiniteStarvation(t *testing.T) {
	q := NewWorkQueue()
	q.mu.Lock()
	rq := &rootQueue{}
	q.queues["r1"] = rq
	q.order = append(q.order, "r1")
	rq.items = append(rq.items,
		WorkItem{Item: FileItem{RootID: "r1", RelPath: "old.txt"}, Priority: 1, EnqueuedAt: time.Now().Add(-30 * time.Second)},
		WorkItem{Item: FileItem{RootID: "r1", RelPath: "new.go"}, Priority: 5, EnqueuedAt: time.Now()},
	)
	q.mu.Unlock()

	item, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "old.txt", item.Item.RelPath)
}

func TestWorkQueue_WeightedFairnessAcrossRoots(t *testing.T) {
	q := NewWorkQueue()
	for i := 0; i < 10; i++ {
		q.Push(FileItem{RootID: "heavy", RelPath: "h.go", Priority: 1})
		q.Push(FileItem{RootID: "light", RelPath: "l.go", Priority: 1})
	}
	q.SetWeight("heavy", 3)
	q.SetWeight("light", 1)

	counts := map[types.RootID]int{}
	for i := 0; i < 8; i++ {
		item, ok := q.Pop()
		require.True(t, ok)
		counts[item.Item.RootID]++
	}
	assert.Greater(t, counts["heavy"], counts["light"])
}

func TestWorkQueue_DepthCountsAcrossAllRoots(t *testing.T) {
	q := NewWorkQueue()
	q.Push(FileItem{RootID: "r1", RelPath: "a"})
	q.Push(FileItem{RootID: "r2", RelPath: "b"})
	assert.Equal(t, 2, q.Depth())
}

func TestWorkQueue_PopOnEmptyReturnsFalse(t *testing.T) {
	q := NewWorkQueue()
	_, ok := q.Pop()
	assert.False(t, ok)
}
