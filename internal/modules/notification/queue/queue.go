// Package queue holds pending notification requests between ingest and
// the batch flush.
package queue

import (
	"fmt"
	"sync"

	"anoa.com/tunehub/internal/entity"
)

// Item is one queued request plus the number of failed persistence
// attempts it has been part of.
type Item struct {
	Request  entity.NotificationRequest
	Attempts int
}

// Queue is an unbounded FIFO safe for concurrent use. The lock is held
// only for the slice operation itself.
type Queue struct {
	mu    sync.Mutex
	items []Item
}

func New() *Queue {
	return &Queue{}
}

// Push appends item at the tail and returns the queue length after the
// append.
func (q *Queue) Push(item Item) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, item)
	return len(q.items)
}

// PushFront puts items back at the head, keeping their relative order, so
// they are drained again before anything that arrived later.
func (q *Queue) PushFront(items ...Item) int {
	if len(items) == 0 {
		return q.Len()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	merged := make([]Item, 0, len(items)+len(q.items))
	merged = append(merged, items...)
	merged = append(merged, q.items...)
	q.items = merged
	return len(q.items)
}

// DrainUpTo removes and returns up to n of the oldest items.
func (q *Queue) DrainUpTo(n int) []Item {
	if n < 0 {
		panic(fmt.Sprintf("queue: negative drain bound %d", n))
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.items) {
		n = len(q.items)
	}
	if n == 0 {
		return nil
	}

	drained := make([]Item, n)
	copied := copy(drained, q.items[:n])
	if copied != n {
		panic(fmt.Sprintf("queue: drained %d items, expected %d", copied, n))
	}

	// Release references held by the backing array.
	clear(q.items[:n])
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return drained
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
