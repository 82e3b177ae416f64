// Package queue provides the append-only inbox between the transport's read
// goroutine and the tick loop.
package queue

import (
	"sync"
)

// Queue is a generic thread-safe FIFO. Producers Push from any goroutine; the
// single consumer takes everything at once with Drain.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	limit int
}

// New creates a new empty, unbounded queue.
func New[T any]() *Queue[T] {
	return NewBounded[T](0)
}

// NewBounded creates a queue holding at most limit items. A limit of 0 means
// unbounded.
func NewBounded[T any](limit int) *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
		limit: limit,
	}
}

// Push appends items to the queue and returns how many did not fit.
func (q *Queue[T]) Push(items ...T) (dropped int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit > 0 {
		room := q.limit - len(q.items)
		if room < len(items) {
			dropped = len(items) - room
			items = items[:room]
		}
	}
	q.items = append(q.items, items...)
	return dropped
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain returns all items in push order and empties the queue.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}
