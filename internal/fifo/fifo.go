// Package fifo provides an unbounded blocking FIFO queue safe for concurrent
// multi-producer, multi-consumer use. It is the shared intake structure behind
// the workerpool and retry primitives.
package fifo

import "sync"

// Queue is an unbounded FIFO queue of items of type T.
//
// Push never blocks; Pop blocks while the queue is empty and not closed.
// After Close, Pop keeps delivering already-queued items until the queue is
// drained, then reports closed. The zero value is not usable; construct via New.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    []T
	head     int
	closed   bool
}

// New constructs an empty open queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends v to the tail of the queue and wakes one blocked consumer.
// It reports false, leaving the queue unchanged, if the queue is closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.notEmpty.Signal()
	return true
}

// Pop removes and returns the item at the head of the queue, blocking while
// the queue is empty and open. It reports false once the queue is closed and
// fully drained.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.items) && !q.closed {
		q.notEmpty.Wait()
	}

	if q.head == len(q.items) {
		var zero T
		return zero, false
	}

	var zero T
	v := q.items[q.head]
	q.items[q.head] = zero // drop the reference so the backing array can be collected
	q.head++

	// Reclaim the backing array once fully consumed.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return v, true
}

// Len returns the number of queued items not yet consumed.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close marks the queue closed and wakes all blocked consumers. Queued items
// remain poppable; further pushes are rejected. Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}
