// Package queue provides the FIFO of pending mutation events drained by the
// batch processor.
package queue

import (
	"sync"

	"github.com/RemnantsOfSiren/partysync/types"
)

// Item pairs a mutation event with the future that reports its outcome to
// the originating caller.
type Item struct {
	// Event is the queued mutation.
	Event types.MutationEvent

	// Future is resolved by the batch processor when the event is drained.
	Future *types.Future
}

// Queue is an ordered FIFO of pending mutation items.
//
// Ordering is defined purely by insertion order: events are appended by the
// enqueuing callers and drained oldest-first by the single batch-processor
// loop, which is the sole ordering guarantee the reducer relies on. The
// mutex only protects the slice against concurrent enqueuers; it adds no
// ordering semantics.
type Queue struct {
	mu    sync.Mutex
	items []*Item
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends an item to the tail of the queue. Always succeeds.
func (q *Queue) Enqueue(item *Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, item)
}

// Dequeue removes and returns the oldest item.
//
// Returns:
//   - *Item: The oldest pending item, or nil if the queue is empty
func (q *Queue) Dequeue() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}

	item := q.items[0]
	q.items[0] = nil // release reference
	q.items = q.items[1:]

	return item
}

// Peek returns the oldest item without removing it, or nil if empty.
func (q *Queue) Peek() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}

	return q.items[0]
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Remove removes the first occurrence of the given item.
//
// Supports cancelling an event that has not been drained yet; an item
// already handed to the reducer is unaffected.
//
// Returns:
//   - bool: true if the item was found and removed
func (q *Queue) Remove(item *Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, candidate := range q.items {
		if candidate == item {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}

	return false
}

// Clear discards all pending items.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = nil
}
