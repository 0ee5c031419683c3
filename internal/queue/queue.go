package queue

import (
	"sync"

	"github.com/rohmanhakim/connector-etl/pkg/failure"
)

// DefaultCapacity is the queue capacity used when configuration does not
// override it.
const DefaultCapacity = 5120

// Queue is a bounded, concurrency-safe FIFO of QueueItem strings. put
// blocks when full; take blocks when empty. Sentinels bypass the normal
// backpressure path but never reorder ahead of items already accepted by
// a preceding put.
type Queue struct {
	items chan string

	mu      sync.Mutex
	aborted bool
}

// New creates a Queue with the given capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{items: make(chan string, capacity)}
}

// Put enqueues item, blocking if the queue is full. It fails with
// failure.KindAborted if the queue has been marked aborted.
func (q *Queue) Put(item string) failure.ClassifiedError {
	q.mu.Lock()
	aborted := q.aborted
	q.mu.Unlock()
	if aborted {
		return failure.New(failure.KindAborted, "queue is aborting, put rejected")
	}
	q.items <- item
	return nil
}

// Take dequeues the next item, blocking if the queue is empty. The
// second return value is false only when the queue's channel has been
// closed with no further items (Close was called and drained).
func (q *Queue) Take() (string, bool) {
	item, ok := <-q.items
	return item, ok
}

// PutSentinel enqueues a sentinel unconditionally, even past the nominal
// capacity and even after Abort has been called — sentinels must always
// reach consumers so they know to exit. It still respects the ordering
// of items already accepted by a preceding Put because it is sent on the
// same channel.
func (q *Queue) PutSentinel(kind string) {
	select {
	case q.items <- kind:
	default:
		// channel momentarily full: spawn a goroutine that blocks until
		// room is available, so PutSentinel itself never blocks the
		// caller (typically the phase's own shutdown path).
		go func() { q.items <- kind }()
	}
}

// Abort marks the queue as aborting: subsequent Put calls fail fast.
// Items already queued are still delivered to Take.
func (q *Queue) Abort() {
	q.mu.Lock()
	q.aborted = true
	q.mu.Unlock()
}

// Aborted reports whether Abort has been called.
func (q *Queue) Aborted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.aborted
}

// Close closes the underlying channel once the caller is certain no
// further Put/PutSentinel calls will happen. Take observes this as
// ok=false once drained.
func (q *Queue) Close() {
	close(q.items)
}
