package pipeline

import (
	"sync"

	"zlogsql/internal/storage"
)

// Queue is the buffering point between the producer path and the writer.
//
// Enqueue never blocks: when the hard cap is reached the oldest records are
// dropped, because the producer must never stall on a slow database. FIFO
// order is preserved otherwise, and RequeueFront puts a failed batch back
// at the head so global ordering survives a retry.
type Queue struct {
	mu      sync.Mutex
	recs    []storage.Record
	cap     int
	dropped uint64

	// wake has capacity 1; a send is a hint, never a blocker.
	wake chan struct{}
}

// NewQueue creates a queue. cap <= 0 means unbounded (memory permitting).
func NewQueue(cap int) *Queue {
	return &Queue{cap: cap, wake: make(chan struct{}, 1)}
}

// Enqueue appends a record. Constant-time, lock-bounded, no I/O.
func (q *Queue) Enqueue(r storage.Record) {
	q.mu.Lock()
	if q.cap > 0 && len(q.recs) >= q.cap {
		// Drop oldest rather than propagating backpressure.
		over := len(q.recs) - q.cap + 1
		q.recs = q.recs[over:]
		q.dropped += uint64(over)
	}
	q.recs = append(q.recs, r)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// DequeueBatch removes and returns up to n records in FIFO order.
// Called only by the writer.
func (q *Queue) DequeueBatch(n int) []storage.Record {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.recs) == 0 || n <= 0 {
		return nil
	}
	if n > len(q.recs) {
		n = len(q.recs)
	}
	batch := make([]storage.Record, n)
	copy(batch, q.recs[:n])
	rest := len(q.recs) - n
	copy(q.recs, q.recs[n:])
	q.recs = q.recs[:rest]
	return batch
}

// RequeueFront reinserts a failed batch at the head, preserving its
// original order ahead of anything enqueued since.
func (q *Queue) RequeueFront(recs []storage.Record) {
	if len(recs) == 0 {
		return
	}
	q.mu.Lock()
	q.recs = append(append(make([]storage.Record, 0, len(recs)+len(q.recs)), recs...), q.recs...)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.recs)
}

// Dropped reports how many records were discarded at the cap.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Wake signals that records may be available.
func (q *Queue) Wake() <-chan struct{} { return q.wake }
