package eval

import (
	"sync"
	"time"
)

type queued struct {
	id  uint64
	req Request
}

// requestQueue is an unbounded FIFO of pending requests. Producers never
// block; the consumer drains in batches and parks on notify between them.
type requestQueue struct {
	mu     sync.Mutex
	queue  []queued
	notify chan struct{}
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		queue:  make([]queued, 0, 256),
		notify: make(chan struct{}, 1),
	}
}

func (q *requestQueue) Enqueue(item queued) {
	q.mu.Lock()
	q.queue = append(q.queue, item)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// DequeueBatch moves up to max items into dst and returns it.
func (q *requestQueue) DequeueBatch(dst []queued, max int) []queued {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.queue)
	if n > max {
		n = max
	}
	dst = append(dst, q.queue[:n]...)
	rest := copy(q.queue, q.queue[n:])
	clear(q.queue[rest:])
	q.queue = q.queue[:rest]
	return dst
}

// Wait parks until an item may be available, stop is closed, or the poll
// interval elapses.
func (q *requestQueue) Wait(stop <-chan struct{}, poll time.Duration) {
	t := time.NewTimer(poll)
	defer t.Stop()
	select {
	case <-q.notify:
	case <-stop:
	case <-t.C:
	}
}

func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}
