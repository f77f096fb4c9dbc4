package pool

import (
	"container/list"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

type acquireResult struct {
	conn *Conn
	err  error
}

// waiter is a parked Acquire call. result is buffered so that the pool can
// hand over a connection without blocking.
type waiter struct {
	id         ulid.ULID
	enqueuedAt time.Time
	deadline   time.Time
	result     chan acquireResult
	elem       *list.Element
}

// waitQueue is a FIFO of waiters. Not safe for concurrent use; the pool
// guards it with its mutex.
type waitQueue struct {
	list    list.List
	entropy *ulid.MonotonicEntropy
}

func (q *waitQueue) len() int {
	return q.list.Len()
}

// push enqueues a waiter. The deadline is fixed here and never extended.
func (q *waitQueue) push(now time.Time, timeout time.Duration) *waiter {
	if q.entropy == nil {
		q.entropy = ulid.Monotonic(rand.Reader, 0)
	}
	id, err := ulid.New(ulid.Timestamp(now), q.entropy)
	if err != nil {
		// now is outside the ULID time range, e.g. a zero clock.
		id = ulid.Make()
	}
	w := &waiter{
		id:         id,
		enqueuedAt: now,
		deadline:   now.Add(timeout),
		result:     make(chan acquireResult, 1),
	}
	w.elem = q.list.PushBack(w)
	return w
}

// pop removes and returns the oldest waiter, or nil.
func (q *waitQueue) pop() *waiter {
	front := q.list.Front()
	if front == nil {
		return nil
	}
	w := q.list.Remove(front).(*waiter)
	w.elem = nil
	return w
}

// remove takes w out of the queue. It reports false if w was already
// dequeued, meaning a result has been or is being delivered to it.
func (q *waitQueue) remove(w *waiter) bool {
	if w.elem == nil {
		return false
	}
	q.list.Remove(w.elem)
	w.elem = nil
	return true
}

func (q *waitQueue) drain() []*waiter {
	ws := make([]*waiter, 0, q.list.Len())
	for w := q.pop(); w != nil; w = q.pop() {
		ws = append(ws, w)
	}
	return ws
}
