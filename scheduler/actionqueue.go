package scheduler

import "sync"

// Action is a nullary closure returning an error, always executed on the
// control thread. Ownership: the ActionQueue owns an Action from Push until
// it is handed back by Pop; closures may capture moved TaskSpecs.
type Action func() error

// ActionQueue is a multi-producer, single-consumer queue of Actions. Push is
// safe to call from arbitrary worker goroutines; Pop blocks and must only
// ever be called from one goroutine (the control thread), which is what
// lets the scheduler treat every Action's effects as linearized.
//
// Ordering only needs to be "per-producer FIFO, cross-producer unordered" —
// there is no replay or deterministic-ordering requirement here, so a
// plain FIFO slice behind a mutex plus a condition variable is enough; no
// priority heap or ordering key is needed.
type ActionQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Action
	closed bool
}

// NewActionQueue constructs an empty queue.
func NewActionQueue() *ActionQueue {
	q := &ActionQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues action. Lock-free from the caller's perspective in the sense
// that it never blocks on queue capacity (the queue is unbounded) — it only
// ever holds the mutex for the duration of an append.
func (q *ActionQueue) Push(action Action) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, action)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop blocks until an Action is available or the queue is closed and
// drained, returning ErrQueueClosed in the latter case.
func (q *ActionQueue) Pop() (Action, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, ErrQueueClosed
	}
	a := q.items[0]
	q.items = q.items[1:]
	return a, nil
}

// TryPop returns immediately with ErrEmpty if no Action is buffered.
func (q *ActionQueue) TryPop() (Action, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		if q.closed {
			return nil, ErrQueueClosed
		}
		return nil, ErrEmpty
	}
	a := q.items[0]
	q.items = q.items[1:]
	return a, nil
}

// Size returns an approximate current length; approximate because producers
// may be appending concurrently with the read.
func (q *ActionQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Empty reports whether the queue currently holds no actions.
func (q *ActionQueue) Empty() bool {
	return q.Size() == 0
}

// Drain removes and discards every currently buffered action without
// executing them, returning how many were dropped. Used by Deactivate to
// discard pending work before posting the final shutdown action.
func (q *ActionQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Close marks the queue closed: further Push calls are ignored, and Pop
// returns ErrQueueClosed once the buffered items are exhausted.
func (q *ActionQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
