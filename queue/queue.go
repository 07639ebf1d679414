// Package queue implements the branch's task queue: a mutex-protected,
// dual-ended container with two insertion ends (head for urgent, tail
// for normal/batch) and a single pop end (head). Condition variables
// signal workers on insertion and signal drain waiters when the queue
// empties and every popped entry has finished running.
package queue

import (
	"sync"
	"time"

	eapache "github.com/eapache/queue"

	"github.com/gaohao-creator/branchpool/errors"
)

// Entry is one queued unit of work. Run executes the task body;
// batches pack several callables into a single Run closure so they
// enqueue and dequeue as one entry.
type Entry struct {
	Run func()
}

// Queue is the dual-ended task container described above. The normal
// and batch priority classes share one FIFO backed by
// github.com/eapache/queue (the ring-buffer FIFO used for the same
// purpose in the retrieved corpus); urgent entries live in a small LIFO
// stack checked first on pop.
//
// inFlight counts entries that have been popped but whose Run has not
// yet returned. It is mutated under the same mutex as depth so that
// "drained" (depth == 0 && inFlight == 0) is always checked atomically
// — Pop and Done bracket a running entry.
type Queue struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	drained  *sync.Cond
	normal   *eapache.Queue
	urgent   []*Entry
	inFlight int
	closed   bool
}

// New returns an empty, open Queue.
func New() *Queue {
	q := &Queue{normal: eapache.New()}
	q.nonEmpty = sync.NewCond(&q.mu)
	q.drained = sync.NewCond(&q.mu)
	return q
}

// PushNormal enqueues e at the tail and wakes one waiting popper.
func (q *Queue) PushNormal(e *Entry) error {
	return q.push(e, false)
}

// PushUrgent enqueues e at the head and wakes one waiting popper.
func (q *Queue) PushUrgent(e *Entry) error {
	return q.push(e, true)
}

func (q *Queue) push(e *Entry, urgent bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.ErrQueueClosed
	}
	if urgent {
		q.urgent = append(q.urgent, e)
	} else {
		q.normal.Add(e)
	}
	q.nonEmpty.Signal()
	return nil
}

// Pop blocks until an entry is available or one of two exit
// conditions is observed. decline, if it reports true, is checked
// before every pop attempt — a worker that has been told to decline
// exits immediately without taking another entry, even if the queue
// is non-empty. exit, if it reports true, is only checked once no
// entry is immediately available — a worker that has been told to
// exit still drains the backlog first. Urgent entries (LIFO) take
// priority over normal/batch entries (FIFO). A successful Pop
// increments inFlight; the caller must call Done when the entry's Run
// has returned.
func (q *Queue) Pop(decline, exit func() bool) (*Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if decline != nil && decline() {
			return nil, false
		}
		if e := q.popLocked(); e != nil {
			q.inFlight++
			return e, true
		}
		if exit != nil && exit() {
			return nil, false
		}
		q.nonEmpty.Wait()
	}
}

// Done marks a previously popped entry as finished. Call exactly once
// per successful Pop.
func (q *Queue) Done() {
	q.mu.Lock()
	q.inFlight--
	if q.idleLocked() {
		q.drained.Broadcast()
	}
	q.mu.Unlock()
}

func (q *Queue) popLocked() *Entry {
	if n := len(q.urgent); n > 0 {
		e := q.urgent[n-1]
		q.urgent = q.urgent[:n-1]
		return e
	}
	if q.normal.Length() > 0 {
		return q.normal.Remove().(*Entry)
	}
	return nil
}

func (q *Queue) idleLocked() bool {
	return q.depthLocked() == 0 && q.inFlight == 0
}

// Depth is the number of entries inserted and not yet popped.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depthLocked()
}

func (q *Queue) depthLocked() int {
	return len(q.urgent) + q.normal.Length()
}

// Idle reports whether the queue is empty and every popped entry has
// finished running — the exact condition WaitForTasks blocks on.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.idleLocked()
}

// WaitIdle blocks until Idle() is true, or timeout elapses if
// timeout > 0 (timeout <= 0 waits forever). New arrivals during the
// wait reset the condition, as required.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.idleLocked() {
		return true
	}
	if timeout <= 0 {
		for !q.idleLocked() {
			q.drained.Wait()
		}
		return true
	}
	deadline := time.Now().Add(timeout)
	for !q.idleLocked() {
		remaining := deadline.Sub(time.Now())
		if remaining <= 0 {
			return false
		}
		timedWait(q.drained, &q.mu, remaining)
	}
	return true
}

// Broadcast wakes every popper and drain waiter, used when the queue
// is closed or a resize needs every worker to recheck its exit flag.
func (q *Queue) Broadcast() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nonEmpty.Broadcast()
	q.drained.Broadcast()
}

// Close marks the queue closed; further pushes fail.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.Broadcast()
}

// timedWait wakes cond after d even if nobody signals it, by running a
// timer that itself signals. sync.Cond has no native timed wait.
func timedWait(cond *sync.Cond, mu *sync.Mutex, d time.Duration) {
	timer := time.AfterFunc(d, func() {
		mu.Lock()
		cond.Broadcast()
		mu.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
}
