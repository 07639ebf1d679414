// Package branchpool is an in-process asynchronous task execution
// framework: a dynamic thread pool ("Branch") with priority
// differentiation and batched submission, a periodic "Supervisor" that
// rebalances branches toward a target band, and a "Workspace" that owns
// both and dispatches externally submitted work to the least-loaded
// branch.
//
// Generalized from a lease-a-worker design into a shared priority
// queue polled by a fixed set of long-lived workers, since a single
// Branch must accept both value-less and heterogeneously-typed
// value-producing tasks.
package branchpool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gaohao-creator/branchpool/errors"
	"github.com/gaohao-creator/branchpool/future"
	"github.com/gaohao-creator/branchpool/queue"
	"github.com/gaohao-creator/branchpool/sink"
)

type branchState = int32

const (
	branchRunning branchState = iota
	branchDraining
	branchStopped
)

// WaitResult reports which condition ended a WaitForTasks call.
type WaitResult int

const (
	Drained WaitResult = iota
	TimedOut
)

// workerHandle is a worker's identity. Workers are tracked by pointer
// identity in Branch.workers, never by index, matching "workers are
// identified by their thread identity only."
//
// Two independent flags give a worker two distinct exit modes: exit is
// set by Release and means drain the backlog, then exit; decline is
// set by Shrink and means exit immediately after the current task,
// without taking another entry off the queue.
type workerHandle struct {
	exit    atomic.Bool
	decline atomic.Bool
}

// Branch is a dynamic thread pool owning one task queue and a set of
// worker goroutines.
type Branch struct {
	name    string
	opts    *Options
	q       *queue.Queue
	state   atomic.Int32
	target  atomic.Int32
	live    atomic.Int32
	workers sync.Map // *workerHandle -> struct{}
	wg      sync.WaitGroup
}

// NewBranch constructs a Branch, eagerly spawning InitialWorkers
// workers (default 1) and setting the target count to match.
func NewBranch(opts ...Option) *Branch {
	o := NewOptions(opts...)
	if o.InitialWorkers < 0 {
		o.InitialWorkers = 0
	}
	b := &Branch{
		name: o.Name,
		opts: o,
		q:    queue.New(),
	}
	b.state.Store(branchRunning)
	b.target.Store(int32(o.InitialWorkers))
	for i := 0; i < o.InitialWorkers; i++ {
		b.spawnWorker()
	}
	return b
}

// Name returns the branch's descriptive label.
func (b *Branch) Name() string { return b.name }

// Submit enqueues a value-less, normal-priority task.
func (b *Branch) Submit(fn func()) error {
	return b.enqueue(&queue.Entry{Run: b.wrapValueless(fn)}, false)
}

// SubmitUrgent enqueues a value-less, urgent-priority task at the
// queue head.
func (b *Branch) SubmitUrgent(fn func()) error {
	return b.enqueue(&queue.Entry{Run: b.wrapValueless(fn)}, true)
}

// SubmitBatch packages two or more value-less callables into one
// composite, normal-priority queue entry that a single worker runs
// consecutively in argument order with no re-entry into the queue.
func (b *Branch) SubmitBatch(fns ...func()) error {
	if len(fns) < 2 {
		return errors.ErrBatchTooShort
	}
	batch := make([]func(), len(fns))
	copy(batch, fns)
	run := func() {
		for _, fn := range batch {
			b.runValueless(fn)
		}
	}
	return b.enqueue(&queue.Entry{Run: run}, false)
}

// SubmitValue enqueues a value-producing, normal-priority task and
// returns the Future its result will be delivered through. Exposed as
// a free function (not a Branch method) because Go forbids type
// parameters on methods and one Branch must serve many T's.
func SubmitValue[T any](b *Branch, fn func() (T, error)) (*future.Future[T], error) {
	return submitValue(b, fn, false)
}

// SubmitValueUrgent is SubmitValue at urgent priority.
func SubmitValueUrgent[T any](b *Branch, fn func() (T, error)) (*future.Future[T], error) {
	return submitValue(b, fn, true)
}

func submitValue[T any](b *Branch, fn func() (T, error), urgent bool) (*future.Future[T], error) {
	fut := future.New[T]()
	run := func() {
		defer func() {
			if p := recover(); p != nil {
				_ = fut.SetErr(fmt.Errorf("panic: %v", p))
			}
		}()
		v, err := fn()
		if err != nil {
			_ = fut.SetErr(err)
			return
		}
		_ = fut.Set(v)
	}
	if err := b.enqueue(&queue.Entry{Run: run}, urgent); err != nil {
		_ = fut.SetErr(err)
		return fut, err
	}
	return fut, nil
}

func (b *Branch) enqueue(e *queue.Entry, urgent bool) error {
	if b.state.Load() != branchRunning {
		return errors.ErrBranchShutdown
	}
	if urgent {
		return b.q.PushUrgent(e)
	}
	return b.q.PushNormal(e)
}

// wrapValueless adapts a plain callable into a queue entry body that
// applies the exception policy: recovered panics/errors go to the
// branch's exception sink, never upward, and the worker keeps running.
func (b *Branch) wrapValueless(fn func()) func() {
	return func() { b.runValueless(fn) }
}

func (b *Branch) runValueless(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			b.report(p)
		}
	}()
	fn()
}

// report delivers a recovered panic value to the first of three
// handlers that applies: PanicHandler, which receives the original
// value so a caller can type-switch on it; Logger, which only ever
// sees a formatted message; or, failing both, the process-wide sink.
func (b *Branch) report(p any) {
	if b.opts.PanicHandler != nil {
		b.opts.PanicHandler(p)
		return
	}
	source := b.name
	if source == "" {
		source = "branch"
	}
	message := fmt.Sprintf("panic: %v", p)
	if b.opts.Logger != nil {
		b.opts.Logger.Printf("%s: %s", source, message)
		return
	}
	sink.Report(source, message)
}

// Grow spawns k new workers immediately and raises the target count
// by k.
func (b *Branch) Grow(k int) {
	if k <= 0 || b.state.Load() != branchRunning {
		return
	}
	b.target.Add(int32(k))
	for i := 0; i < k; i++ {
		b.spawnWorker()
	}
}

// Shrink marks k arbitrarily chosen workers to exit after their
// current task and lowers the target count by k, clamped at 0. It
// does not interrupt executing work, and a marked worker does not
// drain the backlog first — it exits at its next iteration regardless
// of queue depth.
func (b *Branch) Shrink(k int) {
	if k <= 0 {
		return
	}
	newTarget := b.target.Add(-int32(k))
	if newTarget < 0 {
		b.target.Store(0)
	}
	marked := 0
	b.workers.Range(func(key, _ any) bool {
		if marked >= k {
			return false
		}
		h := key.(*workerHandle)
		if h.decline.CompareAndSwap(false, true) {
			marked++
		}
		return marked < k
	})
	b.q.Broadcast()
}

// LiveWorkers returns the current live worker count, an eventually
// consistent snapshot.
func (b *Branch) LiveWorkers() int32 { return b.live.Load() }

// TargetWorkers returns the current target worker count.
func (b *Branch) TargetWorkers() int32 { return b.target.Load() }

// QueueDepth returns the current queue depth, an eventually consistent
// snapshot.
func (b *Branch) QueueDepth() int { return b.q.Depth() }

// WaitForTasks blocks until the queue is empty and every worker is
// idle, or timeout elapses (timeout <= 0 means wait forever). New
// arrivals during the wait reset the condition, per the queue's own
// WaitIdle contract.
func (b *Branch) WaitForTasks(timeout time.Duration) WaitResult {
	if b.q.WaitIdle(timeout) {
		return Drained
	}
	return TimedOut
}

// Release drains queued tasks, signals every worker to exit once the
// queue empties, and blocks until all workers have exited. The branch
// transitions Running -> Draining -> Stopped.
func (b *Branch) Release() {
	if !b.state.CompareAndSwap(branchRunning, branchDraining) {
		if b.state.Load() == branchStopped {
			return
		}
	}
	b.workers.Range(func(key, _ any) bool {
		key.(*workerHandle).exit.Store(true)
		return true
	})
	b.q.Close()
	b.wg.Wait()
	b.state.Store(branchStopped)
}

func (b *Branch) spawnWorker() {
	h := &workerHandle{}
	b.workers.Store(h, struct{}{})
	b.live.Add(1)
	b.wg.Add(1)
	go b.runWorker(h)
}

// runWorker is the worker loop: acquire the queue, wait for work or an
// exit signal, pop and run under the exception policy, repeat. When it
// exits it removes itself from the worker set and signals drain if it
// was the last busy worker.
func (b *Branch) runWorker(h *workerHandle) {
	defer func() {
		b.workers.Delete(h)
		b.live.Add(-1)
		b.wg.Done()
	}()
	for {
		entry, ok := b.q.Pop(h.decline.Load, h.exit.Load)
		if !ok {
			return
		}
		entry.Run()
		b.q.Done()
	}
}
