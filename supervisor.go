package branchpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/gaohao-creator/branchpool/errors"
	"github.com/gaohao-creator/branchpool/internal/ctxcancel"
	"github.com/gaohao-creator/branchpool/sink"
)

// Supervisor is a periodic control loop that rebalances one or more
// Branches toward a [Min, Max] target band and fires a tick callback
// once per tick, on its own controller goroutine. A time.Ticker
// selected against a cancellable context drives the loop, generalized
// behind clock.Clock so tests can drive ticks deterministically.
type Supervisor struct {
	opts *SupervisorOptions

	mu       sync.Mutex
	branches []*Branch
	index    map[*Branch]int
	paused   bool
	started  bool
	stopped  bool
	handle   *ctxcancel.Handle
	done     chan struct{}
}

// NewSupervisor validates 1 <= Min <= Max immediately and returns a
// Supervisor with no branches yet registered. The controller goroutine
// does not start until the first Supervise call.
func NewSupervisor(opts ...SupervisorOption) (*Supervisor, error) {
	o := newSupervisorOptions(opts...)
	if o.Min < 1 || o.Min > o.Max {
		return nil, errors.ErrInvalidBounds
	}
	return &Supervisor{
		opts:  o,
		index: make(map[*Branch]int),
		done:  make(chan struct{}),
	}, nil
}

// Supervise registers b for rebalancing. Idempotent on a branch
// already registered. Starts the controller goroutine on the first
// registration, before or after which callers may call Supervise
// again freely.
func (s *Supervisor) Supervise(b *Branch) {
	s.mu.Lock()
	if _, ok := s.index[b]; !ok {
		s.index[b] = len(s.branches)
		s.branches = append(s.branches, b)
	}
	needStart := !s.started && !s.stopped
	if needStart {
		s.started = true
	}
	s.mu.Unlock()
	if needStart {
		s.handle = ctxcancel.New(context.Background())
		go s.run()
	}
}

// Unsupervise removes b from the supervised set. A no-op if b was not
// registered.
func (s *Supervisor) Unsupervise(b *Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[b]
	if !ok {
		return
	}
	last := len(s.branches) - 1
	s.branches[i] = s.branches[last]
	s.index[s.branches[i]] = i
	s.branches = s.branches[:last]
	delete(s.index, b)
}

// Pause skips subsequent rebalance passes and tick callbacks, but
// ticking itself continues.
func (s *Supervisor) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume clears Pause.
func (s *Supervisor) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

// Stop terminates the controller goroutine and joins it. Idempotent.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	s.handle.Cancel()
	<-s.done
}

func (s *Supervisor) run() {
	defer close(s.done)
	ticker := s.opts.Clock.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.handle.Ctx.Done():
			return
		case <-ticker.C():
		}
		s.mu.Lock()
		paused := s.paused
		branches := append([]*Branch(nil), s.branches...)
		s.mu.Unlock()
		if paused {
			continue
		}
		for _, b := range branches {
			rebalance(b, s.opts.Min, s.opts.Max)
		}
		s.fireTick()
	}
}

// rebalance implements the supervisor's one-step-per-tick policy: grow
// by 1 if the queue is non-empty and below the upper bound, shrink by
// 1 if the queue is empty and above the lower bound, otherwise leave
// the target unchanged. Guards on TargetWorkers rather than
// LiveWorkers: Shrink only marks a worker, and the live count doesn't
// decrement until that worker observes its decline flag and exits, so
// reading LiveWorkers here could let a fast run of ticks issue another
// Shrink before the prior one has taken effect and drive the target
// below min. TargetWorkers is updated synchronously by Grow/Shrink, so
// it always reflects the most recent rebalance decision.
func rebalance(b *Branch, min, max int32) {
	d := b.QueueDepth()
	w := b.TargetWorkers()
	switch {
	case d > 0 && w < max:
		b.Grow(1)
	case d == 0 && w > min:
		b.Shrink(1)
	}
}

func (s *Supervisor) fireTick() {
	if s.opts.OnTick == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			msg := fmt.Sprintf("panic: %v", p)
			if s.opts.Logger != nil {
				s.opts.Logger.Printf("supervisor tick: %s", msg)
				return
			}
			sink.Report("supervisor", msg)
		}
	}()
	s.opts.OnTick()
}
