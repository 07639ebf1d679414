package branchpool

import (
	"time"

	"github.com/gaohao-creator/branchpool/clock"
)

// SupervisorOptions configures a Supervisor at construction time.
type SupervisorOptions struct {
	// Min is the lower bound L of the target band.
	Min int32
	// Max is the upper bound U of the target band.
	Max int32
	// TickInterval is the controller loop's sleep duration between
	// rebalance passes. Default 1000ms.
	TickInterval time.Duration
	// OnTick, if set, runs once per tick after the rebalance pass, on
	// the controller goroutine.
	OnTick func()
	// Clock is the injectable tick source; defaults to clock.Real{}.
	Clock clock.Clock
	// Logger overrides the exception sink for a panicking OnTick.
	Logger Logger
}

type SupervisorOption func(*SupervisorOptions)

func WithBounds(min, max int32) SupervisorOption {
	return func(o *SupervisorOptions) {
		o.Min = min
		o.Max = max
	}
}

func WithTickInterval(d time.Duration) SupervisorOption {
	return func(o *SupervisorOptions) { o.TickInterval = d }
}

func WithTickCallback(fn func()) SupervisorOption {
	return func(o *SupervisorOptions) { o.OnTick = fn }
}

func WithClock(c clock.Clock) SupervisorOption {
	return func(o *SupervisorOptions) { o.Clock = c }
}

func WithSupervisorLogger(l Logger) SupervisorOption {
	return func(o *SupervisorOptions) { o.Logger = l }
}

func newSupervisorOptions(opts ...SupervisorOption) *SupervisorOptions {
	o := &SupervisorOptions{
		Min:          1,
		Max:          1,
		TickInterval: time.Second,
		Clock:        clock.Real{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
