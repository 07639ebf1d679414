// Package future provides the default single-producer single-consumer
// one-shot result carrier for value-producing branch tasks. A task
// body's return value or captured error is delivered here and
// re-raised when the consumer calls Get.
package future

import (
	"context"
	"sync"

	"github.com/gaohao-creator/branchpool/errors"
)

// Future carries exactly one value of type T, or the error a task body
// raised in its place. The producer calls Set or SetErr exactly once;
// the consumer calls Get (optionally with a context deadline) any
// number of times after that.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// New returns an unsettled Future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Set settles the future with a value. Only the first call has effect;
// later calls are reported via the returned error.
func (f *Future[T]) Set(v T) error {
	settled := false
	f.once.Do(func() {
		f.value = v
		close(f.done)
		settled = true
	})
	if !settled {
		return errors.ErrFutureAlreadySettled
	}
	return nil
}

// SetErr settles the future with an error, to be re-raised on Get.
func (f *Future[T]) SetErr(err error) error {
	settled := false
	f.once.Do(func() {
		f.err = err
		close(f.done)
		settled = true
	})
	if !settled {
		return errors.ErrFutureAlreadySettled
	}
	return nil
}

// Get blocks until the future is settled and returns the delivered
// value, or re-raises the captured error.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.value, f.err
}

// GetContext blocks until settled or ctx is done, whichever comes
// first.
func (f *Future[T]) GetContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Ready reports whether the future has already been settled, without
// blocking.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
