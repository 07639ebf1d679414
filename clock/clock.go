// Package clock abstracts the tick source a Supervisor sleeps against,
// so tests can drive a control loop deterministically instead of
// sleeping wall-clock milliseconds.
package clock

import "time"

// Ticker is the minimal surface a Supervisor needs from a ticking
// source: a channel that fires and a way to stop it.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates Tickers. The real clock wraps time.NewTicker; tests
// inject a fake one to advance time without sleeping.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// Real is the production Clock, backed by time.NewTicker.
type Real struct{}

func (Real) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }
