// Package ctxcancel is the cancellable-context handle used to stop the
// background goroutines owned by a Supervisor's controller loop.
package ctxcancel

import "context"

type Handle struct {
	Ctx    context.Context
	Cancel context.CancelFunc
}

func New(parent context.Context) *Handle {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{Ctx: ctx, Cancel: cancel}
}
