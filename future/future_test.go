package future

import (
	"context"
	"errors"
	"testing"
	"time"

	berrors "github.com/gaohao-creator/branchpool/errors"
)

func TestFuture_SetThenGet(t *testing.T) {
	f := New[int]()
	if f.Ready() {
		t.Fatal("fresh future should not be ready")
	}
	if err := f.Set(7); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !f.Ready() {
		t.Fatal("future should be ready after Set")
	}
	v, err := f.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != 7 {
		t.Fatalf("got %d, want 7", v)
	}
}

func TestFuture_SetErrThenGet(t *testing.T) {
	f := New[string]()
	boom := errors.New("boom")
	if err := f.SetErr(boom); err != nil {
		t.Fatalf("seterr: %v", err)
	}
	_, err := f.Get()
	if err != boom {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

func TestFuture_DoubleSettleIsRejected(t *testing.T) {
	f := New[int]()
	if err := f.Set(1); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := f.Set(2); err != berrors.ErrFutureAlreadySettled {
		t.Fatalf("second set should be rejected, got %v", err)
	}
	if err := f.SetErr(errors.New("late")); err != berrors.ErrFutureAlreadySettled {
		t.Fatalf("SetErr after Set should also be rejected, got %v", err)
	}
	v, err := f.Get()
	if err != nil || v != 1 {
		t.Fatalf("value should remain the first settle, got (%d, %v)", v, err)
	}
}

func TestFuture_GetContextTimesOutBeforeSettle(t *testing.T) {
	f := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.GetContext(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
}

func TestFuture_GetContextReturnsOnceSettled(t *testing.T) {
	f := New[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = f.Set(42)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := f.GetContext(ctx)
	if err != nil {
		t.Fatalf("getcontext: %v", err)
	}
	if v != 42 {
		t.Fatalf("got %d, want 42", v)
	}
}
