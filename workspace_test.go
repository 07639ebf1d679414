package branchpool

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/multierr"

	berrors "github.com/gaohao-creator/branchpool/errors"
)

func TestWorkspace_AttachDetachRoundTrip(t *testing.T) {
	ws := NewWorkspace(nil)
	b := NewBranch(WithInitialWorkers(1))
	id, err := ws.AttachBranch(b)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	got, err := ws.DetachBranch(id)
	if err != nil {
		t.Fatalf("detach: %v", err)
	}
	if got != b {
		t.Fatal("detach did not return the same branch instance")
	}
	if _, err := ws.LookupBranch(id); err != berrors.ErrUnknownBranchID {
		t.Fatalf("lookup after detach should fail, got %v", err)
	}
	b.Release()
}

// TestWorkspace_BalancedDispatch: two branches of size 1, 1000
// 10ms-sleep tasks, each branch should execute between 400 and 600 of
// them. pick() is exercised directly (this test lives in package
// branchpool) so each dispatch can be attributed to the branch the
// real dispatch policy chose.
func TestWorkspace_BalancedDispatch(t *testing.T) {
	ws := NewWorkspace(nil)
	branches := make([]*Branch, 2)
	for i := range branches {
		b := NewBranch(WithInitialWorkers(1))
		if _, err := ws.AttachBranch(b); err != nil {
			t.Fatalf("attach: %v", err)
		}
		branches[i] = b
	}
	index := map[*Branch]int{branches[0]: 0, branches[1]: 1}

	var mu sync.Mutex
	counts := make([]int, 2)
	var wg sync.WaitGroup
	const total = 1000
	wg.Add(total)
	for j := 0; j < total; j++ {
		b, err := ws.pick()
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		i := index[b]
		if err := b.Submit(func() {
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			counts[i]++
			mu.Unlock()
			wg.Done()
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	wg.Wait()

	mu.Lock()
	c0, c1 := counts[0], counts[1]
	mu.Unlock()
	if c0 < 400 || c0 > 600 || c1 < 400 || c1 > 600 {
		t.Fatalf("unbalanced dispatch: branch0=%d branch1=%d (want each in [400,600])", c0, c1)
	}
	if err := ws.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestWorkspace_ShutdownOrderStopsSupervisorsBeforeBranches(t *testing.T) {
	ws := NewWorkspace(nil)
	b := NewBranch(WithInitialWorkers(1))
	if _, err := ws.AttachBranch(b); err != nil {
		t.Fatalf("attach branch: %v", err)
	}
	sup, err := NewSupervisor(WithBounds(1, 2), WithTickInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	if _, err := ws.AttachSupervisor(sup); err != nil {
		t.Fatalf("attach supervisor: %v", err)
	}
	sup.Supervise(b)

	if err := ws.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if b.LiveWorkers() != 0 {
		t.Fatalf("branch should be fully drained after shutdown, live=%d", b.LiveWorkers())
	}

	spare := NewBranch()
	defer spare.Release()
	if _, err := ws.AttachBranch(spare); err != berrors.ErrWorkspaceShutdown {
		t.Fatalf("attach after shutdown should fail, got %v", err)
	}
	if err := ws.Submit(func() {}); err != berrors.ErrWorkspaceShutdown {
		t.Fatalf("submit after shutdown should fail, got %v", err)
	}
}

func TestWorkspace_ForEachAggregatesErrors(t *testing.T) {
	ws := NewWorkspace(nil)
	for i := 0; i < 3; i++ {
		if _, err := ws.AttachBranch(NewBranch(WithInitialWorkers(1))); err != nil {
			t.Fatalf("attach: %v", err)
		}
	}
	defer ws.Shutdown()

	boom := berrors.ErrBatchTooShort
	err := ws.ForEach(func(b *Branch) error { return boom })
	if got := len(multierr.Errors(err)); got != 3 {
		t.Fatalf("want 3 aggregated errors, got %d: %v", got, err)
	}
}
