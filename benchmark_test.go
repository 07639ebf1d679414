package branchpool

import (
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
)

const (
	RunTimes   = 1e4
	BranchSize = 64
)

var benchSink uint64

func BenchmarkDirectGoroutine_FixedTasks(b *testing.B) {
	b.ReportAllocs()
	var counter uint64
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		var wg sync.WaitGroup
		wg.Add(RunTimes)
		for j := 0; j < RunTimes; j++ {
			go func() {
				atomic.AddUint64(&counter, 1)
				wg.Done()
			}()
		}
		wg.Wait()
	}
	benchSink = atomic.LoadUint64(&counter)
}

func BenchmarkBranch_FixedTasks(b *testing.B) {
	b.ReportAllocs()
	br := NewBranch(WithInitialWorkers(BranchSize), WithName("bench"))
	defer br.Release()

	var counter uint64
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var wg sync.WaitGroup
		wg.Add(RunTimes)
		for j := 0; j < RunTimes; j++ {
			_ = br.Submit(func() {
				atomic.AddUint64(&counter, 1)
				wg.Done()
			})
		}
		wg.Wait()
	}
	benchSink = atomic.LoadUint64(&counter)
}

func BenchmarkBranch_SequentialBatch(b *testing.B) {
	b.ReportAllocs()
	br := NewBranch(WithInitialWorkers(BranchSize), WithName("bench-batch"))
	defer br.Release()

	var counter uint64
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var wg sync.WaitGroup
		const batches = RunTimes / 10
		wg.Add(batches)
		for j := 0; j < batches; j++ {
			fns := make([]func(), 10)
			for k := range fns[:len(fns)-1] {
				fns[k] = func() { atomic.AddUint64(&counter, 1) }
			}
			fns[len(fns)-1] = func() {
				atomic.AddUint64(&counter, 1)
				wg.Done()
			}
			_ = br.SubmitBatch(fns...)
		}
		wg.Wait()
	}
	benchSink = atomic.LoadUint64(&counter)
}

func BenchmarkWorkspace_ConcurrentDispatch(b *testing.B) {
	b.ReportAllocs()
	ws := NewWorkspace(nil)
	for i := 0; i < 4; i++ {
		_, _ = ws.AttachBranch(NewBranch(WithInitialWorkers(8)))
	}
	defer ws.Shutdown()

	var counter uint64
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var g errgroup.Group
		for j := 0; j < RunTimes; j++ {
			var wg sync.WaitGroup
			wg.Add(1)
			g.Go(func() error {
				err := ws.Submit(func() {
					atomic.AddUint64(&counter, 1)
					wg.Done()
				})
				if err != nil {
					wg.Done()
					return err
				}
				wg.Wait()
				return nil
			})
		}
		_ = g.Wait()
	}
	benchSink = atomic.LoadUint64(&counter)
}
