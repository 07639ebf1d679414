package branchpool

import (
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gaohao-creator/branchpool/errors"
)

// BranchID and SupervisorID are opaque identifiers, valid only for the
// Workspace instance that issued them.
type BranchID int64
type SupervisorID int64

type branchEntry struct {
	id BranchID
	b  *Branch
}

type supervisorEntry struct {
	id SupervisorID
	s  *Supervisor
}

// Workspace owns a collection of Branches and Supervisors, assigns
// each a stable identifier, routes externally submitted tasks to the
// least-loaded branch, and enforces the shutdown order that keeps a
// Supervisor from observing a Branch past Draining.
type Workspace struct {
	log *zap.Logger

	mu         sync.Mutex
	branches   []branchEntry
	branchIdx  map[BranchID]int
	supers     []supervisorEntry
	superIdx   map[SupervisorID]int
	nextBranch int64
	nextSuper  int64
	cursor     int
	shutdown   atomic.Bool
}

// NewWorkspace returns an empty Workspace. logger may be nil, in which
// case a no-op zap logger is used.
func NewWorkspace(logger *zap.Logger) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{
		log:       logger,
		branchIdx: make(map[BranchID]int),
		superIdx:  make(map[SupervisorID]int),
	}
}

// AttachBranch accepts ownership of a freshly constructed Branch and
// returns its identifier.
func (w *Workspace) AttachBranch(b *Branch) (BranchID, error) {
	if w.shutdown.Load() {
		return 0, errors.ErrWorkspaceShutdown
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	id := BranchID(w.nextBranch + 1)
	w.nextBranch++
	w.branchIdx[id] = len(w.branches)
	w.branches = append(w.branches, branchEntry{id: id, b: b})
	w.log.Debug("branch attached", zap.Int64("branch_id", int64(id)))
	return id, nil
}

// AttachSupervisor accepts ownership of a freshly constructed
// Supervisor and returns its identifier.
func (w *Workspace) AttachSupervisor(s *Supervisor) (SupervisorID, error) {
	if w.shutdown.Load() {
		return 0, errors.ErrWorkspaceShutdown
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	id := SupervisorID(w.nextSuper + 1)
	w.nextSuper++
	w.superIdx[id] = len(w.supers)
	w.supers = append(w.supers, supervisorEntry{id: id, s: s})
	w.log.Debug("supervisor attached", zap.Int64("supervisor_id", int64(id)))
	return id, nil
}

// DetachBranch releases ownership of the branch identified by id and
// returns it to the caller. The caller becomes responsible for
// stopping any supervisor still watching it before destroying it.
func (w *Workspace) DetachBranch(id BranchID) (*Branch, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i, ok := w.branchIdx[id]
	if !ok {
		return nil, errors.ErrUnknownBranchID
	}
	b := w.branches[i].b
	w.removeBranchAt(i)
	w.log.Debug("branch detached", zap.Int64("branch_id", int64(id)))
	return b, nil
}

// DetachSupervisor releases ownership of the supervisor identified by
// id and returns it to the caller.
func (w *Workspace) DetachSupervisor(id SupervisorID) (*Supervisor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i, ok := w.superIdx[id]
	if !ok {
		return nil, errors.ErrUnknownSupervisorID
	}
	s := w.supers[i].s
	w.removeSuperAt(i)
	w.log.Debug("supervisor detached", zap.Int64("supervisor_id", int64(id)))
	return s, nil
}

// removeBranchAt keeps the remaining branches in attach (identifier)
// order, which pick and ForEach rely on.
func (w *Workspace) removeBranchAt(i int) {
	delete(w.branchIdx, w.branches[i].id)
	w.branches = append(w.branches[:i], w.branches[i+1:]...)
	for j := i; j < len(w.branches); j++ {
		w.branchIdx[w.branches[j].id] = j
	}
}

func (w *Workspace) removeSuperAt(i int) {
	removedID := w.supers[i].id
	last := len(w.supers) - 1
	w.supers[i] = w.supers[last]
	w.superIdx[w.supers[i].id] = i
	delete(w.superIdx, removedID)
	w.supers = w.supers[:last]
}

// LookupBranch resolves an identifier to its Branch.
func (w *Workspace) LookupBranch(id BranchID) (*Branch, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i, ok := w.branchIdx[id]
	if !ok {
		return nil, errors.ErrUnknownBranchID
	}
	return w.branches[i].b, nil
}

// LookupSupervisor resolves an identifier to its Supervisor.
func (w *Workspace) LookupSupervisor(id SupervisorID) (*Supervisor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i, ok := w.superIdx[id]
	if !ok {
		return nil, errors.ErrUnknownSupervisorID
	}
	return w.supers[i].s, nil
}

// Submit dispatches a value-less, normal-priority task to the
// least-loaded attached branch.
func (w *Workspace) Submit(fn func()) error {
	b, err := w.pick()
	if err != nil {
		return err
	}
	return b.Submit(fn)
}

// SubmitUrgent is Submit at urgent priority.
func (w *Workspace) SubmitUrgent(fn func()) error {
	b, err := w.pick()
	if err != nil {
		return err
	}
	return b.SubmitUrgent(fn)
}

// SubmitBatch dispatches a sequential batch to the least-loaded
// attached branch.
func (w *Workspace) SubmitBatch(fns ...func()) error {
	b, err := w.pick()
	if err != nil {
		return err
	}
	return b.SubmitBatch(fns...)
}

// pick implements the dispatch policy: smallest observed queue depth
// among attached branches, ties broken by a round-robin cursor in
// identifier order. The workspace lock is not held across the scan and
// the caller's subsequent submit — deliberately racy-benign.
func (w *Workspace) pick() (*Branch, error) {
	if w.shutdown.Load() {
		return nil, errors.ErrWorkspaceShutdown
	}
	w.mu.Lock()
	n := len(w.branches)
	if n == 0 {
		w.mu.Unlock()
		return nil, errors.ErrNoBranchesAttached
	}
	snapshot := append([]branchEntry(nil), w.branches...)
	start := w.cursor % n
	w.cursor++
	w.mu.Unlock()

	bestIdx := -1
	var bestDepth int
	for off := 0; off < n; off++ {
		i := (start + off) % n
		d := snapshot[i].b.QueueDepth()
		if bestIdx == -1 || d < bestDepth {
			bestIdx = i
			bestDepth = d
		}
	}
	w.log.Debug("dispatch", zap.Int64("branch_id", int64(snapshot[bestIdx].id)), zap.Int("depth", bestDepth))
	return snapshot[bestIdx].b, nil
}

// ForEach applies fn to every attached branch in identifier order,
// aggregating every error returned rather than short-circuiting on the
// first.
func (w *Workspace) ForEach(fn func(*Branch) error) error {
	w.mu.Lock()
	snapshot := append([]branchEntry(nil), w.branches...)
	w.mu.Unlock()
	var errs error
	for _, e := range snapshot {
		if err := fn(e.b); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Shutdown stops and joins every supervisor concurrently, then drains
// and destroys every branch concurrently, in that order — the fix for
// the dangling-observer hazard: no supervisor tick can run once any
// branch starts draining. After Shutdown begins, Attach and Submit
// fail.
func (w *Workspace) Shutdown() error {
	if !w.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	w.mu.Lock()
	supers := append([]supervisorEntry(nil), w.supers...)
	branches := append([]branchEntry(nil), w.branches...)
	w.mu.Unlock()

	var g errgroup.Group
	for i := len(supers) - 1; i >= 0; i-- {
		s := supers[i].s
		g.Go(func() error {
			s.Stop()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var errs error
	var h errgroup.Group
	for i := len(branches) - 1; i >= 0; i-- {
		b := branches[i].b
		h.Go(func() error {
			b.Release()
			return nil
		})
	}
	if err := h.Wait(); err != nil {
		errs = multierr.Append(errs, err)
	}
	w.log.Debug("workspace shutdown complete")
	return errs
}
