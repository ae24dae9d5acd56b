// Package ipcsem implements the EdgeX counting semaphore, with direct
// unit handoff from poster to waiter (a posted unit can never be stolen
// by a late-arriving try_wait).
package ipcsem

import (
	"errors"
	"sync"

	"github.com/edgexos/edgex/internal/sched"
	"github.com/edgexos/edgex/internal/substrate"
)

var (
	ErrBusy     = errors.New("ipcsem: busy")
	ErrOverflow = errors.New("ipcsem: value at max_value")
)

// Semaphore is a counting semaphore. Invariants (spec §3): `0 ≤ value ≤
// max_value`; waiters present ⇒ value == 0; each post either increments
// value or unblocks exactly one waiter, never both.
type Semaphore struct {
	header substrate.Header

	mu        sync.Mutex
	wq        *substrate.WaitQueue
	sc        sched.Scheduler
	value     int
	maxValue  int
}

// Header satisfies substrate.Object.
func (s *Semaphore) Header() *substrate.Header { return &s.header }

// New creates a semaphore with the given initial value and ceiling. If
// sc is non-nil, the semaphore's wait queue is swept for expired
// deadlines on every scheduler tick, so TimedWait actually times out.
func New(name string, owner sched.Pid, initial, max int, sc sched.Scheduler, stats *substrate.Stats) *Semaphore {
	s := &Semaphore{
		header:   substrate.Header{Kind: substrate.KindSemaphore, Name: name, OwnerPID: owner, RefCount: 1},
		wq:       substrate.NewWaitQueue(sc, stats),
		sc:       sc,
		value:    initial,
		maxValue: max,
	}
	if sc != nil {
		sc.RegisterTimerHook(func(now uint64) { s.wq.SweepDeadlines(now) })
	}
	return s
}

// Wait decrements value if positive, else blocks until a unit is handed
// to it directly by a future Post.
func (s *Semaphore) Wait(pid sched.Pid) error {
	return s.wait(pid, 0, false)
}

// TimedWait behaves like Wait but gives up with ErrTimeout once
// deadlineTick elapses.
func (s *Semaphore) TimedWait(pid sched.Pid, deadlineTick uint64) error {
	return s.wait(pid, deadlineTick, true)
}

func (s *Semaphore) wait(pid sched.Pid, deadlineTick uint64, hasDeadline bool) error {
	s.mu.Lock()
	if s.value > 0 {
		s.value--
		s.mu.Unlock()
		return nil
	}

	now := s.sc.NowTicks()
	waiter := s.wq.Enqueue(pid, now, deadlineTick, hasDeadline, nil)
	s.mu.Unlock()

	s.sc.BlockTask(pid)

	switch waiter.Status() {
	case substrate.StatusDestroyed:
		return ErrDestroyed
	case substrate.StatusTimeout:
		return ErrTimeout
	default:
		// StatusWoken: Post handed us a unit directly, value unchanged.
		return nil
	}
}

// ErrDestroyed is returned to a waiter woken because the semaphore was
// destroyed out from under it.
var ErrDestroyed = errors.New("ipcsem: semaphore destroyed while waiting")

// ErrTimeout is returned by TimedWait when the deadline elapses first.
var ErrTimeout = errors.New("ipcsem: timed wait expired")

// TryWait decrements value if positive, else returns ErrBusy.
func (s *Semaphore) TryWait() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value > 0 {
		s.value--
		return nil
	}
	return ErrBusy
}

// Post wakes one waiter (handing it a unit directly, value unchanged) if
// any are blocked; else increments value, or returns ErrOverflow if
// already at max_value.
func (s *Semaphore) Post() error {
	s.mu.Lock()

	if w := s.wq.Peek(); w != nil {
		s.wq.Remove(w.Pid)
		s.mu.Unlock()
		w.ApplyStatus(substrate.StatusWoken)
		s.sc.UnblockTask(w.Pid)
		return nil
	}

	if s.value >= s.maxValue {
		s.mu.Unlock()
		return ErrOverflow
	}
	s.value++
	s.mu.Unlock()
	return nil
}

// GetValue returns an advisory, instantaneous read of value.
func (s *Semaphore) GetValue() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// WaiterCount returns the number of tasks currently blocked.
func (s *Semaphore) WaiterCount() int {
	return s.wq.Len()
}

// PurgeWaiter removes pid from the wait queue, part of the task-exit
// hook's wait-queue purge pass.
func (s *Semaphore) PurgeWaiter(pid sched.Pid) {
	s.wq.Remove(pid)
}

// Destroy wakes every remaining waiter with StatusDestroyed. It checks
// neither the refcount nor the value; Kernel.DestroySemaphore calls it
// directly before unregistering the semaphore.
func (s *Semaphore) Destroy() {
	s.wq.Wake(0, substrate.StatusDestroyed, nil)
}

// ResyncTo forcibly sets value (used by msgqueue's task-exit resync of
// free_slots/used_slots to the post-purge queue size).
func (s *Semaphore) ResyncTo(value int) {
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
}
