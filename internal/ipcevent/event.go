// Package ipcevent implements the EdgeX event and event-set: auto-reset
// versus manual-reset signalling semantics, and a race-free event-set
// scan that holds the set lock across both the member scan and the
// enqueue step (spec.md §4.4/§9 close a lost-wakeup race present in the
// original source; this module implements the fixed behavior only).
package ipcevent

import (
	"errors"
	"sync"

	"github.com/edgexos/edgex/internal/sched"
	"github.com/edgexos/edgex/internal/substrate"
)

// ErrTimeout is returned by TimedWait when the deadline elapses before
// the event is signaled.
var ErrTimeout = errors.New("ipcevent: timed wait expired")

// Event is a binary signal, either auto-reset (wakes one waiter and
// clears itself) or manual-reset (wakes all waiters, stays set until
// Reset).
type Event struct {
	header substrate.Header

	mu          sync.Mutex
	wq          *substrate.WaitQueue
	sc          sched.Scheduler
	signaled    bool
	manualReset bool
}

// Header satisfies substrate.Object.
func (e *Event) Header() *substrate.Header { return &e.header }

// New creates an event, initially unsignaled. If sc is non-nil, the
// event's wait queue is swept for expired deadlines on every scheduler
// tick, so TimedWait actually times out.
func New(name string, owner sched.Pid, manualReset bool, sc sched.Scheduler, stats *substrate.Stats) *Event {
	e := &Event{
		header:      substrate.Header{Kind: substrate.KindEvent, Name: name, OwnerPID: owner, RefCount: 1},
		wq:          substrate.NewWaitQueue(sc, stats),
		sc:          sc,
		manualReset: manualReset,
	}
	if sc != nil {
		sc.RegisterTimerHook(func(now uint64) { e.wq.SweepDeadlines(now) })
	}
	return e
}

// ManualReset reports whether this event uses manual-reset semantics.
func (e *Event) ManualReset() bool { return e.manualReset }

// Wait blocks until the event is signaled, consuming it (auto-reset) or
// passing through (manual-reset).
func (e *Event) Wait(pid sched.Pid) error {
	return e.wait(pid, 0, false)
}

// TimedWait blocks until the event is signaled or deadlineTick elapses.
func (e *Event) TimedWait(pid sched.Pid, deadlineTick uint64) error {
	return e.wait(pid, deadlineTick, true)
}

func (e *Event) wait(pid sched.Pid, deadlineTick uint64, hasDeadline bool) error {
	e.mu.Lock()
	if e.signaled {
		if !e.manualReset {
			e.signaled = false
		}
		e.mu.Unlock()
		return nil
	}

	now := e.sc.NowTicks()
	waiter := e.wq.Enqueue(pid, now, deadlineTick, hasDeadline, nil)
	e.mu.Unlock()

	e.sc.BlockTask(pid)

	switch waiter.Status() {
	case substrate.StatusTimeout:
		return ErrTimeout
	default:
		return nil
	}
}

// Signal sets signaled. Manual-reset events wake every waiter; auto-reset
// events wake at most one waiter and clear signaled only if a waiter was
// actually woken (if none were waiting, signaled stays true until the
// next Wait consumes it).
func (e *Event) Signal() {
	e.mu.Lock()
	e.signaled = true

	if e.manualReset {
		e.mu.Unlock()
		e.wq.Wake(0, substrate.StatusWoken, nil)
		return
	}

	if e.wq.Len() == 0 {
		e.mu.Unlock()
		return
	}
	e.signaled = false
	e.mu.Unlock()
	e.wq.Wake(1, substrate.StatusWoken, nil)
}

// Broadcast sets signaled and wakes every waiter. For auto-reset events,
// signaled is cleared again after waking (so a late arriver blocks).
func (e *Event) Broadcast() {
	e.mu.Lock()
	e.signaled = true
	manual := e.manualReset
	e.mu.Unlock()

	e.wq.Wake(0, substrate.StatusWoken, nil)

	if !manual {
		e.mu.Lock()
		e.signaled = false
		e.mu.Unlock()
	}
}

// Reset clears signaled.
func (e *Event) Reset() {
	e.mu.Lock()
	e.signaled = false
	e.mu.Unlock()
}

// IsSignaled reports the current signaled state (advisory, racy by
// nature outside the object lock — exposed for tests/diagnostics).
func (e *Event) IsSignaled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.signaled
}

// WaiterCount returns the number of tasks blocked on this event.
func (e *Event) WaiterCount() int {
	return e.wq.Len()
}

// PurgeWaiter removes pid from the wait queue (task-exit hook).
func (e *Event) PurgeWaiter(pid sched.Pid) {
	e.wq.Remove(pid)
}

// tryConsume is used by EventSet's race-free scan: called while the set
// holds its own set-lock, it takes this member's lock itself (set-lock
// first, then member locks in array order) and checks and consumes this
// event's signal as a single operation so no signal can be observed and
// then lost between the check and the consume.
func (e *Event) tryConsume() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.signaled {
		return false
	}
	if !e.manualReset {
		e.signaled = false
	}
	return true
}
