// Package ipcmutex implements the EdgeX recursive mutex: ownership
// handoff without barging, priority inheritance as a contract on the
// scheduler collaborator, and task-exit force-release.
package ipcmutex

import (
	"errors"
	"sync"

	"github.com/edgexos/edgex/internal/sched"
	"github.com/edgexos/edgex/internal/substrate"
)

// Errors specific to mutex operations, beyond the shared substrate
// sentinels.
var (
	ErrBusy      = errors.New("ipcmutex: busy")
	ErrOwnerDead = errors.New("ipcmutex: owner task exited while waiters were blocked")
)

// Mutex is a recursive, priority-inheriting mutual-exclusion lock.
// `recursion_count > 0 ⇔ owner_pid ≠ 0` is the header invariant from
// spec.md §3.
type Mutex struct {
	header substrate.Header

	mu   sync.Mutex // guards the fields below; NOT the resource the mutex protects
	wq   *substrate.WaitQueue
	sc   sched.Scheduler

	owner          sched.Pid
	recursionCount int
	boosted        bool
}

// Header satisfies substrate.Object.
func (m *Mutex) Header() *substrate.Header { return &m.header }

// New creates an unlocked mutex named name, owned (for registry/cleanup
// purposes) by owner.
func New(name string, owner sched.Pid, sc sched.Scheduler, stats *substrate.Stats) *Mutex {
	return &Mutex{
		header: substrate.Header{Kind: substrate.KindMutex, Name: name, OwnerPID: owner, RefCount: 1},
		wq:     substrate.NewWaitQueue(sc, stats),
		sc:     sc,
	}
}

// Lock acquires the mutex for pid, recursing if pid already owns it, and
// blocking (with no barging: ownership transfers directly from unlock to
// the oldest waiter) otherwise.
func (m *Mutex) Lock(pid sched.Pid) error {
	for {
		m.mu.Lock()
		if m.owner == 0 {
			m.owner = pid
			m.recursionCount = 1
			m.mu.Unlock()
			return nil
		}
		if m.owner == pid {
			m.recursionCount++
			m.mu.Unlock()
			return nil
		}

		now := m.sc.NowTicks()
		waiter := m.wq.Enqueue(pid, now, 0, false, nil)
		m.requestBoostLocked(pid)
		m.mu.Unlock()

		m.sc.BlockTask(pid)

		switch waiter.Status() {
		case substrate.StatusOwnerDead:
			// The dying owner's cleanup already transferred ownership to
			// us (see ForceReleaseFor), so acquisition succeeded but the
			// caller should know the prior owner died mid-hold.
			return ErrOwnerDead
		default:
			// StatusWoken: unlock() already made us the owner.
			return nil
		}
	}
}

// TryLock behaves like Lock but returns ErrBusy instead of blocking.
func (m *Mutex) TryLock(pid sched.Pid) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner == 0 {
		m.owner = pid
		m.recursionCount = 1
		return nil
	}
	if m.owner == pid {
		m.recursionCount++
		return nil
	}
	return ErrBusy
}

// Unlock releases one level of recursion for pid, which must be the
// current owner. At recursion 0, ownership transfers directly to the
// oldest waiter (no barging) or the mutex becomes unlocked.
func (m *Mutex) Unlock(pid sched.Pid) error {
	m.mu.Lock()

	if m.owner != pid {
		m.mu.Unlock()
		return substrate.ErrPermissionDenied
	}

	m.recursionCount--
	if m.recursionCount > 0 {
		m.mu.Unlock()
		return nil
	}

	m.resetBoostLocked()

	next := m.wq.Peek()
	if next == nil {
		m.owner = 0
		m.mu.Unlock()
		return nil
	}

	m.wq.Remove(next.Pid)
	m.owner = next.Pid
	m.recursionCount = 1
	m.mu.Unlock()

	next.ApplyStatus(substrate.StatusWoken)
	m.sc.UnblockTask(next.Pid)
	return nil
}

// Destroy permits destruction only when there is no owner and no
// waiters, per spec §4.2.
func (m *Mutex) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != 0 || m.wq.Len() != 0 {
		return ErrBusy
	}
	return nil
}

// ForceReleaseFor is invoked by the task-exit hook for a mutex owned by
// the exiting pid: it wakes exactly one waiter (the oldest) with status
// OwnerDead and transfers ownership to it, or simply clears ownership if
// no waiters are present.
func (m *Mutex) ForceReleaseFor(pid sched.Pid) {
	m.mu.Lock()

	if m.owner != pid {
		m.mu.Unlock()
		return
	}

	m.resetBoostLocked()

	next := m.wq.Peek()
	if next == nil {
		m.owner = 0
		m.recursionCount = 0
		m.mu.Unlock()
		return
	}

	m.wq.Remove(next.Pid)
	m.owner = next.Pid
	m.recursionCount = 1
	m.mu.Unlock()

	next.ApplyStatus(substrate.StatusOwnerDead)
	m.sc.UnblockTask(next.Pid)
}

// PurgeWaiter removes pid from the wait queue without affecting
// ownership, part of the task-exit hook's "remove the PID from every
// wait queue" pass for tasks that were merely blocked on this mutex
// (not holding it).
func (m *Mutex) PurgeWaiter(pid sched.Pid) {
	m.wq.Remove(pid)
}

// Owner returns the current owner pid (0 = unlocked), for invariant
// checks and tests.
func (m *Mutex) Owner() sched.Pid {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// RecursionCount returns the current recursion depth.
func (m *Mutex) RecursionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recursionCount
}

// WaiterCount returns the number of tasks currently blocked on this
// mutex.
func (m *Mutex) WaiterCount() int {
	return m.wq.Len()
}

// requestBoostLocked asks the scheduler to raise the owner's priority
// whenever a task blocks behind it; called with m.mu held. Waiter and
// owner priorities are not compared: every contended Lock requests a
// boost, passing the waiter's pid as the ceiling value.
func (m *Mutex) requestBoostLocked(waiterPid sched.Pid) {
	if m.sc == nil || m.owner == 0 {
		return
	}
	m.boosted = true
	m.sc.BoostPriority(m.owner, int(waiterPid))
}

func (m *Mutex) resetBoostLocked() {
	if m.boosted && m.sc != nil && m.owner != 0 {
		m.sc.ResetPriority(m.owner)
	}
	m.boosted = false
}
