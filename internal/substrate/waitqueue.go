package substrate

import (
	"sync"

	"github.com/edgexos/edgex/internal/sched"
)

// WaitStatus is the outcome recorded on a Waiter when it is woken, read by
// the suspended caller after its BlockTask call returns.
type WaitStatus int

const (
	StatusPending WaitStatus = iota
	StatusWoken
	StatusTimeout
	StatusOwnerDead
	StatusDestroyed
)

// Waiter is one entry in a WaitQueue: "(pid, enqueue_tick, deadline_tick or
// infinity, status, user_cookie)" per spec §3.
type Waiter struct {
	Pid         sched.Pid
	EnqueueTick uint64
	Deadline    uint64
	HasDeadline bool
	Cookie      any

	mu     sync.Mutex
	status WaitStatus
}

// Status returns the waiter's current outcome.
func (w *Waiter) Status() WaitStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *Waiter) setStatus(s WaitStatus) {
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
}

// SetCookie updates the waiter's cookie in place, used by event-set wake to
// record which member event triggered the wake after the waiter was
// already enqueued.
func (w *Waiter) SetCookie(cookie any) {
	w.mu.Lock()
	w.Cookie = cookie
	w.mu.Unlock()
}

// ApplyStatus stamps a waiter's outcome directly, for callers (like
// ipcmutex's direct-ownership-handoff unlock path) that remove a waiter
// from the queue themselves and need to record why, without going
// through WaitQueue.Wake's own removal pass.
func (w *Waiter) ApplyStatus(status WaitStatus) {
	w.setStatus(status)
}

// WaitQueue is a FIFO of waiters embedded in every blockable IPC object,
// backed by the scheduler collaborator for suspend/resume.
type WaitQueue struct {
	mu      sync.Mutex
	waiters []*Waiter
	sched   sched.Scheduler
	stats   *Stats
}

// NewWaitQueue creates an empty wait queue driven by sched for
// suspend/resume and reporting into stats (may be nil to disable
// reporting, e.g. in isolated unit tests).
func NewWaitQueue(s sched.Scheduler, stats *Stats) *WaitQueue {
	return &WaitQueue{sched: s, stats: stats}
}

// Enqueue appends pid to the queue, enforcing the "a PID appears at most
// once" invariant by replacing any prior entry for the same pid (a caller
// bug if it happens, but never silently duplicates).
func (q *WaitQueue) Enqueue(pid sched.Pid, enqueueTick uint64, deadline uint64, hasDeadline bool, cookie any) *Waiter {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, w := range q.waiters {
		if w.Pid == pid {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			break
		}
	}

	w := &Waiter{
		Pid:         pid,
		EnqueueTick: enqueueTick,
		Deadline:    deadline,
		HasDeadline: hasDeadline,
		Cookie:      cookie,
		status:      StatusPending,
	}
	q.waiters = append(q.waiters, w)
	if q.stats != nil {
		q.stats.WaiterEnqueued()
	}
	return w
}

// Remove removes pid from the queue if present, returning the removed
// waiter (or nil). Used by the task-exit hook's "purge the exiting task
// from all wait queues" pass.
func (q *WaitQueue) Remove(pid sched.Pid) *Waiter {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, w := range q.waiters {
		if w.Pid == pid {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			if q.stats != nil {
				q.stats.WaiterDequeued(0)
			}
			return w
		}
	}
	return nil
}

// Len returns the number of waiters currently enqueued.
func (q *WaitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}

// Peek returns the oldest waiter without removing it, or nil if empty.
func (q *WaitQueue) Peek() *Waiter {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiters) == 0 {
		return nil
	}
	return q.waiters[0]
}

// Wake removes up to n waiters from the front of the queue (n==0 wakes
// all), sets their status and cookie, and unblocks each via the
// scheduler, in enqueue order. Returns the waiters woken.
func (q *WaitQueue) Wake(n int, status WaitStatus, cookie any) []*Waiter {
	q.mu.Lock()
	var woken []*Waiter
	if n <= 0 {
		woken = q.waiters
		q.waiters = nil
	} else {
		if n > len(q.waiters) {
			n = len(q.waiters)
		}
		woken = append([]*Waiter(nil), q.waiters[:n]...)
		q.waiters = q.waiters[n:]
	}
	if q.stats != nil {
		for range woken {
			q.stats.WaiterDequeued(0)
		}
	}
	q.mu.Unlock()

	for _, w := range woken {
		w.setStatus(status)
		if cookie != nil {
			w.SetCookie(cookie)
		}
		if q.sched != nil {
			q.sched.UnblockTask(w.Pid)
		}
	}
	return woken
}

// SweepDeadlines removes and wakes every waiter whose deadline has
// elapsed by now, with status Timeout. Driven by the scheduler's periodic
// timer hook.
func (q *WaitQueue) SweepDeadlines(now uint64) []*Waiter {
	q.mu.Lock()
	var expired []*Waiter
	var remaining []*Waiter
	for _, w := range q.waiters {
		if w.HasDeadline && w.Deadline <= now {
			expired = append(expired, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	q.waiters = remaining
	if q.stats != nil {
		for range expired {
			q.stats.WaiterDequeued(0)
		}
	}
	q.mu.Unlock()

	for _, w := range expired {
		w.setStatus(StatusTimeout)
		if q.stats != nil {
			q.stats.Timeout()
		}
		if q.sched != nil {
			q.sched.UnblockTask(w.Pid)
		}
	}
	return expired
}
