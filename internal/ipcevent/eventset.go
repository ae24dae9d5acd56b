package ipcevent

import (
	"errors"
	"sync"

	"github.com/edgexos/edgex/internal/sched"
	"github.com/edgexos/edgex/internal/substrate"
)

// DefaultEventSetCapacity is the spec's default capacity_max for an event
// set (spec.md §3: "fixed-capacity array of event references (≤
// capacity_max, spec default 32)").
const DefaultEventSetCapacity = 32

var (
	ErrCapacityExceeded = errors.New("ipcevent: event set at capacity")
	ErrNotMember        = errors.New("ipcevent: event is not a member of this set")
	ErrAlreadyMember    = errors.New("ipcevent: event is already a member of this set")
)

// EventSet waits on any of its member events becoming signaled. The scan
// for an already-signaled member, and the enqueue if none is found, both
// happen under the set's own lock — closing the source's scan-then-block
// race (spec.md §4.4/§9 open-question note).
type EventSet struct {
	header substrate.Header

	mu       sync.Mutex
	wq       *substrate.WaitQueue
	sc       sched.Scheduler
	members  []*Event
	capacity int
}

// Header satisfies substrate.Object.
func (es *EventSet) Header() *substrate.Header { return &es.header }

// NewSet creates an empty event set with the given capacity (0 = default).
func NewSet(name string, owner sched.Pid, capacity int, sc sched.Scheduler, stats *substrate.Stats) *EventSet {
	if capacity <= 0 {
		capacity = DefaultEventSetCapacity
	}
	es := &EventSet{
		header:   substrate.Header{Kind: substrate.KindEventSet, Name: name, OwnerPID: owner, RefCount: 1},
		wq:       substrate.NewWaitQueue(sc, stats),
		sc:       sc,
		capacity: capacity,
	}
	if sc != nil {
		sc.RegisterTimerHook(func(now uint64) { es.wq.SweepDeadlines(now) })
	}
	return es
}

// Add registers ev as a member, incrementing its refcount ("invariant:
// each member event's refcount reflects inclusion", spec §3).
func (es *EventSet) Add(ev *Event) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	for _, m := range es.members {
		if m == ev {
			return ErrAlreadyMember
		}
	}
	if len(es.members) >= es.capacity {
		return ErrCapacityExceeded
	}
	es.members = append(es.members, ev)
	ev.Header().Retain()
	return nil
}

// Remove unregisters ev, decrementing its refcount.
func (es *EventSet) Remove(ev *Event) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	for i, m := range es.members {
		if m == ev {
			es.members = append(es.members[:i], es.members[i+1:]...)
			ev.Header().Release()
			return nil
		}
	}
	return ErrNotMember
}

// Wait blocks until any member event is signaled, returning the member
// that was consumed.
func (es *EventSet) Wait(pid sched.Pid) (*Event, error) {
	return es.wait(pid, 0, false)
}

// TimedWait blocks until any member is signaled or deadlineTick elapses.
func (es *EventSet) TimedWait(pid sched.Pid, deadlineTick uint64) (*Event, error) {
	return es.wait(pid, deadlineTick, true)
}

func (es *EventSet) wait(pid sched.Pid, deadlineTick uint64, hasDeadline bool) (*Event, error) {
	for {
		es.mu.Lock()
		// Set-lock held across the full scan-then-enqueue step: no
		// signal arriving between "no member was signaled" and "we
		// enqueued ourselves" can be lost, since a concurrent signal on
		// a member can only be observed by this scan or delivered via
		// NotifyMemberSignaled once we are safely enqueued.
		for _, m := range es.members {
			if m.tryConsume() {
				es.mu.Unlock()
				return m, nil
			}
		}

		now := es.sc.NowTicks()
		waiter := es.wq.Enqueue(pid, now, deadlineTick, hasDeadline, nil)
		es.mu.Unlock()

		es.sc.BlockTask(pid)

		switch waiter.Status() {
		case substrate.StatusTimeout:
			return nil, ErrTimeout
		default:
			// Woken: re-scan, per spec ("on wake, re-scan").
		}
	}
}

// NotifyMemberSignaled opportunistically wakes one set-waiter when a
// member event the caller knows belongs to this set transitions to
// signaled, per spec.md §4.4 ("the signal path opportunistically wakes
// one set-waiter ... whose cookie records the triggering event").
// Callers (typically a small wrapper layer that knows which sets a given
// event belongs to) must invoke this after calling Event.Signal/
// Broadcast, holding no lock of their own.
//
// es.mu is held across the wake, the same lock wait's scan-then-enqueue
// step holds (spec.md §4.4/§9): this serializes the notification against
// any in-flight wait so a signal arriving mid-scan is either observed by
// the scan (tryConsume succeeds) or by this wake (the waiter is already
// enqueued) — never neither, which is the lost-wakeup the original
// source's un-locked scan admitted.
func (es *EventSet) NotifyMemberSignaled(ev *Event) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.wq.Wake(1, substrate.StatusWoken, ev)
}

// WaiterCount returns the number of tasks blocked on this set.
func (es *EventSet) WaiterCount() int {
	return es.wq.Len()
}

// PurgeWaiter removes pid from the set's wait queue (task-exit hook).
func (es *EventSet) PurgeWaiter(pid sched.Pid) {
	es.wq.Remove(pid)
}

// Members returns a snapshot of the set's current member events.
func (es *EventSet) Members() []*Event {
	es.mu.Lock()
	defer es.mu.Unlock()
	out := make([]*Event, len(es.members))
	copy(out, es.members)
	return out
}
