package edgex

import (
	"errors"

	"github.com/edgexos/edgex/internal/ipcevent"
	"github.com/edgexos/edgex/internal/sched"
	"github.com/edgexos/edgex/internal/substrate"
)

// CreateEvent creates and registers an event, auto-reset or
// manual-reset per manualReset.
func (k *Kernel) CreateEvent(owner sched.Pid, name string, manualReset bool) (*EventHandle, error) {
	e := ipcevent.New(name, owner, manualReset, k.sc, k.stats)
	if err := k.registry.Register(e); err != nil {
		return nil, WrapError("CreateEvent", CodeOutOfMemory, err)
	}
	k.mu.Lock()
	k.events[e] = struct{}{}
	k.mu.Unlock()
	return &EventHandle{obj: e}, nil
}

// WaitEvent blocks until h is signaled.
func (k *Kernel) WaitEvent(h *EventHandle, pid sched.Pid) error {
	k.stats.Operation(substrate.KindEvent)
	if err := h.obj.Wait(pid); err != nil {
		return translateEventErr("WaitEvent", err)
	}
	return nil
}

// TimedWaitEvent blocks until h is signaled or deadlineTick elapses.
func (k *Kernel) TimedWaitEvent(h *EventHandle, pid sched.Pid, deadlineTick uint64) error {
	k.stats.Operation(substrate.KindEvent)
	if err := h.obj.TimedWait(pid, deadlineTick); err != nil {
		return translateEventErr("TimedWaitEvent", err)
	}
	return nil
}

// SignalEvent signals h (wakes one waiter for auto-reset, all for
// manual-reset) and opportunistically notifies any event sets the
// caller passes in setMembers, per spec.md §4.4.
func (k *Kernel) SignalEvent(h *EventHandle, setMembers ...*EventSetHandle) {
	k.stats.Operation(substrate.KindEvent)
	h.obj.Signal()
	for _, es := range setMembers {
		es.obj.NotifyMemberSignaled(h.obj)
	}
}

// BroadcastEvent wakes every waiter on h.
func (k *Kernel) BroadcastEvent(h *EventHandle, setMembers ...*EventSetHandle) {
	k.stats.Operation(substrate.KindEvent)
	h.obj.Broadcast()
	for _, es := range setMembers {
		es.obj.NotifyMemberSignaled(h.obj)
	}
}

// ResetEvent clears h's signaled state.
func (k *Kernel) ResetEvent(h *EventHandle) { h.obj.Reset() }

// DestroyEvent removes h from the registry.
func (k *Kernel) DestroyEvent(h *EventHandle) error {
	k.mu.Lock()
	delete(k.events, h.obj)
	k.mu.Unlock()
	k.registry.Unregister(h.obj)
	return nil
}

// CreateEventSet creates and registers an event set with the given
// capacity (0 = default).
func (k *Kernel) CreateEventSet(owner sched.Pid, name string, capacity int) (*EventSetHandle, error) {
	es := ipcevent.NewSet(name, owner, capacity, k.sc, k.stats)
	if err := k.registry.Register(es); err != nil {
		return nil, WrapError("CreateEventSet", CodeOutOfMemory, err)
	}
	k.mu.Lock()
	k.eventSets[es] = struct{}{}
	k.mu.Unlock()
	return &EventSetHandle{obj: es}, nil
}

// AddToEventSet registers ev as a member of es.
func (k *Kernel) AddToEventSet(es *EventSetHandle, ev *EventHandle) error {
	if err := es.obj.Add(ev.obj); err != nil {
		return NewError("AddToEventSet", CodeInvalidArgument, err.Error())
	}
	return nil
}

// RemoveFromEventSet unregisters ev from es.
func (k *Kernel) RemoveFromEventSet(es *EventSetHandle, ev *EventHandle) error {
	if err := es.obj.Remove(ev.obj); err != nil {
		return NewError("RemoveFromEventSet", CodeInvalidArgument, err.Error())
	}
	return nil
}

// WaitEventSet blocks until any member of es is signaled, returning a
// handle to the event that was consumed.
func (k *Kernel) WaitEventSet(es *EventSetHandle, pid sched.Pid) (*EventHandle, error) {
	k.stats.Operation(substrate.KindEventSet)
	ev, err := es.obj.Wait(pid)
	if err != nil {
		return nil, translateEventErr("WaitEventSet", err)
	}
	return &EventHandle{obj: ev}, nil
}

// TimedWaitEventSet blocks until any member is signaled or deadlineTick
// elapses.
func (k *Kernel) TimedWaitEventSet(es *EventSetHandle, pid sched.Pid, deadlineTick uint64) (*EventHandle, error) {
	k.stats.Operation(substrate.KindEventSet)
	ev, err := es.obj.TimedWait(pid, deadlineTick)
	if err != nil {
		return nil, translateEventErr("TimedWaitEventSet", err)
	}
	return &EventHandle{obj: ev}, nil
}

// DestroyEventSet removes es from the registry.
func (k *Kernel) DestroyEventSet(es *EventSetHandle) error {
	k.mu.Lock()
	delete(k.eventSets, es.obj)
	k.mu.Unlock()
	k.registry.Unregister(es.obj)
	return nil
}

func translateEventErr(op string, err error) error {
	if errors.Is(err, ipcevent.ErrTimeout) {
		return NewError(op, CodeTimeout, "event wait expired")
	}
	return err
}
