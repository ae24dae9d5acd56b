package edgex

import (
	"errors"

	"github.com/edgexos/edgex/internal/ipcsem"
	"github.com/edgexos/edgex/internal/sched"
	"github.com/edgexos/edgex/internal/substrate"
)

// CreateSemaphore creates and registers a counting semaphore with the
// given initial value and ceiling.
func (k *Kernel) CreateSemaphore(owner sched.Pid, name string, initial, max int) (*SemaphoreHandle, error) {
	s := ipcsem.New(name, owner, initial, max, k.sc, k.stats)
	if err := k.registry.Register(s); err != nil {
		return nil, WrapError("CreateSemaphore", CodeOutOfMemory, err)
	}
	k.mu.Lock()
	k.semas[s] = struct{}{}
	k.mu.Unlock()
	return &SemaphoreHandle{obj: s}, nil
}

// Wait decrements h's value, blocking if it is already 0.
func (k *Kernel) Wait(h *SemaphoreHandle, pid sched.Pid) error {
	k.stats.Operation(substrate.KindSemaphore)
	if err := h.obj.Wait(pid); err != nil {
		return translateSemErr("Wait", err)
	}
	return nil
}

// TimedWait behaves like Wait but gives up with Timeout at deadlineTick.
func (k *Kernel) TimedWait(h *SemaphoreHandle, pid sched.Pid, deadlineTick uint64) error {
	k.stats.Operation(substrate.KindSemaphore)
	if err := h.obj.TimedWait(pid, deadlineTick); err != nil {
		return translateSemErr("TimedWait", err)
	}
	return nil
}

// TryWait decrements h's value without blocking, returning Busy if 0.
func (k *Kernel) TryWait(h *SemaphoreHandle) error {
	k.stats.Operation(substrate.KindSemaphore)
	if err := h.obj.TryWait(); err != nil {
		return NewError("TryWait", CodeBusy, "semaphore value is 0")
	}
	return nil
}

// Post increments h's value or hands a unit directly to the oldest
// waiter.
func (k *Kernel) Post(h *SemaphoreHandle) error {
	k.stats.Operation(substrate.KindSemaphore)
	if err := h.obj.Post(); err != nil {
		return NewError("Post", CodeOverflow, "semaphore already at max_value")
	}
	return nil
}

// DestroySemaphore wakes every waiter with a destroyed status and
// removes h from the registry.
func (k *Kernel) DestroySemaphore(h *SemaphoreHandle) error {
	h.obj.Destroy()
	k.mu.Lock()
	delete(k.semas, h.obj)
	k.mu.Unlock()
	k.registry.Unregister(h.obj)
	return nil
}

func translateSemErr(op string, err error) error {
	switch {
	case errors.Is(err, ipcsem.ErrTimeout):
		return NewError(op, CodeTimeout, "semaphore wait expired")
	case errors.Is(err, ipcsem.ErrDestroyed):
		return NewError(op, CodeInvalidHandle, "semaphore destroyed while waiting")
	default:
		return err
	}
}
