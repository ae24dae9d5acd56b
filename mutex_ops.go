package edgex

import (
	"errors"

	"github.com/edgexos/edgex/internal/ipcmutex"
	"github.com/edgexos/edgex/internal/sched"
	"github.com/edgexos/edgex/internal/substrate"
)

// CreateMutex creates and registers a new unlocked mutex.
func (k *Kernel) CreateMutex(owner sched.Pid, name string) (*MutexHandle, error) {
	m := ipcmutex.New(name, owner, k.sc, k.stats)
	if err := k.registry.Register(m); err != nil {
		return nil, WrapError("CreateMutex", CodeOutOfMemory, err)
	}
	k.mu.Lock()
	k.mutexes[m] = struct{}{}
	k.mu.Unlock()
	return &MutexHandle{obj: m}, nil
}

// Lock acquires h for pid, blocking with no barging until it becomes
// available.
func (k *Kernel) Lock(h *MutexHandle, pid sched.Pid) error {
	k.stats.Operation(substrate.KindMutex)
	err := h.obj.Lock(pid)
	if errors.Is(err, ipcmutex.ErrOwnerDead) {
		return NewError("Lock", CodeOwnerDead, "previous owner exited while waiting")
	}
	return err
}

// TryLock acquires h for pid without blocking, returning Busy if
// contended.
func (k *Kernel) TryLock(h *MutexHandle, pid sched.Pid) error {
	k.stats.Operation(substrate.KindMutex)
	if err := h.obj.TryLock(pid); err != nil {
		return NewError("TryLock", CodeBusy, "mutex contended")
	}
	return nil
}

// Unlock releases one recursion level of h, which pid must currently
// own.
func (k *Kernel) Unlock(h *MutexHandle, pid sched.Pid) error {
	k.stats.Operation(substrate.KindMutex)
	if err := h.obj.Unlock(pid); err != nil {
		k.stats.PermissionFailure()
		return NewError("Unlock", CodePermissionDenied, "caller does not own the mutex")
	}
	return nil
}

// DestroyMutex removes h from the registry; fails with Busy if the
// mutex is still owned or has waiters.
func (k *Kernel) DestroyMutex(h *MutexHandle) error {
	if err := h.obj.Destroy(); err != nil {
		return NewError("DestroyMutex", CodeBusy, "mutex still owned or has waiters")
	}
	k.mu.Lock()
	delete(k.mutexes, h.obj)
	k.mu.Unlock()
	k.registry.Unregister(h.obj)
	return nil
}
