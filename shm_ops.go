package edgex

import (
	"errors"

	"github.com/edgexos/edgex/internal/sched"
	"github.com/edgexos/edgex/internal/shm"
	"github.com/edgexos/edgex/internal/substrate"
)

// CreateSegment creates (or grows/re-holds, per spec.md §4.6's
// name-collision rules) a shared-memory segment.
func (k *Kernel) CreateSegment(owner sched.Pid, name string, size int, defaultPerms shm.Perms, flags shm.SegmentFlags) (*SegmentHandle, error) {
	seg, err := k.shmManager.Create(name, owner, size, defaultPerms, flags)
	if err != nil {
		return nil, translateSegmentErr("CreateSegment", err)
	}

	k.mu.Lock()
	_, alreadyTracked := k.segments[seg]
	k.segments[seg] = struct{}{}
	k.mu.Unlock()

	if !alreadyTracked {
		if regErr := k.registry.Register(seg); regErr != nil {
			return nil, WrapError("CreateSegment", CodeOutOfMemory, regErr)
		}
	}
	return &SegmentHandle{obj: seg}, nil
}

// MapSegment installs a mapping for pid, returning a View for reading
// and writing this task's observed bytes.
func (k *Kernel) MapSegment(h *SegmentHandle, pid sched.Pid, virtHint uintptr, requestedPerms shm.Perms) (*shm.View, uintptr, error) {
	k.stats.Operation(substrate.KindSharedMemory)
	view, addr, err := h.obj.Map(pid, virtHint, requestedPerms)
	if err != nil && !errors.Is(err, shm.ErrAlreadyMapped) {
		return nil, 0, translateSegmentErr("MapSegment", err)
	}
	h.lastMap = addr
	return view, addr, nil
}

// UnmapSegment removes pid's mapping at addr, destroying the segment if
// its refcount reaches 0 and Persist was not set.
func (k *Kernel) UnmapSegment(h *SegmentHandle, pid sched.Pid, addr uintptr) error {
	k.stats.Operation(substrate.KindSharedMemory)
	destroy, err := h.obj.Unmap(pid, addr)
	if err != nil {
		return translateSegmentErr("UnmapSegment", err)
	}
	if destroy {
		k.destroySegment(h.obj)
	}
	return nil
}

// ResizeSegment grows or shrinks h; only permitted when created with
// shm.FlagResize.
func (k *Kernel) ResizeSegment(h *SegmentHandle, newSize int) error {
	if err := h.obj.Resize(newSize); err != nil {
		return translateSegmentErr("ResizeSegment", err)
	}
	return nil
}

func translateSegmentErr(op string, err error) error {
	switch {
	case errors.Is(err, shm.ErrNameCollision):
		return NewError(op, CodeNameCollision, "segment name already in use with Exclusive")
	case errors.Is(err, shm.ErrAlreadyMapped):
		return NewError(op, CodeAlreadyMapped, "segment already mapped by this task")
	case errors.Is(err, shm.ErrPermDenied):
		return NewError(op, CodePermissionDenied, "requested permissions outside segment default")
	case errors.Is(err, shm.ErrNoResize):
		return NewError(op, CodeNoResize, "segment was not created with Resize")
	case errors.Is(err, shm.ErrOutOfMemory):
		return NewError(op, CodeOutOfMemory, "out of physical pages")
	case errors.Is(err, shm.ErrInvalidAddress):
		return NewError(op, CodeInvalidHandle, "no mapping at that address for this task")
	default:
		return err
	}
}
