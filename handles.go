package edgex

import (
	"github.com/edgexos/edgex/internal/ipcevent"
	"github.com/edgexos/edgex/internal/ipcmutex"
	"github.com/edgexos/edgex/internal/ipcsem"
	"github.com/edgexos/edgex/internal/msgqueue"
	"github.com/edgexos/edgex/internal/shm"
	"github.com/edgexos/edgex/internal/substrate"
)

// Typed handles give callers outside the core a kind-parameterized
// reference instead of a generic pointer (spec.md §9 "opaque handles
// across module boundary"): a MutexHandle can never be passed where a
// SemaphoreHandle is expected, and each wraps the one internal object
// the Kernel's registry already tracks.

type MutexHandle struct{ obj *ipcmutex.Mutex }

func (h *MutexHandle) Name() string { return h.obj.Header().Name }

type SemaphoreHandle struct{ obj *ipcsem.Semaphore }

func (h *SemaphoreHandle) Name() string { return h.obj.Header().Name }

type EventHandle struct{ obj *ipcevent.Event }

func (h *EventHandle) Name() string { return h.obj.Header().Name }

type EventSetHandle struct{ obj *ipcevent.EventSet }

func (h *EventSetHandle) Name() string { return h.obj.Header().Name }

type QueueHandle struct{ obj *msgqueue.Queue }

func (h *QueueHandle) Name() string { return h.obj.Header().Name }

type SegmentHandle struct {
	obj     *shm.Segment
	lastMap uintptr
}

func (h *SegmentHandle) Name() string { return h.obj.Header().Name }

var (
	_ substrate.Object = (*ipcmutex.Mutex)(nil)
	_ substrate.Object = (*ipcsem.Semaphore)(nil)
	_ substrate.Object = (*ipcevent.Event)(nil)
	_ substrate.Object = (*ipcevent.EventSet)(nil)
	_ substrate.Object = (*msgqueue.Queue)(nil)
	_ substrate.Object = (*shm.Segment)(nil)
)
