// Package substrate implements the common object header, registry, and
// wait-queue substrate shared by every EdgeX IPC object kind: mutex,
// semaphore, event, event-set, message queue, and shared-memory segment.
package substrate

import (
	"sync/atomic"

	"github.com/edgexos/edgex/internal/sched"
)

// Kind identifies an IPC object's type, the closed sum tag every
// kind-specific struct embeds a Header for.
type Kind uint32

const (
	KindMutex Kind = iota + 1
	KindSemaphore
	KindEvent
	KindEventSet
	KindMessageQueue
	KindSharedMemory
)

func (k Kind) String() string {
	switch k {
	case KindMutex:
		return "mutex"
	case KindSemaphore:
		return "semaphore"
	case KindEvent:
		return "event"
	case KindEventSet:
		return "event_set"
	case KindMessageQueue:
		return "message_queue"
	case KindSharedMemory:
		return "shared_memory"
	default:
		return "unknown"
	}
}

// MaxNameLength mirrors MAX_IPC_NAME_LENGTH from the original C headers.
const MaxNameLength = 64

// Header is the common prefix every IPC object embeds by value, giving a
// closed sum of kinds instead of the original's void* + function-pointer
// destructor pair.
type Header struct {
	Kind     Kind
	Name     string
	OwnerPID sched.Pid
	RefCount int32 // manipulated only via atomic ops; see Retain/Release
}

// Retain increments the header's reference count.
func (h *Header) Retain() int32 {
	return atomic.AddInt32(&h.RefCount, 1)
}

// Release decrements the header's reference count and returns the new
// value; callers destroy the owning object when it reaches 0.
func (h *Header) Release() int32 {
	return atomic.AddInt32(&h.RefCount, -1)
}

// Object is anything with a substrate Header, satisfied by every
// kind-specific struct (mutex, semaphore, ...).
type Object interface {
	Header() *Header
}

// Destroyer is the shape of an object that tears itself down under the
// registry lock. No object kind in this module implements it, and
// Registry does not call DestroyLocked.
type Destroyer interface {
	Object
	DestroyLocked() // caller holds registry lock; object's own lock is not required afterward
}
