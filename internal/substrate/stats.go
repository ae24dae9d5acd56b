package substrate

import "sync/atomic"

// Stats mirrors ipc_stats_t from the original headers field-for-field,
// using atomics instead of a lock: "the statistics counter uses only
// atomics; no lock is taken for counter updates" (spec §5). Modeled on the
// teacher's metrics.go atomic-counter/Snapshot pattern.
type Stats struct {
	objectsCreated   uint64
	objectsDestroyed uint64

	mutexCount         int32
	semaphoreCount     int32
	eventCount         int32
	eventSetCount      int32
	messageQueueCount  int32
	sharedMemoryCount  int32

	mutexOps        uint64
	semaphoreOps    uint64
	eventOps        uint64
	messageOps      uint64
	sharedMemoryOps uint64

	totalWaitTimeMs uint64
	activeWaiters   int32
	timeouts        uint32

	allocationFailures uint32
	permissionFailures uint32
	timeoutFailures    uint32
}

// Snapshot is a point-in-time copy of Stats, safe to read without racing
// further updates.
type Snapshot struct {
	ObjectsCreated   uint64
	ObjectsDestroyed uint64

	MutexCount        int32
	SemaphoreCount    int32
	EventCount        int32
	EventSetCount     int32
	MessageQueueCount int32
	SharedMemoryCount int32

	MutexOps        uint64
	SemaphoreOps    uint64
	EventOps        uint64
	MessageOps      uint64
	SharedMemoryOps uint64

	TotalWaitTimeMs uint64
	ActiveWaiters   int32
	Timeouts        uint32

	AllocationFailures uint32
	PermissionFailures uint32
	TimeoutFailures    uint32
}

// ObjectCreated bumps the created counter and the per-kind live count.
func (s *Stats) ObjectCreated(kind Kind) {
	atomic.AddUint64(&s.objectsCreated, 1)
	s.kindCounter(kind, 1)
}

// ObjectDestroyed bumps the destroyed counter and decrements the per-kind
// live count.
func (s *Stats) ObjectDestroyed(kind Kind) {
	atomic.AddUint64(&s.objectsDestroyed, 1)
	s.kindCounter(kind, -1)
}

func (s *Stats) kindCounter(kind Kind, delta int32) {
	switch kind {
	case KindMutex:
		atomic.AddInt32(&s.mutexCount, delta)
	case KindSemaphore:
		atomic.AddInt32(&s.semaphoreCount, delta)
	case KindEvent:
		atomic.AddInt32(&s.eventCount, delta)
	case KindEventSet:
		atomic.AddInt32(&s.eventSetCount, delta)
	case KindMessageQueue:
		atomic.AddInt32(&s.messageQueueCount, delta)
	case KindSharedMemory:
		atomic.AddInt32(&s.sharedMemoryCount, delta)
	}
}

// Operation bumps the per-kind operation counter.
func (s *Stats) Operation(kind Kind) {
	switch kind {
	case KindMutex:
		atomic.AddUint64(&s.mutexOps, 1)
	case KindSemaphore:
		atomic.AddUint64(&s.semaphoreOps, 1)
	case KindEvent, KindEventSet:
		atomic.AddUint64(&s.eventOps, 1)
	case KindMessageQueue:
		atomic.AddUint64(&s.messageOps, 1)
	case KindSharedMemory:
		atomic.AddUint64(&s.sharedMemoryOps, 1)
	}
}

// WaiterEnqueued increments the active-waiter gauge.
func (s *Stats) WaiterEnqueued() { atomic.AddInt32(&s.activeWaiters, 1) }

// WaiterDequeued decrements the active-waiter gauge and adds the waited
// duration, in milliseconds, to the cumulative total.
func (s *Stats) WaiterDequeued(waitedMs uint64) {
	atomic.AddInt32(&s.activeWaiters, -1)
	atomic.AddUint64(&s.totalWaitTimeMs, waitedMs)
}

// Timeout bumps both the general and the failure-specific timeout counters.
func (s *Stats) Timeout() {
	atomic.AddUint32(&s.timeouts, 1)
	atomic.AddUint32(&s.timeoutFailures, 1)
}

// AllocationFailure bumps the allocation-failure counter.
func (s *Stats) AllocationFailure() { atomic.AddUint32(&s.allocationFailures, 1) }

// PermissionFailure bumps the permission-failure counter.
func (s *Stats) PermissionFailure() { atomic.AddUint32(&s.permissionFailures, 1) }

// Snapshot copies every counter into a Snapshot value.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		ObjectsCreated:     atomic.LoadUint64(&s.objectsCreated),
		ObjectsDestroyed:   atomic.LoadUint64(&s.objectsDestroyed),
		MutexCount:         atomic.LoadInt32(&s.mutexCount),
		SemaphoreCount:     atomic.LoadInt32(&s.semaphoreCount),
		EventCount:         atomic.LoadInt32(&s.eventCount),
		EventSetCount:      atomic.LoadInt32(&s.eventSetCount),
		MessageQueueCount:  atomic.LoadInt32(&s.messageQueueCount),
		SharedMemoryCount:  atomic.LoadInt32(&s.sharedMemoryCount),
		MutexOps:           atomic.LoadUint64(&s.mutexOps),
		SemaphoreOps:       atomic.LoadUint64(&s.semaphoreOps),
		EventOps:           atomic.LoadUint64(&s.eventOps),
		MessageOps:         atomic.LoadUint64(&s.messageOps),
		SharedMemoryOps:    atomic.LoadUint64(&s.sharedMemoryOps),
		TotalWaitTimeMs:    atomic.LoadUint64(&s.totalWaitTimeMs),
		ActiveWaiters:      atomic.LoadInt32(&s.activeWaiters),
		Timeouts:           atomic.LoadUint32(&s.timeouts),
		AllocationFailures: atomic.LoadUint32(&s.allocationFailures),
		PermissionFailures: atomic.LoadUint32(&s.permissionFailures),
		TimeoutFailures:    atomic.LoadUint32(&s.timeoutFailures),
	}
}

// Reset zeroes every counter except the per-kind live counts and the
// active-waiter gauge, which reflect current system state rather than
// history (matching
// reset_ipc_stats()'s documented behavior in the original headers).
func (s *Stats) Reset() {
	atomic.StoreUint64(&s.objectsCreated, 0)
	atomic.StoreUint64(&s.objectsDestroyed, 0)
	atomic.StoreUint64(&s.mutexOps, 0)
	atomic.StoreUint64(&s.semaphoreOps, 0)
	atomic.StoreUint64(&s.eventOps, 0)
	atomic.StoreUint64(&s.messageOps, 0)
	atomic.StoreUint64(&s.sharedMemoryOps, 0)
	atomic.StoreUint64(&s.totalWaitTimeMs, 0)
	atomic.StoreUint32(&s.timeouts, 0)
	atomic.StoreUint32(&s.allocationFailures, 0)
	atomic.StoreUint32(&s.permissionFailures, 0)
	atomic.StoreUint32(&s.timeoutFailures, 0)
}
