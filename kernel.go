// Package edgex wires the six EdgeX IPC object kinds (mutex, semaphore,
// event, event-set, message queue, shared-memory segment) over the
// common substrate, scheduler, and physical-memory collaborators into a
// single Kernel, the Go equivalent of the original's ipc_init()/
// ipc_shutdown() pair plus its public create/operate/destroy surface.
package edgex

import (
	"sync"

	"github.com/edgexos/edgex/internal/ipcevent"
	"github.com/edgexos/edgex/internal/ipcmutex"
	"github.com/edgexos/edgex/internal/ipcsem"
	"github.com/edgexos/edgex/internal/logging"
	"github.com/edgexos/edgex/internal/msgqueue"
	"github.com/edgexos/edgex/internal/pagemem"
	"github.com/edgexos/edgex/internal/sched"
	"github.com/edgexos/edgex/internal/shm"
	"github.com/edgexos/edgex/internal/substrate"
)

// Kernel is the top-level IPC core instance. Composition follows
// spec.md §2's leaves-first order: substrate, then mutex, semaphore,
// event/event-set, message queue, shared memory, then init — and
// installs the periodic timeout hook (carried by the sc.RegisterTimerHook
// call each semaphore, event and event set makes when created; queues get
// it through their two semaphores, and mutexes, which have no timed wait,
// register none) and the task-exit hook here.
type Kernel struct {
	sc       sched.Scheduler
	alloc    pagemem.Allocator
	registry *substrate.Registry
	stats    *substrate.Stats
	log      *logging.Logger

	shmManager   *shm.Manager
	taskRegistry *msgqueue.TaskRegistry

	mu        sync.Mutex
	mutexes   map[*ipcmutex.Mutex]struct{}
	semas     map[*ipcsem.Semaphore]struct{}
	events    map[*ipcevent.Event]struct{}
	eventSets map[*ipcevent.EventSet]struct{}
	queues    map[*msgqueue.Queue]struct{}
	segments  map[*shm.Segment]struct{}
}

// NewKernel wires a Kernel over sc (the scheduler collaborator) and
// alloc (the physical-page collaborator), installing the task-exit hook
// that cascades mutex release, wait-queue purge, and shared-memory
// unmap for every exiting task (spec.md §5 "Cancellation").
func NewKernel(sc sched.Scheduler, alloc pagemem.Allocator) *Kernel {
	k := &Kernel{
		sc:           sc,
		alloc:        alloc,
		registry:     substrate.NewRegistry(substrate.DefaultCapacity),
		log:          logging.Default(),
		shmManager:   shm.NewManager(alloc),
		taskRegistry: msgqueue.NewTaskRegistry(),
		mutexes:      make(map[*ipcmutex.Mutex]struct{}),
		semas:        make(map[*ipcsem.Semaphore]struct{}),
		events:       make(map[*ipcevent.Event]struct{}),
		eventSets:    make(map[*ipcevent.EventSet]struct{}),
		queues:       make(map[*msgqueue.Queue]struct{}),
		segments:     make(map[*shm.Segment]struct{}),
	}
	k.stats = k.registry.Stats
	sc.RegisterTaskExitHook(k.onTaskExit)
	return k
}

// onTaskExit implements the task-exit cascade from spec.md §5/§9: purge
// every wait queue, force-release mutexes owned by pid, remove pid's
// messages (as sender or receiver) from every queue, and unmap pid's
// shared-memory mappings.
func (k *Kernel) onTaskExit(pid sched.Pid) {
	k.mu.Lock()
	mutexes := make([]*ipcmutex.Mutex, 0, len(k.mutexes))
	for m := range k.mutexes {
		mutexes = append(mutexes, m)
	}
	semas := make([]*ipcsem.Semaphore, 0, len(k.semas))
	for s := range k.semas {
		semas = append(semas, s)
	}
	events := make([]*ipcevent.Event, 0, len(k.events))
	for e := range k.events {
		events = append(events, e)
	}
	eventSets := make([]*ipcevent.EventSet, 0, len(k.eventSets))
	for es := range k.eventSets {
		eventSets = append(eventSets, es)
	}
	queues := make([]*msgqueue.Queue, 0, len(k.queues))
	for q := range k.queues {
		queues = append(queues, q)
	}
	segments := make([]*shm.Segment, 0, len(k.segments))
	for seg := range k.segments {
		segments = append(segments, seg)
	}
	k.mu.Unlock()

	for _, m := range mutexes {
		m.ForceReleaseFor(pid)
		m.PurgeWaiter(pid)
	}
	for _, s := range semas {
		s.PurgeWaiter(pid)
	}
	for _, e := range events {
		e.PurgeWaiter(pid)
	}
	for _, es := range eventSets {
		es.PurgeWaiter(pid)
	}
	for _, q := range queues {
		q.PurgeTask(pid)
	}
	for _, seg := range segments {
		if seg.UnmapAllForTask(pid) {
			k.destroySegment(seg)
		}
	}
}

func (k *Kernel) destroySegment(seg *shm.Segment) {
	k.mu.Lock()
	delete(k.segments, seg)
	k.mu.Unlock()
	k.registry.Unregister(seg)
	if err := k.shmManager.Destroy(seg); err != nil {
		k.log.Warn("segment destroy failed", "name", seg.Header().Name, "err", err)
	}
}

// Stats returns a point-in-time snapshot of the process-wide counters.
func (k *Kernel) Stats() substrate.Snapshot { return k.stats.Snapshot() }

// ResetStats zeroes the history counters (objects created/destroyed,
// operation counts, timeouts, failures); live per-kind counts are left
// untouched, matching reset_ipc_stats()'s documented behavior.
func (k *Kernel) ResetStats() { k.stats.Reset() }

// DumpObjects returns a summary of every live IPC object, the Go
// equivalent of dump_ipc_objects().
func (k *Kernel) DumpObjects() []substrate.ObjectSummary { return k.registry.DumpObjects() }

// HealthCheck reports whether the core's failure counters indicate
// trouble, the Go equivalent of check_ipc_health().
func (k *Kernel) HealthCheck() HealthReport {
	snap := k.stats.Snapshot()
	return HealthReport{
		Healthy:            snap.AllocationFailures == 0 && snap.PermissionFailures == 0,
		ObjectCount:        k.registry.Count(),
		AllocationFailures: snap.AllocationFailures,
		PermissionFailures: snap.PermissionFailures,
		TimeoutFailures:    snap.TimeoutFailures,
	}
}

// HealthReport is the structured result of HealthCheck.
type HealthReport struct {
	Healthy            bool
	ObjectCount        int
	AllocationFailures uint32
	PermissionFailures uint32
	TimeoutFailures    uint32
}
