package substrate

import (
	"sync"
	"sync/atomic"

	"github.com/edgexos/edgex/internal/sched"
)

// DefaultCapacity bounds the total number of live IPC objects the registry
// will hold, the Go analogue of the original's fixed kernel object pools.
const DefaultCapacity = 4096

// Registry is the process-wide object/ownership table: "the registries ...
// are process-wide. Initialise once ... Protect with dedicated locks"
// (spec §9). The registry lock is always acquired before any object lock
// (spec §5).
type Registry struct {
	mu       sync.Mutex
	capacity int
	objects  map[*Header]Object
	byOwner  map[sched.Pid][]Object

	Stats *Stats
}

// NewRegistry creates an empty registry with the given capacity (0 means
// DefaultCapacity).
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity: capacity,
		objects:  make(map[*Header]Object),
		byOwner:  make(map[sched.Pid][]Object),
		Stats:    &Stats{},
	}
}

// Register places obj in the registry and in owner's cleanup list. It
// fails only on capacity exhaustion, matching spec §4.1: "fails only on
// capacity exhaustion."
func (r *Registry) Register(obj Object) error {
	h := obj.Header()

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.objects) >= r.capacity {
		r.Stats.AllocationFailure()
		return ErrAllocFailure
	}

	r.objects[h] = obj
	r.byOwner[h.OwnerPID] = append(r.byOwner[h.OwnerPID], obj)
	r.Stats.ObjectCreated(h.Kind)
	return nil
}

// Unregister removes obj from the registry and from its owner's cleanup
// list.
func (r *Registry) Unregister(obj Object) {
	h := obj.Header()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.objects[h]; !ok {
		return
	}
	delete(r.objects, h)
	r.removeFromOwnerLocked(h.OwnerPID, obj)
	r.Stats.ObjectDestroyed(h.Kind)
}

func (r *Registry) removeFromOwnerLocked(pid sched.Pid, obj Object) {
	list := r.byOwner[pid]
	for i, o := range list {
		if o == obj {
			r.byOwner[pid] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(r.byOwner[pid]) == 0 {
		delete(r.byOwner, pid)
	}
}

// OwnedBy returns a snapshot slice of every object owned by pid, for the
// task-exit cleanup walk.
func (r *Registry) OwnedBy(pid sched.Pid) []Object {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.byOwner[pid]
	out := make([]Object, len(list))
	copy(out, list)
	return out
}

// DumpObjects returns a summary of every registered object, the Go
// equivalent of dump_ipc_objects() from the original headers.
func (r *Registry) DumpObjects() []ObjectSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ObjectSummary, 0, len(r.objects))
	for h := range r.objects {
		out = append(out, ObjectSummary{
			Kind:     h.Kind,
			Name:     h.Name,
			RefCount: atomic.LoadInt32(&h.RefCount),
			OwnerPID: h.OwnerPID,
		})
	}
	return out
}

// ObjectSummary is one line of dump_ipc_objects()-equivalent output.
type ObjectSummary struct {
	Kind     Kind
	Name     string
	RefCount int32
	OwnerPID sched.Pid
}

// Count returns the number of currently registered objects.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objects)
}
