package shm

import (
	"sync"

	"github.com/edgexos/edgex/internal/pagemem"
	"github.com/edgexos/edgex/internal/sched"
)

// Manager is the name-keyed registry of shared-memory segments, owning
// the Create-time name-collision and grow-in-place logic from spec.md
// §4.6 that sits above a single Segment's own state.
type Manager struct {
	mu      sync.Mutex
	byName  map[string]*Segment
	alloc   pagemem.Allocator
}

// NewManager creates an empty segment registry backed by alloc.
func NewManager(alloc pagemem.Allocator) *Manager {
	return &Manager{byName: make(map[string]*Segment), alloc: alloc}
}

// Create implements spec.md §4.6's Create: page-align size; if name
// already exists, enforce Exclusive / grow-via-Resize / bump-refcount
// semantics instead of allocating a fresh segment.
func (m *Manager) Create(name string, owner sched.Pid, size int, defaultPerms Perms, flags SegmentFlags) (*Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.byName[name]
	if !ok {
		seg, err := newSegment(name, owner, size, defaultPerms, flags, m.alloc)
		if err != nil {
			return nil, err
		}
		m.byName[name] = seg
		return seg, nil
	}

	if flags.has(FlagExclusive) {
		return nil, ErrNameCollision
	}

	existing.mu.Lock()
	tooSmall := size > existing.logicalSize
	hasResize := existing.flags.has(FlagResize)
	existing.mu.Unlock()

	if tooSmall {
		if !hasResize {
			return nil, ErrNoResize
		}
		if err := existing.Resize(size); err != nil {
			return nil, err
		}
	}

	existing.mu.Lock()
	if defaultPerms != 0 {
		existing.defaultPerms = defaultPerms
	}
	existing.mu.Unlock()
	existing.header.Retain()

	return existing, nil
}

// Lookup finds a segment by name without affecting refcount.
func (m *Manager) Lookup(name string) (*Segment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seg, ok := m.byName[name]
	return seg, ok
}

// Forget removes name from the registry, called once a segment's
// refcount reaches 0 and it is actually destroyed.
func (m *Manager) Forget(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byName, name)
}

// Destroy frees a segment's physical pages and removes it from the
// registry. Callers must have already confirmed refcount == 0 (or force
// teardown) and that Persist does not apply.
func (m *Manager) Destroy(seg *Segment) error {
	seg.mu.Lock()
	ids := seg.pageIDs
	seg.mu.Unlock()

	if err := m.alloc.FreePages(ids); err != nil {
		return err
	}
	m.Forget(seg.header.Name)
	return nil
}
