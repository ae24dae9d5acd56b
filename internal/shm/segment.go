// Package shm implements the EdgeX shared-memory engine: page-backed
// segments with per-task mappings, permission intersection, resize, and
// copy-on-write breaks simulated over the pagemem.Allocator collaborator.
package shm

import (
	"errors"
	"sync"

	"github.com/edgexos/edgex/internal/pagemem"
	"github.com/edgexos/edgex/internal/sched"
	"github.com/edgexos/edgex/internal/substrate"
)

var (
	ErrNameCollision  = errors.New("shm: name already in use")
	ErrAlreadyMapped  = errors.New("shm: already mapped by this task")
	ErrPermDenied     = errors.New("shm: requested permissions outside default")
	ErrNoResize       = errors.New("shm: segment was not created with Resize")
	ErrOutOfMemory    = errors.New("shm: out of physical pages")
	ErrInvalidAddress = errors.New("shm: no mapping at that address for this task")
)

// Mapping records one task's view of a segment.
type Mapping struct {
	PID            sched.Pid
	VirtAddr       uintptr
	Size           int
	EffectivePerms Perms
}

// Segment is a page-backed shared-memory object. Its physical pages are
// shared across every non-COW mapping; a COW mapping diverges only on
// its first write to a given page (see cow.go).
type Segment struct {
	header substrate.Header

	mu           sync.Mutex
	logicalSize  int
	realSize     int // bytes, page-aligned
	pageIDs      []pagemem.PageID
	defaultPerms Perms
	flags        SegmentFlags
	mappings     []Mapping

	alloc    pagemem.Allocator
	nextVirt uintptr

	cow       map[sched.Pid]map[int]pagemem.PageID // page index -> private page, COW only
	cowBreaks uint64
}

// Header satisfies substrate.Object.
func (s *Segment) Header() *substrate.Header { return &s.header }

func pageAlign(size int) int {
	if size <= 0 {
		return pagemem.PageSize
	}
	if rem := size % pagemem.PageSize; rem != 0 {
		return size + (pagemem.PageSize - rem)
	}
	return size
}

func protFromPerms(p Perms) pagemem.Prot {
	var prot pagemem.Prot
	if p&PermRead != 0 {
		prot |= pagemem.ProtRead
	}
	if p&PermWrite != 0 {
		prot |= pagemem.ProtWrite
	}
	if p&PermExec != 0 {
		prot |= pagemem.ProtExec
	}
	return prot
}

func newSegment(name string, owner sched.Pid, size int, defaultPerms Perms, flags SegmentFlags, alloc pagemem.Allocator) (*Segment, error) {
	realSize := pageAlign(size)
	pageCount := realSize / pagemem.PageSize
	ids, err := alloc.AllocPages(pageCount)
	if err != nil {
		return nil, ErrOutOfMemory
	}
	return &Segment{
		header:       substrate.Header{Kind: substrate.KindSharedMemory, Name: name, OwnerPID: owner, RefCount: 1},
		logicalSize:  size,
		realSize:     realSize,
		pageIDs:      ids,
		defaultPerms: defaultPerms,
		flags:        flags,
		alloc:        alloc,
		nextVirt:     0x7f0000000000,
		cow:          make(map[sched.Pid]map[int]pagemem.PageID),
	}, nil
}

// Map installs a mapping for pid. If virtHint is 0, a fresh address is
// allocated from the segment's reserved virtual region. Returns a View
// for reading and writing this task's observed bytes.
func (s *Segment) Map(pid sched.Pid, virtHint uintptr, requestedPerms Perms) (*View, uintptr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.mappings {
		if m.PID == pid {
			return s.viewLocked(pid, m.EffectivePerms), m.VirtAddr, ErrAlreadyMapped
		}
	}

	effective := requestedPerms & s.defaultPerms
	if effective == 0 {
		return nil, 0, ErrPermDenied
	}

	virt := virtHint
	if virt == 0 {
		virt = s.nextVirt
		s.nextVirt += uintptr(s.realSize)
	}

	for _, id := range s.pageIDs {
		if _, err := s.alloc.MapPages(id, protFromPerms(effective)); err != nil {
			return nil, 0, err
		}
	}
	s.alloc.FlushTLB()

	s.mappings = append(s.mappings, Mapping{PID: pid, VirtAddr: virt, Size: s.realSize, EffectivePerms: effective})
	s.header.Retain()

	return s.viewLocked(pid, effective), virt, nil
}

// Unmap removes pid's mapping at addr, flushing the TLB and decrementing
// refcount. Returns true if the caller should now destroy the segment
// (refcount reached 0 and Persist was not set).
func (s *Segment) Unmap(pid sched.Pid, addr uintptr) (shouldDestroy bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, m := range s.mappings {
		if m.PID == pid && m.VirtAddr == addr {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, ErrInvalidAddress
	}

	for _, id := range s.pageIDs {
		_ = s.alloc.UnmapPages(id)
	}
	s.alloc.FlushTLB()

	s.mappings = append(s.mappings[:idx], s.mappings[idx+1:]...)
	delete(s.cow, pid)

	remaining := s.header.Release()
	if remaining == 0 && !s.flags.has(FlagPersist) {
		return true, nil
	}
	return false, nil
}

// Resize grows or shrinks the segment; only permitted when created with
// FlagResize. Grown tail pages are zero-filled; shrinking drops the tail
// pages from the segment's page list (discarding any COW private
// overrides past the new end) and frees them, so no holder's View can
// reach them afterwards.
func (s *Segment) Resize(newSize int) error {
	if !s.flags.has(FlagResize) {
		return ErrNoResize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	newReal := pageAlign(newSize)
	if newReal == s.realSize {
		s.logicalSize = newSize
		return nil
	}

	if newReal > s.realSize {
		addCount := (newReal - s.realSize) / pagemem.PageSize
		ids, err := s.alloc.AllocPages(addCount)
		if err != nil {
			return ErrOutOfMemory
		}
		s.pageIDs = append(s.pageIDs, ids...)
	} else {
		keepCount := newReal / pagemem.PageSize
		released := s.pageIDs[keepCount:]
		s.pageIDs = s.pageIDs[:keepCount]
		for pid := range s.cow {
			for idx := range s.cow[pid] {
				if idx >= keepCount {
					delete(s.cow[pid], idx)
				}
			}
		}
		_ = s.alloc.FreePages(released)
	}

	for i, m := range s.mappings {
		for _, id := range s.pageIDs {
			if _, err := s.alloc.MapPages(id, protFromPerms(m.EffectivePerms)); err != nil {
				return err
			}
		}
		s.mappings[i].Size = newReal
	}
	s.alloc.FlushTLB()

	s.logicalSize = newSize
	s.realSize = newReal
	return nil
}

// RealSize returns the page-aligned byte size.
func (s *Segment) RealSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.realSize
}

// MappingCount returns the number of active per-task mappings.
func (s *Segment) MappingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mappings)
}

// UnmapAllForTask unmaps every mapping owned by pid, as invoked by the
// task-exit hook. Returns true if the segment should now be destroyed.
func (s *Segment) UnmapAllForTask(pid sched.Pid) (shouldDestroy bool) {
	for {
		s.mu.Lock()
		addr := uintptr(0)
		found := false
		for _, m := range s.mappings {
			if m.PID == pid {
				addr = m.VirtAddr
				found = true
				break
			}
		}
		s.mu.Unlock()
		if !found {
			return false
		}
		destroy, _ := s.Unmap(pid, addr)
		if destroy {
			return true
		}
	}
}

// CowBreaks returns the number of copy-on-write breaks recorded so far.
func (s *Segment) CowBreaks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cowBreaks
}
