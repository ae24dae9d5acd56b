package pagemem

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Host allocates real anonymous pages via mmap and changes their
// protection with mprotect, modeled directly on the teacher's mmapQueues
// (raw SYS_MMAP for descriptor arrays and anonymous I/O buffers) and on
// unix.SchedSetaffinity's use of golang.org/x/sys/unix elsewhere in the
// teacher for host-facing syscalls.
type Host struct {
	mu    sync.Mutex
	pages map[PageID][]byte
	next  PageID
}

// NewHost creates a Host allocator with no pages allocated yet.
func NewHost() *Host {
	return &Host{pages: make(map[PageID][]byte)}
}

// AllocPages maps count pages of anonymous, private memory, one
// PageSize mmap per page, each individually tracked so FreePages can
// munmap them independently. If any mmap fails, the pages mapped so far
// are released.
func (h *Host) AllocPages(count int) ([]PageID, error) {
	if count <= 0 {
		return nil, fmt.Errorf("pagemem: count must be positive")
	}

	ids := make([]PageID, 0, count)
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := 0; i < count; i++ {
		b, err := unix.Mmap(-1, 0, PageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
		if err != nil {
			for _, id := range ids {
				_ = unix.Munmap(h.pages[id])
				delete(h.pages, id)
			}
			return nil, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
		}
		id := h.next
		h.next++
		h.pages[id] = b
		ids = append(ids, id)
	}
	return ids, nil
}

// FreePages munmaps every named page.
func (h *Host) FreePages(ids []PageID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range ids {
		b, ok := h.pages[id]
		if !ok {
			return ErrUnknownPage
		}
		if err := unix.Munmap(b); err != nil {
			return fmt.Errorf("pagemem: munmap page %d: %w", id, err)
		}
		delete(h.pages, id)
	}
	return nil
}

// MapPages returns the byte slice backing id, after applying the
// requested protection with mprotect.
func (h *Host) MapPages(id PageID, prot Prot) ([]byte, error) {
	h.mu.Lock()
	b, ok := h.pages[id]
	h.mu.Unlock()
	if !ok {
		return nil, ErrUnknownPage
	}

	if err := unix.Mprotect(b, toUnixProt(prot)); err != nil {
		return nil, fmt.Errorf("pagemem: mprotect page %d: %w", id, err)
	}
	return b, nil
}

// UnmapPages restores the page to read/write, the resting permission used
// between explicit MapPages calls.
func (h *Host) UnmapPages(id PageID) error {
	h.mu.Lock()
	b, ok := h.pages[id]
	h.mu.Unlock()
	if !ok {
		return ErrUnknownPage
	}
	return unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE)
}

// FlushTLB is a no-op: a single Go process has one address space and the
// Go runtime/OS already keep it coherent across goroutines.
func (h *Host) FlushTLB() {}

func toUnixProt(p Prot) int {
	out := 0
	if p&ProtRead != 0 {
		out |= unix.PROT_READ
	}
	if p&ProtWrite != 0 {
		out |= unix.PROT_WRITE
	}
	if p&ProtExec != 0 {
		out |= unix.PROT_EXEC
	}
	if out == 0 {
		out = unix.PROT_NONE
	}
	return out
}

var _ Allocator = (*Host)(nil)
