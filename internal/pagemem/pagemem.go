// Package pagemem defines the physical-page collaborator contract the
// shared-memory engine relies on for page allocation, mapping, and TLB
// maintenance, plus a real mmap-backed implementation and a pure-Go
// fallback for hosts where anonymous mmap is unavailable.
package pagemem

import "fmt"

// PageSize is the unit of allocation and mapping used throughout the IPC
// core, matching the host's standard page size on the platforms this
// module targets.
const PageSize = 4096

// Prot is a page protection bitmask, mirroring mmap's PROT_* flags.
type Prot int

const (
	ProtRead Prot = 1 << iota
	ProtWrite
	ProtExec
)

// PageID identifies one allocated page within an Allocator. It has no
// meaning across different Allocator instances.
type PageID uint64

// Allocator is the collaborator interface consumed by internal/shm. A host
// mmap-backed implementation (Host) and a pure-Go fallback (Sim) both
// satisfy it.
type Allocator interface {
	// AllocPages allocates count pages (not necessarily adjacent in
	// memory) and returns their ids in allocation order. Returns an error if the host is out of memory.
	AllocPages(count int) ([]PageID, error)

	// FreePages releases previously allocated pages. Freeing a page still
	// referenced by a mapping is a caller error.
	FreePages(ids []PageID) error

	// MapPages exposes the raw bytes backing a page for reading or
	// writing. The returned slice aliases the page's storage; callers
	// must not retain it past the next MapPages/FreePages call for the
	// same id in implementations that may relocate storage (Sim does
	// not; Host never does either, but the contract is the same for
	// both).
	MapPages(id PageID, prot Prot) ([]byte, error)

	// UnmapPages signals the allocator that the caller is done with the
	// slice returned by MapPages. Host uses this to mprotect the page
	// back to its resting permissions; Sim ignores it.
	UnmapPages(id PageID) error

	// FlushTLB is a no-op single-process stand-in for the real kernel's
	// TLB shootdown across CPUs; spec.md declares multi-CPU TLB
	// consistency out of scope for this core.
	FlushTLB()
}

// ErrOutOfMemory is returned by AllocPages when no more pages are
// available.
var ErrOutOfMemory = fmt.Errorf("pagemem: out of memory")

// ErrUnknownPage is returned when an operation names a PageID the
// allocator never produced or has already freed.
var ErrUnknownPage = fmt.Errorf("pagemem: unknown page id")
