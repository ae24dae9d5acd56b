package shm

import (
	"errors"

	"github.com/edgexos/edgex/internal/pagemem"
	"github.com/edgexos/edgex/internal/sched"
)

var ErrOutOfBounds = errors.New("shm: offset/length outside segment bounds")

// View is one task's observed window onto a segment: the segment, the
// task's pid and its effective permissions. Pages are resolved through the
// segment on every access, with writes breaking copy-on-write the way the
// page-directory fault handler would (spec.md §4.6).
type View struct {
	seg   *Segment
	pid   sched.Pid
	perms Perms
}

func (s *Segment) viewLocked(pid sched.Pid, perms Perms) *View {
	return &View{seg: s, pid: pid, perms: perms}
}

func (v *View) pageForRead(index int) ([]byte, error) {
	s := v.seg
	if priv, ok := s.cow[v.pid]; ok {
		if id, broken := priv[index]; broken {
			return s.alloc.MapPages(id, pagemem.ProtRead)
		}
	}
	return s.alloc.MapPages(s.pageIDs[index], pagemem.ProtRead)
}

// pageForWrite resolves a copy-on-write break on first write to a page
// under a COW mapping: allocate a private page, copy the shared page's
// current contents, record it as this task's private override, and bump
// cowBreaks. Non-COW segments write straight into the shared page.
func (v *View) pageForWrite(index int) ([]byte, error) {
	s := v.seg
	if !s.flags.has(FlagCOW) {
		return s.alloc.MapPages(s.pageIDs[index], pagemem.ProtWrite)
	}

	priv, ok := s.cow[v.pid]
	if !ok {
		priv = make(map[int]pagemem.PageID)
		s.cow[v.pid] = priv
	}
	if id, broken := priv[index]; broken {
		return s.alloc.MapPages(id, pagemem.ProtWrite)
	}

	shared, err := s.alloc.MapPages(s.pageIDs[index], pagemem.ProtRead)
	if err != nil {
		return nil, err
	}
	newIDs, err := s.alloc.AllocPages(1)
	if err != nil {
		return nil, err
	}
	privPage, err := s.alloc.MapPages(newIDs[0], pagemem.ProtRead|pagemem.ProtWrite)
	if err != nil {
		return nil, err
	}
	copy(privPage, shared)

	priv[index] = newIDs[0]
	s.cowBreaks++
	return privPage, nil
}

// ReadAt copies length bytes starting at offset into a new slice.
func (v *View) ReadAt(offset, length int) ([]byte, error) {
	v.seg.mu.Lock()
	defer v.seg.mu.Unlock()

	if offset < 0 || length < 0 || offset+length > v.seg.realSize {
		return nil, ErrOutOfBounds
	}
	out := make([]byte, length)
	read := 0
	for read < length {
		index := (offset + read) / pagemem.PageSize
		within := (offset + read) % pagemem.PageSize
		page, err := v.pageForRead(index)
		if err != nil {
			return nil, err
		}
		n := copy(out[read:], page[within:])
		read += n
	}
	return out, nil
}

// WriteAt writes data starting at offset, breaking copy-on-write per
// page as needed.
func (v *View) WriteAt(offset int, data []byte) error {
	if v.perms&PermWrite == 0 {
		return ErrPermDenied
	}

	v.seg.mu.Lock()
	defer v.seg.mu.Unlock()

	if offset < 0 || offset+len(data) > v.seg.realSize {
		return ErrOutOfBounds
	}
	written := 0
	for written < len(data) {
		index := (offset + written) / pagemem.PageSize
		within := (offset + written) % pagemem.PageSize
		page, err := v.pageForWrite(index)
		if err != nil {
			return err
		}
		n := copy(page[within:], data[written:])
		written += n
	}
	return nil
}

// Size returns the number of bytes addressable through this view.
func (v *View) Size() int {
	v.seg.mu.Lock()
	defer v.seg.mu.Unlock()
	return v.seg.realSize
}
