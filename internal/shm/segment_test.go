package shm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgexos/edgex/internal/pagemem"
)

func TestSegmentMapPermissionIntersection(t *testing.T) {
	alloc := pagemem.NewSim()
	seg, err := newSegment("seg1", 1, pagemem.PageSize, PermRead, 0, alloc)
	require.NoError(t, err)

	_, _, err = seg.Map(2, 0, PermRead|PermWrite)
	require.NoError(t, err)

	v, _, err := seg.Map(2, 0, PermRead|PermWrite)
	assert.ErrorIs(t, err, ErrAlreadyMapped)
	assert.NotNil(t, v)
}

func TestSegmentMapDeniesPermsOutsideDefault(t *testing.T) {
	alloc := pagemem.NewSim()
	seg, err := newSegment("seg2", 1, pagemem.PageSize, PermRead, 0, alloc)
	require.NoError(t, err)

	_, _, err = seg.Map(2, 0, PermWrite)
	assert.ErrorIs(t, err, ErrPermDenied)
}

func TestSegmentMapAllocatesDistinctVirtAddrs(t *testing.T) {
	alloc := pagemem.NewSim()
	seg, err := newSegment("seg3", 1, pagemem.PageSize, PermRead|PermWrite, 0, alloc)
	require.NoError(t, err)

	_, addr1, err := seg.Map(2, 0, PermRead)
	require.NoError(t, err)
	_, addr2, err := seg.Map(3, 0, PermRead)
	require.NoError(t, err)
	assert.NotEqual(t, addr1, addr2)
}

func TestSegmentUnmapDecrementsRefcountCreatorKeepsSegment(t *testing.T) {
	alloc := pagemem.NewSim()
	seg, err := newSegment("seg4", 1, pagemem.PageSize, PermRead|PermWrite, 0, alloc)
	require.NoError(t, err)

	_, addr, err := seg.Map(2, 0, PermRead)
	require.NoError(t, err)

	destroy, err := seg.Unmap(2, addr)
	require.NoError(t, err)
	// creator's initial RefCount=1 plus one mapping retain = 2; one
	// release from Unmap leaves 1 (creator still holds), not destroyed.
	assert.False(t, destroy)

	destroy, err = seg.Unmap(2, addr)
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.False(t, destroy)
}

func TestSegmentUnmapUnknownAddrFails(t *testing.T) {
	alloc := pagemem.NewSim()
	seg, err := newSegment("seg5", 1, pagemem.PageSize, PermRead, 0, alloc)
	require.NoError(t, err)

	_, err = segUnmapBogus(seg)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func segUnmapBogus(seg *Segment) (bool, error) {
	return seg.Unmap(99, 0xdeadbeef)
}

func TestSegmentResizeRequiresFlag(t *testing.T) {
	alloc := pagemem.NewSim()
	seg, err := newSegment("seg6", 1, pagemem.PageSize, PermRead|PermWrite, 0, alloc)
	require.NoError(t, err)

	err = seg.Resize(pagemem.PageSize * 2)
	assert.ErrorIs(t, err, ErrNoResize)
}

func TestSegmentResizeGrowZerosNewTail(t *testing.T) {
	alloc := pagemem.NewSim()
	seg, err := newSegment("seg7", 1, pagemem.PageSize, PermRead|PermWrite, FlagResize, alloc)
	require.NoError(t, err)

	v, _, err := seg.Map(2, 0, PermRead|PermWrite)
	require.NoError(t, err)

	require.NoError(t, seg.Resize(pagemem.PageSize*2))
	assert.Equal(t, pagemem.PageSize*2, seg.RealSize())

	tail, err := v.ReadAt(pagemem.PageSize, 16)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), tail)
}

func TestSegmentResizeShrinkFreesPages(t *testing.T) {
	alloc := pagemem.NewSim()
	seg, err := newSegment("seg8", 1, pagemem.PageSize*2, PermRead|PermWrite, FlagResize, alloc)
	require.NoError(t, err)

	require.NoError(t, seg.Resize(pagemem.PageSize))
	assert.Equal(t, pagemem.PageSize, seg.RealSize())
}
