package shm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgexos/edgex/internal/pagemem"
)

func TestCowWriteDivergesOnlyForFaultingTask(t *testing.T) {
	alloc := pagemem.NewSim()
	seg, err := newSegment("cow1", 1, pagemem.PageSize, PermRead|PermWrite, FlagCOW, alloc)
	require.NoError(t, err)

	vA, _, err := seg.Map(2, 0, PermRead|PermWrite)
	require.NoError(t, err)
	vB, _, err := seg.Map(3, 0, PermRead|PermWrite)
	require.NoError(t, err)

	require.NoError(t, vA.WriteAt(0, []byte("A's private data")))

	gotA, err := vA.ReadAt(0, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte("A's private data"), gotA)

	gotB, err := vB.ReadAt(0, 16)
	require.NoError(t, err)
	assert.NotEqual(t, []byte("A's private data"), gotB)

	assert.Equal(t, uint64(1), seg.CowBreaks())
}

func TestCowSecondWriteDoesNotBreakAgain(t *testing.T) {
	alloc := pagemem.NewSim()
	seg, err := newSegment("cow2", 1, pagemem.PageSize, PermRead|PermWrite, FlagCOW, alloc)
	require.NoError(t, err)

	v, _, err := seg.Map(2, 0, PermRead|PermWrite)
	require.NoError(t, err)

	require.NoError(t, v.WriteAt(0, []byte("first")))
	require.NoError(t, v.WriteAt(0, []byte("second")))

	assert.Equal(t, uint64(1), seg.CowBreaks())
}

func TestNonCowWriteIsVisibleToAllMappings(t *testing.T) {
	alloc := pagemem.NewSim()
	seg, err := newSegment("nocow", 1, pagemem.PageSize, PermRead|PermWrite, 0, alloc)
	require.NoError(t, err)

	vA, _, err := seg.Map(2, 0, PermRead|PermWrite)
	require.NoError(t, err)
	vB, _, err := seg.Map(3, 0, PermRead|PermWrite)
	require.NoError(t, err)

	require.NoError(t, vA.WriteAt(0, []byte("shared")))

	gotB, err := vB.ReadAt(0, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), gotB)
	assert.Equal(t, uint64(0), seg.CowBreaks())
}

func TestViewWriteDeniedWithoutWritePerm(t *testing.T) {
	alloc := pagemem.NewSim()
	seg, err := newSegment("rodeny", 1, pagemem.PageSize, PermRead|PermWrite, 0, alloc)
	require.NoError(t, err)

	v, _, err := seg.Map(2, 0, PermRead)
	require.NoError(t, err)

	err = v.WriteAt(0, []byte("x"))
	assert.ErrorIs(t, err, ErrPermDenied)
}
