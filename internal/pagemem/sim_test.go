package pagemem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimAllocAndMap(t *testing.T) {
	s := NewSim()
	ids, err := s.AllocPages(3)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	b, err := s.MapPages(ids[0], ProtRead|ProtWrite)
	require.NoError(t, err)
	require.Len(t, b, PageSize)

	b[0] = 0xAB
	b2, err := s.MapPages(ids[0], ProtRead)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), b2[0], "writes through one mapping must be visible through another")
}

func TestSimFreeThenMapFails(t *testing.T) {
	s := NewSim()
	ids, err := s.AllocPages(1)
	require.NoError(t, err)

	require.NoError(t, s.FreePages(ids))
	_, err = s.MapPages(ids[0], ProtRead)
	assert.ErrorIs(t, err, ErrUnknownPage)
}

func TestSimFreeUnknownPage(t *testing.T) {
	s := NewSim()
	err := s.FreePages([]PageID{999})
	assert.ErrorIs(t, err, ErrUnknownPage)
}

func TestSimAllocZeroCountErrors(t *testing.T) {
	s := NewSim()
	_, err := s.AllocPages(0)
	assert.Error(t, err)
}

func TestSimFlushTLBNoop(t *testing.T) {
	s := NewSim()
	assert.NotPanics(t, s.FlushTLB)
}
