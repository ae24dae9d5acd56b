package substrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgexos/edgex/internal/sched"
)

type fakeObject struct {
	h *Header
}

func (f *fakeObject) Header() *Header { return f.h }

func newFakeObject(kind Kind, name string, owner sched.Pid) *fakeObject {
	return &fakeObject{h: &Header{Kind: kind, Name: name, OwnerPID: owner, RefCount: 1}}
}

func TestRegistryRegisterAndUnregister(t *testing.T) {
	r := NewRegistry(0)
	obj := newFakeObject(KindMutex, "lock_a", 7)

	require.NoError(t, r.Register(obj))
	assert.Equal(t, 1, r.Count())

	snap := r.Stats.Snapshot()
	assert.Equal(t, uint64(1), snap.ObjectsCreated)
	assert.Equal(t, int32(1), snap.MutexCount)

	owned := r.OwnedBy(7)
	require.Len(t, owned, 1)
	assert.Same(t, obj, owned[0])

	r.Unregister(obj)
	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.OwnedBy(7))

	snap = r.Stats.Snapshot()
	assert.Equal(t, uint64(1), snap.ObjectsDestroyed)
	assert.Equal(t, int32(0), snap.MutexCount)
}

func TestRegistryCapacityExhaustion(t *testing.T) {
	r := NewRegistry(1)
	require.NoError(t, r.Register(newFakeObject(KindSemaphore, "s1", 1)))

	err := r.Register(newFakeObject(KindSemaphore, "s2", 1))
	assert.ErrorIs(t, err, ErrAllocFailure)

	snap := r.Stats.Snapshot()
	assert.Equal(t, uint32(1), snap.AllocationFailures)
}

func TestRegistryDumpObjects(t *testing.T) {
	r := NewRegistry(0)
	require.NoError(t, r.Register(newFakeObject(KindEvent, "ready", 3)))

	dump := r.DumpObjects()
	require.Len(t, dump, 1)
	assert.Equal(t, "ready", dump[0].Name)
	assert.Equal(t, sched.Pid(3), dump[0].OwnerPID)
}

func TestRegistryOwnedByMultipleObjects(t *testing.T) {
	r := NewRegistry(0)
	a := newFakeObject(KindMutex, "a", 5)
	b := newFakeObject(KindSemaphore, "b", 5)
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	owned := r.OwnedBy(5)
	assert.Len(t, owned, 2)

	r.Unregister(a)
	owned = r.OwnedBy(5)
	require.Len(t, owned, 1)
	assert.Same(t, b, owned[0])
}
