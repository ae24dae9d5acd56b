package msgqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgexos/edgex/internal/sched"
	"github.com/edgexos/edgex/internal/substrate"
)

func newTestQueue(t *testing.T, capacity int) (*Queue, *sched.Local) {
	t.Helper()
	sc := sched.NewLocal(time.Millisecond)
	sc.Start()
	t.Cleanup(sc.Stop)
	return New("test_q", 0, capacity, sc, &substrate.Stats{}), sc
}

func TestQueueSendReceiveFIFOWithinTier(t *testing.T) {
	q, _ := newTestQueue(t, 4)

	require.NoError(t, q.Send(1, &Message{Priority: PriorityNormal, Payload: []byte("a")}, 1))
	require.NoError(t, q.Send(1, &Message{Priority: PriorityNormal, Payload: []byte("b")}, 2))

	m1, err := q.Receive(2, FlagNonBlock)
	require.NoError(t, err)
	m2, err := q.Receive(2, FlagNonBlock)
	require.NoError(t, err)

	assert.Equal(t, []byte("a"), m1.Payload)
	assert.Equal(t, []byte("b"), m2.Payload)
}

func TestQueueNonBlockSendFailsWhenFull(t *testing.T) {
	q, _ := newTestQueue(t, 1)
	require.NoError(t, q.Send(1, &Message{Payload: []byte("x")}, 1))

	err := q.Send(1, &Message{Flags: FlagNonBlock, Payload: []byte("y")}, 2)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueueNonBlockReceiveFailsWhenEmpty(t *testing.T) {
	q, _ := newTestQueue(t, 1)
	_, err := q.Receive(1, FlagNonBlock)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestQueueRejectsOversizedPayload(t *testing.T) {
	q, _ := newTestQueue(t, 1)
	err := q.Send(1, &Message{Payload: make([]byte, MaxPayloadSize+1)}, 1)
	assert.ErrorIs(t, err, ErrPayloadTooBig)
}

func TestQueueSendBlocksUntilReceiveFreesSlot(t *testing.T) {
	q, sc := newTestQueue(t, 1)
	require.NoError(t, q.Send(1, &Message{Payload: []byte("first")}, 1))

	done := make(chan error, 1)
	go func() {
		sc.SetCurrentPid(2)
		done <- q.Send(2, &Message{Payload: []byte("second")}, 2)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("blocking send returned before a slot was freed")
	default:
	}

	_, err := q.Receive(3, FlagNonBlock)
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked sender was never woken")
	}
}

func TestQueueReplySetsResponseFields(t *testing.T) {
	q, _ := newTestQueue(t, 4)
	original := &Message{ID: 42, SenderPID: 9, Priority: PriorityLow}

	require.NoError(t, q.Reply(1, original, &Message{Payload: []byte("ack")}, 5))

	reply, err := q.Receive(9, FlagNonBlock)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), reply.ReceiverPID)
	assert.Equal(t, KindResponse, reply.Kind)
	assert.Equal(t, original.ID, reply.ReplyID)
	assert.Equal(t, PriorityHigh, reply.Priority)
}

func TestQueueStatsTrackSendReceive(t *testing.T) {
	q, _ := newTestQueue(t, 4)
	require.NoError(t, q.Send(1, &Message{Payload: []byte("a")}, 1))
	_, err := q.Receive(2, FlagNonBlock)
	require.NoError(t, err)

	stats := q.Stats()
	assert.Equal(t, uint64(1), stats.Sent)
	assert.Equal(t, uint64(1), stats.Received)
}

func TestQueuePurgeTaskRemovesMessagesAndResyncsSlots(t *testing.T) {
	q, _ := newTestQueue(t, 5)
	for pid := uint32(100); pid <= 104; pid++ {
		require.NoError(t, q.Send(sched.Pid(pid), &Message{
			SenderPID: pid,
			Priority:  PriorityNormal,
			Payload:   []byte{byte(pid)},
		}, uint64(pid)))
	}
	require.Equal(t, 5, q.CurrentSize())

	q.PurgeTask(102)

	assert.Equal(t, 4, q.CurrentSize())
	for _, m := range q.messages {
		assert.NotEqual(t, uint32(102), m.SenderPID)
	}
	assert.Equal(t, 1, q.freeSlots.GetValue())
	assert.Equal(t, 4, q.usedSlots.GetValue())
}
