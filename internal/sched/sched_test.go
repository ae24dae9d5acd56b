package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBlockUnblock(t *testing.T) {
	l := NewLocal(time.Millisecond)
	woke := make(chan struct{})

	go func() {
		l.BlockTask(42)
		close(woke)
	}()

	time.Sleep(10 * time.Millisecond)
	l.UnblockTask(42)

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("BlockTask never woke up")
	}
}

func TestLocalUnblockWithNoWaiterDoesNotPanic(t *testing.T) {
	l := NewLocal(time.Millisecond)
	assert.NotPanics(t, func() { l.UnblockTask(999) })
}

// TestLocalUnblockBeforeBlockIsNotLost covers the window the IPC contract
// documents (block_task is always called with the object lock already
// released): an UnblockTask that lands before the matching BlockTask call
// must still be honored, not dropped.
func TestLocalUnblockBeforeBlockIsNotLost(t *testing.T) {
	l := NewLocal(time.Millisecond)

	l.UnblockTask(9)

	woke := make(chan struct{})
	go func() {
		l.BlockTask(9)
		close(woke)
	}()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("BlockTask did not consume the pending wake token")
	}
}

func TestLocalTimerHookTicks(t *testing.T) {
	l := NewLocal(5 * time.Millisecond)
	ticks := make(chan uint64, 16)
	l.RegisterTimerHook(func(now uint64) {
		select {
		case ticks <- now:
		default:
		}
	})
	l.Start()
	defer l.Stop()

	select {
	case n := <-ticks:
		assert.Greater(t, n, uint64(0))
	case <-time.After(time.Second):
		t.Fatal("timer hook never fired")
	}
}

func TestLocalExitTaskInvokesHooks(t *testing.T) {
	l := NewLocal(time.Millisecond)
	var exited Pid
	l.RegisterTaskExitHook(func(pid Pid) { exited = pid })

	l.ExitTask(7)
	assert.Equal(t, Pid(7), exited)
}

func TestLocalExitTaskWakesParkedGoroutine(t *testing.T) {
	l := NewLocal(time.Millisecond)
	woke := make(chan struct{})
	go func() {
		l.BlockTask(3)
		close(woke)
	}()
	time.Sleep(10 * time.Millisecond)
	l.ExitTask(3)

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("ExitTask did not wake the parked task")
	}
}

func TestLocalBoostAndResetPriority(t *testing.T) {
	l := NewLocal(time.Millisecond)
	l.BoostPriority(1, 10)
	require.Equal(t, 10, l.Priority(1))

	l.BoostPriority(1, 5)
	assert.Equal(t, 10, l.Priority(1), "boost should only raise the ceiling")

	l.BoostPriority(1, 20)
	assert.Equal(t, 20, l.Priority(1))

	l.ResetPriority(1)
	assert.Equal(t, 0, l.Priority(1))
}

func TestLocalCurrentPid(t *testing.T) {
	l := NewLocal(time.Millisecond)
	l.SetCurrentPid(55)
	assert.Equal(t, Pid(55), l.CurrentPid())
}
