package ipcmutex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgexos/edgex/internal/sched"
)

// TestMutexContentionScenario implements spec.md §8 scenario 1: two tasks
// repeatedly lock/increment/unlock a shared counter; the final value must
// equal the sum of each task's local increments, with no lost updates.
func TestMutexContentionScenario(t *testing.T) {
	m, sc := newTestMutex(t)

	var counter int
	const rounds = 500
	var t1Local, t2Local int

	done := make(chan struct{}, 2)
	worker := func(pid sched.Pid, local *int) {
		sc.SetCurrentPid(pid)
		for i := 0; i < rounds; i++ {
			require.NoError(t, m.Lock(pid))
			counter++
			*local++
			require.NoError(t, m.Unlock(pid))
		}
		done <- struct{}{}
	}

	go worker(1, &t1Local)
	go worker(2, &t2Local)
	<-done
	<-done

	assert.Equal(t, t1Local+t2Local, counter)
	assert.Equal(t, 2*rounds, counter)
}
