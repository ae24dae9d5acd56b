package msgqueue

import (
	"errors"
	"sync"

	"github.com/edgexos/edgex/internal/sched"
)

// MaxQueuesPerTask is the spec's per-task capacity ceiling (spec.md §3:
// "Capacity per task ≤ 16").
const MaxQueuesPerTask = 16

// Mode selects which of a task's designated default queues to consult.
type Mode int

const (
	ModeSend Mode = iota
	ModeReceive
	ModeAny
)

var (
	ErrTaskQueueCapacity = errors.New("msgqueue: task already owns MaxQueuesPerTask queues")
	ErrNoRoute           = errors.New("msgqueue: no routable queue for pid")
)

type taskEntry struct {
	queues         []*Queue
	defaultSend    int // index into queues, -1 if unset
	defaultReceive int
}

// TaskRegistry maps a PID to its ordered list of owned queues, with
// designated default-send and default-receive indices.
type TaskRegistry struct {
	mu      sync.Mutex
	byTask  map[sched.Pid]*taskEntry
}

// NewTaskRegistry creates an empty task-queue registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{byTask: make(map[sched.Pid]*taskEntry)}
}

// Register adds q to pid's owned-queue list. If pid has no default send
// or receive queue yet, q becomes both.
func (tr *TaskRegistry) Register(pid sched.Pid, q *Queue) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	e, ok := tr.byTask[pid]
	if !ok {
		e = &taskEntry{defaultSend: -1, defaultReceive: -1}
		tr.byTask[pid] = e
	}
	if len(e.queues) >= MaxQueuesPerTask {
		return ErrTaskQueueCapacity
	}

	e.queues = append(e.queues, q)
	idx := len(e.queues) - 1
	if e.defaultSend == -1 {
		e.defaultSend = idx
	}
	if e.defaultReceive == -1 {
		e.defaultReceive = idx
	}
	return nil
}

// Unregister removes q from pid's owned-queue list, fixing up the
// default indices if they pointed at the removed entry.
func (tr *TaskRegistry) Unregister(pid sched.Pid, q *Queue) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	e, ok := tr.byTask[pid]
	if !ok {
		return
	}
	for i, existing := range e.queues {
		if existing == q {
			e.queues = append(e.queues[:i], e.queues[i+1:]...)
			e.defaultSend = fixupIndex(e.defaultSend, i, len(e.queues))
			e.defaultReceive = fixupIndex(e.defaultReceive, i, len(e.queues))
			break
		}
	}
	if len(e.queues) == 0 {
		delete(tr.byTask, pid)
	}
}

func fixupIndex(idx, removed, newLen int) int {
	switch {
	case newLen == 0:
		return -1
	case idx == removed:
		return 0
	case idx > removed:
		return idx - 1
	default:
		return idx
	}
}

// FindTaskQueue consults the registry for pid's default queue under mode.
// ModeAny prefers the default-send queue, falling back to default-receive.
func (tr *TaskRegistry) FindTaskQueue(pid sched.Pid, mode Mode) (*Queue, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	e, ok := tr.byTask[pid]
	if !ok {
		return nil, ErrNoRoute
	}

	switch mode {
	case ModeSend:
		if e.defaultSend < 0 {
			return nil, ErrNoRoute
		}
		return e.queues[e.defaultSend], nil
	case ModeReceive:
		if e.defaultReceive < 0 {
			return nil, ErrNoRoute
		}
		return e.queues[e.defaultReceive], nil
	default: // ModeAny
		if e.defaultSend >= 0 {
			return e.queues[e.defaultSend], nil
		}
		if e.defaultReceive >= 0 {
			return e.queues[e.defaultReceive], nil
		}
		return nil, ErrNoRoute
	}
}

// QueuesOf returns a snapshot of pid's owned queues, for the task-exit
// cleanup walk.
func (tr *TaskRegistry) QueuesOf(pid sched.Pid) []*Queue {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	e, ok := tr.byTask[pid]
	if !ok {
		return nil
	}
	out := make([]*Queue, len(e.queues))
	copy(out, e.queues)
	return out
}
