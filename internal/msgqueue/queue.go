package msgqueue

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/edgexos/edgex/internal/ipcsem"
	"github.com/edgexos/edgex/internal/sched"
	"github.com/edgexos/edgex/internal/substrate"
)

var (
	ErrQueueFull      = errors.New("msgqueue: queue full")
	ErrQueueEmpty     = errors.New("msgqueue: queue empty")
	ErrTimeout        = errors.New("msgqueue: timed operation expired")
	ErrQueueDestroyed = errors.New("msgqueue: queue destroyed while waiting")
	ErrPayloadTooBig  = errors.New("msgqueue: payload exceeds MaxPayloadSize")
)

// QueueStats is a snapshot of the per-queue counters: sent, received,
// blocked sends, blocked receives, dropped and timeouts. Per-priority
// (high/urgent) counts are not tracked, and Timeouts stays 0 because
// Send and Receive have no timed mode.
type QueueStats struct {
	Sent           uint64
	Received       uint64
	BlockedSends   uint64
	BlockedReceives uint64
	Dropped        uint64
	Timeouts       uint64
}

// Queue is a priority-ordered, fixed-capacity message queue. Delivery
// order: highest priority first, FIFO within a tier; Urgent-flagged
// sends force absolute head-of-queue regardless of priority.
type Queue struct {
	header substrate.Header

	mu       sync.Mutex
	capacity int
	messages []*Message // kept sorted by delivery order: head = next to receive

	freeSlots *ipcsem.Semaphore
	usedSlots *ipcsem.Semaphore

	sc      sched.Scheduler
	nextID  uint32

	stats struct {
		sent, received, blockedSends, blockedReceives, dropped, timeouts uint64
	}
}

// New creates an empty queue of the given capacity.
func New(name string, owner sched.Pid, capacity int, sc sched.Scheduler, rstats *substrate.Stats) *Queue {
	return &Queue{
		header:    substrate.Header{Kind: substrate.KindMessageQueue, Name: name, OwnerPID: owner, RefCount: 1},
		capacity:  capacity,
		freeSlots: ipcsem.New(name+".free", owner, capacity, capacity, sc, rstats),
		usedSlots: ipcsem.New(name+".used", owner, 0, capacity, sc, rstats),
		sc:        sc,
	}
}

// Header satisfies substrate.Object.
func (q *Queue) Header() *substrate.Header { return &q.header }

// Capacity returns the queue's fixed slot count.
func (q *Queue) Capacity() int { return q.capacity }

// CurrentSize returns the number of messages currently queued.
func (q *Queue) CurrentSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// Send enqueues msg, auto-filling ID, SenderPID and TimestampMs. Under
// FlagNonBlock it fails immediately with ErrQueueFull instead of
// blocking for a free slot.
func (q *Queue) Send(senderPID sched.Pid, msg *Message, nowMs uint64) error {
	if len(msg.Payload) > MaxPayloadSize {
		return ErrPayloadTooBig
	}

	if msg.Flags&FlagNonBlock != 0 {
		if err := q.freeSlots.TryWait(); err != nil {
			atomic.AddUint64(&q.stats.dropped, 1)
			return ErrQueueFull
		}
	} else {
		atomic.AddUint64(&q.stats.blockedSends, 1)
		if err := q.freeSlots.Wait(q.sc.CurrentPid()); err != nil {
			return translateSemErr(err)
		}
	}

	msg.ID = atomic.AddUint32(&q.nextID, 1)
	msg.SenderPID = uint32(senderPID)
	msg.TimestampMs = nowMs
	msg.Size = uint32(len(msg.Payload))

	q.mu.Lock()
	q.insertLocked(msg)
	q.mu.Unlock()

	atomic.AddUint64(&q.stats.sent, 1)
	_ = q.usedSlots.Post()
	return nil
}

// insertLocked places msg in delivery order: Urgent-flagged sends go to
// the absolute head; otherwise insert after the last message whose
// priority is ≥ msg.Priority (descending-priority, FIFO-within-tier).
//
// The glossary's "Urgent message" is a send-time flag independent of
// priority, but Flags (spec.md §6) has no FlagUrgent bit — the only
// place spec.md §8 scenario 3 exercises it, the flag is set on a message
// already carrying PriorityUrgent. So PriorityUrgent itself is treated
// as the forcing condition here: it is the only tier that can reach the
// head, which already matches "Urgent sends dequeue before any
// non-Urgent regardless of priority" (spec.md §8) since nothing outranks
// it in the tier ordering below.
func (q *Queue) insertLocked(msg *Message) {
	if msg.Priority == PriorityUrgent {
		q.messages = append([]*Message{msg}, q.messages...)
		return
	}

	idx := len(q.messages)
	for i, existing := range q.messages {
		if existing.Priority < msg.Priority {
			idx = i
			break
		}
	}
	q.messages = append(q.messages, nil)
	copy(q.messages[idx+1:], q.messages[idx:])
	q.messages[idx] = msg
}

// Receive pops the earliest highest-priority message. Under
// FlagNonBlock it fails immediately with ErrQueueEmpty instead of
// blocking for an available message.
func (q *Queue) Receive(receiverPID sched.Pid, flags Flags) (*Message, error) {
	if flags&FlagNonBlock != 0 {
		if err := q.usedSlots.TryWait(); err != nil {
			return nil, ErrQueueEmpty
		}
	} else {
		atomic.AddUint64(&q.stats.blockedReceives, 1)
		if err := q.usedSlots.Wait(receiverPID); err != nil {
			return nil, translateSemErr(err)
		}
	}

	q.mu.Lock()
	msg := q.messages[0]
	q.messages = q.messages[1:]
	q.mu.Unlock()

	atomic.AddUint64(&q.stats.received, 1)
	_ = q.freeSlots.Post()
	return msg, nil
}

// Reply sends a response to original's sender: receiver = original's
// sender, kind = Response, reply_id = original's id, priority = High.
func (q *Queue) Reply(senderPID sched.Pid, original *Message, reply *Message, nowMs uint64) error {
	reply.ReceiverPID = original.SenderPID
	reply.Kind = KindResponse
	reply.ReplyID = original.ID
	reply.Priority = PriorityHigh
	return q.Send(senderPID, reply, nowMs)
}

// Stats returns a point-in-time snapshot of per-queue counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Sent:            atomic.LoadUint64(&q.stats.sent),
		Received:        atomic.LoadUint64(&q.stats.received),
		BlockedSends:    atomic.LoadUint64(&q.stats.blockedSends),
		BlockedReceives: atomic.LoadUint64(&q.stats.blockedReceives),
		Dropped:         atomic.LoadUint64(&q.stats.dropped),
		Timeouts:        atomic.LoadUint64(&q.stats.timeouts),
	}
}

// PurgeTask removes every message whose sender or receiver is pid, then
// resyncs free_slots/used_slots to the new size — the task-exit hook's
// message-queue-specific cleanup step (spec §4.5).
func (q *Queue) PurgeTask(pid sched.Pid) {
	q.mu.Lock()
	kept := q.messages[:0]
	for _, m := range q.messages {
		if m.SenderPID == uint32(pid) || m.ReceiverPID == uint32(pid) {
			continue
		}
		kept = append(kept, m)
	}
	q.messages = kept
	size := len(q.messages)
	q.mu.Unlock()

	q.freeSlots.ResyncTo(q.capacity - size)
	q.usedSlots.ResyncTo(size)
}

func translateSemErr(err error) error {
	switch {
	case errors.Is(err, ipcsem.ErrDestroyed):
		return ErrQueueDestroyed
	case errors.Is(err, ipcsem.ErrTimeout):
		return ErrTimeout
	default:
		return err
	}
}
