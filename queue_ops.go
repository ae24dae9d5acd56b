package edgex

import (
	"errors"

	"github.com/edgexos/edgex/internal/msgqueue"
	"github.com/edgexos/edgex/internal/sched"
	"github.com/edgexos/edgex/internal/substrate"
)

// CreateQueue creates and registers a priority message queue of the
// given capacity, and registers it as owner's default send/receive
// queue in the task-queue registry if it has none yet.
func (k *Kernel) CreateQueue(owner sched.Pid, name string, capacity int) (*QueueHandle, error) {
	q := msgqueue.New(name, owner, capacity, k.sc, k.stats)
	if err := k.registry.Register(q); err != nil {
		return nil, WrapError("CreateQueue", CodeOutOfMemory, err)
	}
	if err := k.taskRegistry.Register(owner, q); err != nil {
		k.registry.Unregister(q)
		return nil, NewError("CreateQueue", CodeInvalidArgument, err.Error())
	}
	k.mu.Lock()
	k.queues[q] = struct{}{}
	k.mu.Unlock()
	return &QueueHandle{obj: q}, nil
}

// Send enqueues msg on h, auto-filling its header fields.
func (k *Kernel) Send(h *QueueHandle, senderPID sched.Pid, msg *msgqueue.Message, nowMs uint64) error {
	k.stats.Operation(substrate.KindMessageQueue)
	if err := h.obj.Send(senderPID, msg, nowMs); err != nil {
		return translateQueueErr("Send", err)
	}
	return nil
}

// Receive dequeues the next highest-priority message from h.
func (k *Kernel) Receive(h *QueueHandle, receiverPID sched.Pid, flags msgqueue.Flags) (*msgqueue.Message, error) {
	k.stats.Operation(substrate.KindMessageQueue)
	msg, err := h.obj.Receive(receiverPID, flags)
	if err != nil {
		return nil, translateQueueErr("Receive", err)
	}
	return msg, nil
}

// Reply sends a response to original's sender via h.
func (k *Kernel) Reply(h *QueueHandle, senderPID sched.Pid, original, reply *msgqueue.Message, nowMs uint64) error {
	k.stats.Operation(substrate.KindMessageQueue)
	if err := h.obj.Reply(senderPID, original, reply, nowMs); err != nil {
		return translateQueueErr("Reply", err)
	}
	return nil
}

// FindQueue consults the task-queue registry for pid's default queue
// under mode.
func (k *Kernel) FindQueue(pid sched.Pid, mode msgqueue.Mode) (*QueueHandle, error) {
	q, err := k.taskRegistry.FindTaskQueue(pid, mode)
	if err != nil {
		return nil, NewError("FindQueue", CodeNoRoute, "no routable queue for pid")
	}
	return &QueueHandle{obj: q}, nil
}

// DestroyQueue removes h from the registry and the task-queue registry.
func (k *Kernel) DestroyQueue(h *QueueHandle, owner sched.Pid) error {
	k.mu.Lock()
	delete(k.queues, h.obj)
	k.mu.Unlock()
	k.taskRegistry.Unregister(owner, h.obj)
	k.registry.Unregister(h.obj)
	return nil
}

func translateQueueErr(op string, err error) error {
	switch {
	case errors.Is(err, msgqueue.ErrQueueFull):
		return NewError(op, CodeQueueFull, "queue at capacity")
	case errors.Is(err, msgqueue.ErrQueueEmpty):
		return NewError(op, CodeQueueEmpty, "queue has no messages")
	case errors.Is(err, msgqueue.ErrTimeout):
		return NewError(op, CodeTimeout, "timed queue operation expired")
	case errors.Is(err, msgqueue.ErrQueueDestroyed):
		return NewError(op, CodeInvalidHandle, "queue destroyed while waiting")
	case errors.Is(err, msgqueue.ErrPayloadTooBig):
		return NewError(op, CodeInvalidArgument, "payload exceeds MaxPayloadSize")
	default:
		return err
	}
}
