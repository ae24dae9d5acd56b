// Package msgqueue implements the EdgeX message queue: priority-ordered
// delivery with Urgent head-of-queue override, free/used counting
// semaphores, and the task-queue registry mapping a PID to its owned
// queues.
package msgqueue

import (
	"encoding/binary"
	"fmt"
)

// MaxPayloadSize is the wire-format payload ceiling from spec.md §3/§6.
const MaxPayloadSize = 1024

// wireHeaderSize is the byte length of the fixed message header,
// matching the §6 layout exactly (offsets 0..40).
const wireHeaderSize = 40

// Kind is the message's semantic category.
type Kind uint32

const (
	KindNormal Kind = iota
	KindControl
	KindResponse
	KindError
	KindSystem
)

// Priority determines dequeue order: highest priority first, FIFO within
// a priority tier.
type Priority uint32

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// Flags are send/receive bit flags from spec.md §6.
type Flags uint32

const (
	FlagNonBlock Flags = 1 << iota
	FlagNoWait
	FlagPriority
	FlagSync
	FlagTimeout
)

// Message is one queue entry: fixed header fields plus a variable-length
// payload (≤ MaxPayloadSize bytes).
type Message struct {
	ID          uint32
	SenderPID   uint32
	ReceiverPID uint32
	Kind        Kind
	Priority    Priority
	Flags       Flags
	Size        uint32
	ReplyID     uint32
	TimestampMs uint64
	Payload     []byte
}

// Marshal encodes m into the exact little-endian wire layout from
// spec.md §6, field by field — the same hand-rolled,
// non-reflective style as the teacher's internal/uapi/marshal.go,
// preferred there over encoding/gob or encoding/json for a wire-exact,
// allocation-light layout.
func (m *Message) Marshal() ([]byte, error) {
	if len(m.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("msgqueue: payload size %d exceeds max %d", len(m.Payload), MaxPayloadSize)
	}

	buf := make([]byte, wireHeaderSize+len(m.Payload))
	binary.LittleEndian.PutUint32(buf[0:4], m.ID)
	binary.LittleEndian.PutUint32(buf[4:8], m.SenderPID)
	binary.LittleEndian.PutUint32(buf[8:12], m.ReceiverPID)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(m.Kind))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(m.Priority))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(m.Flags))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(len(m.Payload)))
	binary.LittleEndian.PutUint32(buf[28:32], m.ReplyID)
	binary.LittleEndian.PutUint64(buf[32:40], m.TimestampMs)
	copy(buf[40:], m.Payload)
	return buf, nil
}

// Unmarshal decodes buf into m, the inverse of Marshal.
func (m *Message) Unmarshal(buf []byte) error {
	if len(buf) < wireHeaderSize {
		return fmt.Errorf("msgqueue: buffer too short for header: %d bytes", len(buf))
	}

	m.ID = binary.LittleEndian.Uint32(buf[0:4])
	m.SenderPID = binary.LittleEndian.Uint32(buf[4:8])
	m.ReceiverPID = binary.LittleEndian.Uint32(buf[8:12])
	m.Kind = Kind(binary.LittleEndian.Uint32(buf[12:16]))
	m.Priority = Priority(binary.LittleEndian.Uint32(buf[16:20]))
	m.Flags = Flags(binary.LittleEndian.Uint32(buf[20:24]))
	size := binary.LittleEndian.Uint32(buf[24:28])
	m.ReplyID = binary.LittleEndian.Uint32(buf[28:32])
	m.TimestampMs = binary.LittleEndian.Uint64(buf[32:40])

	if size > MaxPayloadSize {
		return fmt.Errorf("msgqueue: wire size %d exceeds max %d", size, MaxPayloadSize)
	}
	if len(buf) < wireHeaderSize+int(size) {
		return fmt.Errorf("msgqueue: buffer too short for payload of size %d", size)
	}
	m.Size = size
	m.Payload = append([]byte(nil), buf[wireHeaderSize:wireHeaderSize+int(size)]...)
	return nil
}
