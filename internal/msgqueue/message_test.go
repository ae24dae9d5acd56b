package msgqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageMarshalUnmarshalRoundTrip(t *testing.T) {
	m := &Message{
		ID:          7,
		SenderPID:   100,
		ReceiverPID: 200,
		Kind:        KindControl,
		Priority:    PriorityHigh,
		Flags:       FlagSync | FlagTimeout,
		ReplyID:     3,
		TimestampMs: 1234567890,
		Payload:     []byte("hello edgex"),
	}

	buf, err := m.Marshal()
	require.NoError(t, err)
	require.Len(t, buf, wireHeaderSize+len(m.Payload))

	var out Message
	require.NoError(t, out.Unmarshal(buf))

	assert.Equal(t, m.ID, out.ID)
	assert.Equal(t, m.SenderPID, out.SenderPID)
	assert.Equal(t, m.ReceiverPID, out.ReceiverPID)
	assert.Equal(t, m.Kind, out.Kind)
	assert.Equal(t, m.Priority, out.Priority)
	assert.Equal(t, m.Flags, out.Flags)
	assert.Equal(t, uint32(len(m.Payload)), out.Size)
	assert.Equal(t, m.ReplyID, out.ReplyID)
	assert.Equal(t, m.TimestampMs, out.TimestampMs)
	assert.Equal(t, m.Payload, out.Payload)
}

func TestMessageMarshalFieldOffsets(t *testing.T) {
	m := &Message{
		ID:          0x01020304,
		SenderPID:   0x05060708,
		ReceiverPID: 0x090a0b0c,
		Kind:        KindResponse,
		Priority:    PriorityUrgent,
		Flags:       FlagNonBlock,
		ReplyID:     0x11121314,
		TimestampMs: 0x1516171819202122,
	}
	buf, err := m.Marshal()
	require.NoError(t, err)
	require.Len(t, buf, wireHeaderSize)

	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, buf[0:4])
	assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05}, buf[4:8])
	assert.Equal(t, []byte{0x0c, 0x0b, 0x0a, 0x09}, buf[8:12])
	assert.Equal(t, uint32(KindResponse), leUint32(buf[12:16]))
	assert.Equal(t, uint32(PriorityUrgent), leUint32(buf[16:20]))
	assert.Equal(t, uint32(FlagNonBlock), leUint32(buf[20:24]))
	assert.Equal(t, uint32(0), leUint32(buf[24:28]))
	assert.Equal(t, []byte{0x14, 0x13, 0x12, 0x11}, buf[28:32])
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func TestMessageUnmarshalRejectsShortBuffer(t *testing.T) {
	var m Message
	assert.Error(t, m.Unmarshal(make([]byte, wireHeaderSize-1)))
}

func TestMessageUnmarshalRejectsOversizedPayload(t *testing.T) {
	m := &Message{Payload: make([]byte, MaxPayloadSize)}
	buf, err := m.Marshal()
	require.NoError(t, err)

	// Corrupt the size field to claim more than MaxPayloadSize.
	buf[24] = 0xff
	buf[25] = 0xff

	var out Message
	assert.Error(t, out.Unmarshal(buf))
}

func TestMessageMarshalRejectsOversizedPayload(t *testing.T) {
	m := &Message{Payload: make([]byte, MaxPayloadSize+1)}
	_, err := m.Marshal()
	assert.Error(t, err)
}
