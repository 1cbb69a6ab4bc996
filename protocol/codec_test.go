package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	t.Run("frame layout is header plus payload", func(t *testing.T) {
		m := NewText(MsgJoin, 7, 9, "alice")
		frame := Encode(m)

		require.Len(t, frame, HeaderSize+5)
		assert.Equal(t, byte(MsgJoin), frame[0])
		assert.Equal(t, uint32(7), binary.BigEndian.Uint32(frame[1:5]))
		assert.Equal(t, uint32(9), binary.BigEndian.Uint32(frame[5:9]))
		assert.Equal(t, uint32(5), binary.BigEndian.Uint32(frame[9:13]))
		assert.Equal(t, "alice", string(frame[HeaderSize:]))
	})

	t.Run("empty payload encodes to bare header", func(t *testing.T) {
		frame := Encode(Message{Type: MsgLeave, SenderID: 3})
		assert.Len(t, frame, HeaderSize)
	})

	t.Run("deterministic", func(t *testing.T) {
		m := NewText(MsgBroadcast, 1, BroadcastID, "hello")
		assert.Equal(t, Encode(m), Encode(m))
	})
}

func TestDecode_RoundTrip(t *testing.T) {
	cases := []Message{
		NewText(MsgJoin, 0, ServerID, "alice"),
		NewText(MsgBroadcast, 2, BroadcastID, "hello everyone"),
		NewText(MsgPrivate, 2, 5, "psst"),
		{Type: MsgLeave, SenderID: 2},
		{Type: MsgUserList, SenderID: 2, ReceiverID: ServerID, Payload: []byte{}},
		NewText(MsgJoinSuccess, ServerID, 1, "Welcome to the chat, alice!"),
		NewText(MsgServerShutdown, ServerID, BroadcastID, "Server is shutting down."),
	}

	for _, m := range cases {
		t.Run(m.Type.String(), func(t *testing.T) {
			frame := Encode(m)
			got, n := Decode(frame)

			require.NotNil(t, got)
			assert.Equal(t, len(frame), n)
			assert.Equal(t, m.Type, got.Type)
			assert.Equal(t, m.SenderID, got.SenderID)
			assert.Equal(t, m.ReceiverID, got.ReceiverID)
			assert.Equal(t, m.Text(), got.Text())
		})
	}
}

func TestDecode_PartialFrame(t *testing.T) {
	t.Run("empty buffer", func(t *testing.T) {
		m, n := Decode(nil)
		assert.Nil(t, m)
		assert.Equal(t, 0, n)
	})

	t.Run("short header", func(t *testing.T) {
		m, n := Decode(make([]byte, HeaderSize-1))
		assert.Nil(t, m)
		assert.Equal(t, 0, n)
	})

	t.Run("truncated payload is not yet a frame", func(t *testing.T) {
		frame := Encode(NewText(MsgBroadcast, 1, BroadcastID, "hello"))
		m, n := Decode(frame[:len(frame)-1])
		assert.Nil(t, m)
		assert.Equal(t, 0, n)
	})

	t.Run("implausibly large declared size is incomplete not error", func(t *testing.T) {
		frame := Encode(Message{Type: MsgBroadcast, SenderID: 1})
		binary.BigEndian.PutUint32(frame[9:13], 1<<31)
		m, n := Decode(frame)
		assert.Nil(t, m)
		assert.Equal(t, 0, n)
	})
}

func TestDecode_TrailingData(t *testing.T) {
	first := Encode(NewText(MsgBroadcast, 1, BroadcastID, "one"))
	second := Encode(NewText(MsgBroadcast, 1, BroadcastID, "two"))
	buf := append(append([]byte{}, first...), second...)

	m, n := Decode(buf)
	require.NotNil(t, m)
	assert.Equal(t, len(first), n)
	assert.Equal(t, "one", m.Text())

	m, n = Decode(buf[n:])
	require.NotNil(t, m)
	assert.Equal(t, len(second), n)
	assert.Equal(t, "two", m.Text())
}

func TestDecode_UnknownType(t *testing.T) {
	frame := Encode(Message{Type: MessageType(0x7f), SenderID: 4, Payload: []byte("??")})

	m, n := Decode(frame)
	require.NotNil(t, m)
	assert.Equal(t, len(frame), n)
	assert.Equal(t, MessageType(0x7f), m.Type)
	assert.Equal(t, "??", m.Text())
}

func TestDecodeBounded(t *testing.T) {
	t.Run("frame within limit decodes normally", func(t *testing.T) {
		frame := Encode(NewText(MsgBroadcast, 1, BroadcastID, "hi"))
		m, n, err := DecodeBounded(frame, 1024)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, len(frame), n)
	})

	t.Run("oversized declaration rejected before payload arrives", func(t *testing.T) {
		frame := Encode(Message{Type: MsgBroadcast, SenderID: 1})
		binary.BigEndian.PutUint32(frame[9:13], 2048)
		m, n, err := DecodeBounded(frame[:HeaderSize], 1024)
		assert.ErrorIs(t, err, ErrPayloadTooLarge)
		assert.Nil(t, m)
		assert.Equal(t, 0, n)
	})

	t.Run("short header stays incomplete", func(t *testing.T) {
		m, n, err := DecodeBounded(make([]byte, 4), 1024)
		require.NoError(t, err)
		assert.Nil(t, m)
		assert.Equal(t, 0, n)
	})
}

func TestMessageType_String(t *testing.T) {
	assert.Equal(t, "Join", MsgJoin.String())
	assert.Equal(t, "ServerShutdown", MsgServerShutdown.String())
	assert.Equal(t, "MessageType(0x7f)", MessageType(0x7f).String())
}
