package protocol

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed frame header length in bytes:
// 1 byte type, 4 bytes sender id, 4 bytes receiver id, 4 bytes payload size.
// All multi-byte integers are network byte order.
const HeaderSize = 13

// ErrPayloadTooLarge is returned by DecodeBounded when a frame header declares
// a payload larger than the caller's limit.
var ErrPayloadTooLarge = fmt.Errorf("protocol: declared payload exceeds limit")

// Encode serializes a message into exactly HeaderSize+len(Payload) bytes.
// Encoding is deterministic and adds no padding.
//
// Parameters:
//   - m: The message to serialize
//
// Returns:
//   - The encoded frame
func Encode(m Message) []byte {
	buf := make([]byte, HeaderSize+len(m.Payload))
	buf[0] = byte(m.Type)
	binary.BigEndian.PutUint32(buf[1:5], m.SenderID)
	binary.BigEndian.PutUint32(buf[5:9], m.ReceiverID)
	binary.BigEndian.PutUint32(buf[9:13], uint32(len(m.Payload)))
	copy(buf[HeaderSize:], m.Payload)
	return buf
}

// Decode parses one frame from the front of buf. It returns (nil, 0) when buf
// holds less than a complete frame: fewer than HeaderSize bytes, or fewer than
// the declared payload size. A short buffer is never an error, only "not
// enough data yet"; callers append more bytes and retry. Unknown type bytes
// still decode structurally so the caller can decide what to do with them.
//
// Decode consumes at most one frame per call and leaves trailing bytes alone;
// callers drain a read buffer by looping until the returned count is 0. Note
// that the declared payload size is attacker-controlled: a hostile peer can
// declare an enormous size and stall framing forever while the buffer grows.
// Callers reading from untrusted peers should bound buffer growth or use
// DecodeBounded.
//
// Parameters:
//   - buf: The accumulated byte stream to parse
//
// Returns:
//   - The parsed message, or nil if buf does not yet hold a full frame
//   - The exact number of bytes consumed (0 when nil)
func Decode(buf []byte) (*Message, int) {
	if len(buf) < HeaderSize {
		return nil, 0
	}

	size := binary.BigEndian.Uint32(buf[9:13])
	if uint64(len(buf)) < HeaderSize+uint64(size) {
		return nil, 0
	}

	m := &Message{
		Type:       MessageType(buf[0]),
		SenderID:   binary.BigEndian.Uint32(buf[1:5]),
		ReceiverID: binary.BigEndian.Uint32(buf[5:9]),
		Payload:    make([]byte, size),
	}
	copy(m.Payload, buf[HeaderSize:HeaderSize+int(size)])

	return m, HeaderSize + int(size)
}

// DecodeBounded is Decode with a policy limit on the declared payload size.
// It behaves exactly like Decode except that a header declaring more than
// maxPayload bytes returns ErrPayloadTooLarge immediately, without waiting
// for the payload to arrive. The server uses this to disconnect peers that
// would otherwise force unbounded buffer growth.
//
// Parameters:
//   - buf: The accumulated byte stream to parse
//   - maxPayload: The largest acceptable declared payload size
//
// Returns:
//   - The parsed message, or nil if incomplete or over the limit
//   - The exact number of bytes consumed (0 when nil)
//   - ErrPayloadTooLarge when the declared size exceeds maxPayload
func DecodeBounded(buf []byte, maxPayload uint32) (*Message, int, error) {
	if len(buf) >= HeaderSize {
		if size := binary.BigEndian.Uint32(buf[9:13]); size > maxPayload {
			return nil, 0, ErrPayloadTooLarge
		}
	}

	m, n := Decode(buf)
	return m, n, nil
}
