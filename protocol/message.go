// Package protocol defines the chat wire protocol: the message envelope and
// the functions that encode messages to and decode messages from the
// length-prefixed binary frame format used between server and client.
package protocol

import "fmt"

// Reserved peer identifiers. ServerID and BroadcastID deliberately share the
// value 0: a message addressed to 0 is a broadcast from the server's point of
// view, and a private lookup of id 0 always fails with "receiver not found".
const (
	ServerID    uint32 = 0
	BroadcastID uint32 = 0
)

// MessageType identifies the kind of message carried by a frame. The values
// are stable wire constants; client-to-server types occupy the low range and
// server-to-client types have the high bit set.
type MessageType uint8

const (
	// Client to server.
	MsgJoin      MessageType = 0x01 // payload: requested username
	MsgBroadcast MessageType = 0x02 // payload: chat text for everyone
	MsgPrivate   MessageType = 0x03 // payload: chat text for ReceiverID
	MsgLeave     MessageType = 0x04 // no payload
	MsgUserList  MessageType = 0x05 // request: no payload; reply: "name:id,name:id"

	// Server to client.
	MsgJoinSuccess     MessageType = 0x81 // payload: welcome text, ReceiverID: assigned id
	MsgJoinFailure     MessageType = 0x82 // payload: rejection reason
	MsgServerBroadcast MessageType = 0x83 // payload: chat text, SenderID: origin session
	MsgServerPrivate   MessageType = 0x84 // payload: chat text, SenderID: origin session
	MsgUserJoined      MessageType = 0x85 // payload: username, SenderID: joined session
	MsgUserLeft        MessageType = 0x86 // payload: username, SenderID: departed session
	MsgError           MessageType = 0x87 // payload: human-readable reason
	MsgServerShutdown  MessageType = 0x88 // payload: shutdown notice
)

// String returns the wire name of the message type, or a hex literal for
// types this build does not know about.
func (t MessageType) String() string {
	switch t {
	case MsgJoin:
		return "Join"
	case MsgBroadcast:
		return "Broadcast"
	case MsgPrivate:
		return "Private"
	case MsgLeave:
		return "Leave"
	case MsgUserList:
		return "UserList"
	case MsgJoinSuccess:
		return "JoinSuccess"
	case MsgJoinFailure:
		return "JoinFailure"
	case MsgServerBroadcast:
		return "ServerBroadcast"
	case MsgServerPrivate:
		return "ServerPrivate"
	case MsgUserJoined:
		return "UserJoined"
	case MsgUserLeft:
		return "UserLeft"
	case MsgError:
		return "Error"
	case MsgServerShutdown:
		return "ServerShutdown"
	default:
		return fmt.Sprintf("MessageType(0x%02x)", uint8(t))
	}
}

// Message is one decoded protocol frame. Payload holds raw bytes; strings on
// the wire are not null-terminated, their length is given by the frame header.
type Message struct {
	Type       MessageType
	SenderID   uint32
	ReceiverID uint32
	Payload    []byte
}

// NewText builds a message whose payload is the UTF-8 bytes of text.
//
// Parameters:
//   - t: The message type
//   - sender: The sender id to stamp into the header
//   - receiver: The receiver id to stamp into the header
//   - text: The payload as a string
//
// Returns:
//   - A Message ready to pass to Encode
func NewText(t MessageType, sender, receiver uint32, text string) Message {
	return Message{Type: t, SenderID: sender, ReceiverID: receiver, Payload: []byte(text)}
}

// Text returns the payload interpreted as a string.
func (m Message) Text() string {
	return string(m.Payload)
}
