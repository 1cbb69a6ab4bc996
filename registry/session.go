// Package registry owns the live client sessions of the chat server: identity
// assignment, username reservation, lookup by id and by descriptor, and
// broadcast delivery to every authenticated session.
package registry

import (
	"fmt"

	"github.com/eapache/queue"

	"github.com/cyberinferno/go-chat/netio"
)

// MaxBacklogBytes caps how much undelivered output may queue for one session
// while its socket would block. A peer that stops reading past this point is
// treated like a failed transport.
const MaxBacklogBytes = 256 * 1024

// ErrBacklogFull reports that a session's pending-write backlog hit
// MaxBacklogBytes and the write was refused.
var ErrBacklogFull = fmt.Errorf("registry: session write backlog full")

// Session is the server-side state for one connected, possibly-authenticated
// client. The dispatcher goroutine is the only mutator of the read buffer and
// backlog; Session performs no locking of its own.
type Session struct {
	id   uint32
	conn netio.StreamConn

	username      string
	authenticated bool

	readBuf []byte

	backlog      *queue.Queue
	front        []byte // partially written chunk, delivered before the queue
	backlogBytes int
	onBacklogged func()
}

func newSession(id uint32, conn netio.StreamConn) *Session {
	return &Session{
		id:      id,
		conn:    conn,
		backlog: queue.New(),
	}
}

// ID returns the session's unique identifier. Identifiers start at 1 and are
// never reused while the process runs.
func (s *Session) ID() uint32 {
	return s.id
}

// Fd returns the descriptor of the session's connection.
func (s *Session) Fd() int {
	return s.conn.Fd()
}

// Conn returns the connection handle. The session owns it exclusively.
func (s *Session) Conn() netio.StreamConn {
	return s.conn
}

// Username returns the claimed username, or "" before authentication.
func (s *Session) Username() string {
	return s.username
}

// Authenticated reports whether the session has successfully joined.
func (s *Session) Authenticated() bool {
	return s.authenticated
}

// AppendRead appends freshly read bytes to the session's frame-reassembly
// buffer.
func (s *Session) AppendRead(p []byte) {
	s.readBuf = append(s.readBuf, p...)
}

// ReadBuffered returns the bytes accumulated so far. The slice aliases the
// session's buffer and is invalidated by AppendRead and ConsumeRead.
func (s *Session) ReadBuffered() []byte {
	return s.readBuf
}

// ConsumeRead discards the first n buffered bytes, typically one decoded
// frame.
func (s *Session) ConsumeRead(n int) {
	s.readBuf = s.readBuf[n:]
}

// OnBacklogged sets the hook invoked when the write backlog transitions from
// empty to non-empty. The dispatcher uses it to add write interest for the
// session's descriptor.
func (s *Session) OnBacklogged(fn func()) {
	s.onBacklogged = fn
}

// HasBacklog reports whether undelivered output is queued.
func (s *Session) HasBacklog() bool {
	return s.front != nil || s.backlog.Length() > 0
}

// Send delivers an encoded frame to the peer. It writes directly while the
// socket accepts bytes; a partial write or would-block queues the remainder
// so the dispatcher can finish it on the next write-readiness event. Frames
// are never reordered: once anything is queued, later sends queue behind it.
//
// Parameters:
//   - frame: The encoded bytes to deliver; not retained beyond the queued copy
//
// Returns:
//   - ErrBacklogFull if queuing would exceed MaxBacklogBytes, or the
//     transport error if the direct write failed outright. Either way the
//     outgoing stream may now hold a truncated frame, so the caller must
//     tear the connection down rather than keep sending on it.
func (s *Session) Send(frame []byte) error {
	if s.HasBacklog() {
		return s.enqueue(frame)
	}

	n, err := s.conn.Write(frame)
	if err != nil {
		if err == netio.ErrWouldBlock {
			return s.enqueue(frame)
		}
		return err
	}
	if n < len(frame) {
		return s.enqueue(frame[n:])
	}

	return nil
}

// Flush drains the pending-write backlog until it empties or the socket
// would block again.
//
// Returns:
//   - true when the backlog is now empty
//   - The transport error if a write failed
func (s *Session) Flush() (bool, error) {
	for {
		if s.front == nil {
			if s.backlog.Length() == 0 {
				return true, nil
			}
			s.front = s.backlog.Remove().([]byte)
		}

		n, err := s.conn.Write(s.front)
		if err != nil {
			if err == netio.ErrWouldBlock {
				return false, nil
			}
			return false, err
		}

		s.backlogBytes -= n
		if n < len(s.front) {
			s.front = s.front[n:]
			return false, nil
		}
		s.front = nil
	}
}

// enqueue copies the remainder onto the backlog, firing the backlogged hook
// on the empty-to-non-empty transition.
func (s *Session) enqueue(rest []byte) error {
	if s.backlogBytes+len(rest) > MaxBacklogBytes {
		return ErrBacklogFull
	}

	wasEmpty := !s.HasBacklog()
	s.backlog.Add(append([]byte{}, rest...))
	s.backlogBytes += len(rest)

	if wasEmpty && s.onBacklogged != nil {
		s.onBacklogged()
	}

	return nil
}
