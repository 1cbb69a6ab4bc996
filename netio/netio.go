// Package netio defines the connection capabilities the chat server is built
// against: a non-blocking byte stream and a non-blocking connection source.
// The production implementation wraps POSIX sockets; an in-memory fake backs
// the registry and dispatcher tests.
package netio

import "errors"

// ErrWouldBlock reports that a non-blocking operation found no data to read,
// no buffer space to write, or no pending connection to accept. It is a
// normal "nothing right now" signal, never a failure; callers stop draining
// and wait for the next readiness event.
var ErrWouldBlock = errors.New("netio: operation would block")

// StreamConn is one non-blocking byte-stream connection. Read and Write
// return ErrWouldBlock instead of blocking; Read returns io.EOF on orderly
// close by the peer. Fd is stable for the life of the connection and is the
// key used to register the connection with the readiness multiplexer.
type StreamConn interface {
	// Fd returns the descriptor identifying this connection.
	Fd() int

	// Read reads up to len(p) bytes into p without blocking.
	Read(p []byte) (int, error)

	// Write writes up to len(p) bytes from p without blocking. A short write
	// with a nil error means the kernel buffer filled mid-write.
	Write(p []byte) (int, error)

	// Close closes the connection. Safe to call multiple times.
	Close() error
}

// ListenConn is a bound, listening, non-blocking connection source.
type ListenConn interface {
	// Fd returns the descriptor identifying the listening socket.
	Fd() int

	// Accept accepts one pending connection, already set non-blocking.
	// It returns ErrWouldBlock when the backlog is empty.
	Accept() (StreamConn, error)

	// Close closes the listening socket. Safe to call multiple times.
	Close() error
}
