package netio

import (
	"bytes"
	"io"
	"sync"
)

// FakeConn is an in-memory StreamConn for tests. Reads are scripted with
// QueueRead and drain into ErrWouldBlock (or io.EOF after QueueEOF), the way
// a non-blocking socket behaves; writes are captured and can be limited or
// made to fail to exercise partial-write and error paths.
type FakeConn struct {
	fd int

	mu         sync.Mutex
	pending    [][]byte
	eof        bool
	writeLimit int
	writeErr   error
	written    bytes.Buffer
	closed     bool
}

// NewFakeConn creates a FakeConn identified by the given descriptor number.
func NewFakeConn(fd int) *FakeConn {
	return &FakeConn{fd: fd}
}

// QueueRead appends one chunk to the scripted read sequence.
func (c *FakeConn) QueueRead(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, append([]byte{}, p...))
}

// QueueEOF makes Read return io.EOF once the scripted chunks are drained,
// simulating an orderly close by the peer.
func (c *FakeConn) QueueEOF() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eof = true
}

// LimitWrite caps the number of bytes a single Write accepts, forcing
// partial writes. Zero means unlimited.
func (c *FakeConn) LimitWrite(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeLimit = n
}

// FailWrites makes every subsequent Write return err. Passing ErrWouldBlock
// simulates a full kernel send buffer.
func (c *FakeConn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// Written returns a copy of everything written so far.
func (c *FakeConn) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte{}, c.written.Bytes()...)
}

// ResetWritten clears the captured write stream.
func (c *FakeConn) ResetWritten() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written.Reset()
}

// IsClosed reports whether Close has been called.
func (c *FakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Fd implements StreamConn.
func (c *FakeConn) Fd() int {
	return c.fd
}

// Read implements StreamConn. It pops from the scripted chunks, then returns
// io.EOF if QueueEOF was called, otherwise ErrWouldBlock.
func (c *FakeConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, io.EOF
	}
	if len(c.pending) == 0 {
		if c.eof {
			return 0, io.EOF
		}
		return 0, ErrWouldBlock
	}

	chunk := c.pending[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		c.pending[0] = chunk[n:]
	} else {
		c.pending = c.pending[1:]
	}

	return n, nil
}

// Write implements StreamConn, honoring FailWrites and LimitWrite.
func (c *FakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeErr != nil {
		return 0, c.writeErr
	}

	n := len(p)
	if c.writeLimit > 0 && n > c.writeLimit {
		n = c.writeLimit
	}
	c.written.Write(p[:n])

	return n, nil
}

// Close implements StreamConn. Safe to call multiple times.
func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// FakeListener is an in-memory ListenConn for tests: Accept pops scripted
// connections and then reports ErrWouldBlock, matching edge-triggered
// accept-drain behavior.
type FakeListener struct {
	fd int

	mu      sync.Mutex
	backlog []StreamConn
	closed  bool
}

// NewFakeListener creates a FakeListener identified by the given descriptor.
func NewFakeListener(fd int) *FakeListener {
	return &FakeListener{fd: fd}
}

// QueueConn appends a connection for Accept to return.
func (l *FakeListener) QueueConn(conn StreamConn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backlog = append(l.backlog, conn)
}

// IsClosed reports whether Close has been called.
func (l *FakeListener) IsClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Fd implements ListenConn.
func (l *FakeListener) Fd() int {
	return l.fd
}

// Accept implements ListenConn.
func (l *FakeListener) Accept() (StreamConn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.backlog) == 0 {
		return nil, ErrWouldBlock
	}

	conn := l.backlog[0]
	l.backlog = l.backlog[1:]
	return conn, nil
}

// Close implements ListenConn. Safe to call multiple times.
func (l *FakeListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
