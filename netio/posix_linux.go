//go:build linux

package netio

import (
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

const listenBacklog = 1024

// posixConn is a StreamConn over a non-blocking POSIX socket descriptor.
type posixConn struct {
	fd     int
	closed bool
}

// Fd implements StreamConn.
func (c *posixConn) Fd() int {
	return c.fd
}

// Read implements StreamConn. EAGAIN maps to ErrWouldBlock and a zero-byte
// read maps to io.EOF (orderly close by the peer).
func (c *posixConn) Read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return 0, fmt.Errorf("read fd %d: %w", c.fd, err)
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}

	return n, nil
}

// Write implements StreamConn. EAGAIN maps to ErrWouldBlock; a partial write
// returns the count written with a nil error.
func (c *posixConn) Write(p []byte) (int, error) {
	n, err := unix.Write(c.fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return 0, fmt.Errorf("write fd %d: %w", c.fd, err)
	}

	return n, nil
}

// Close implements StreamConn.
func (c *posixConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	return unix.Close(c.fd)
}

// posixListener is a ListenConn over a non-blocking POSIX listening socket.
type posixListener struct {
	fd     int
	closed bool
}

// Listen creates an IPv4 TCP socket bound to the given port on all
// interfaces, listening and set non-blocking, with SO_REUSEADDR enabled.
//
// Parameters:
//   - port: The TCP port to bind (1-65535)
//
// Returns:
//   - The listening connection source, or an error if any socket call fails
func Listen(port int) (ListenConn, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("create listener socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("set SO_REUSEADDR: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind port %d: %w", port, err)
	}

	if err := unix.Listen(fd, listenBacklog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("set listener non-blocking: %w", err)
	}

	return &posixListener{fd: fd}, nil
}

// Fd implements ListenConn.
func (l *posixListener) Fd() int {
	return l.fd
}

// Accept implements ListenConn. Accepted connections come back already
// non-blocking via SOCK_NONBLOCK.
func (l *posixListener) Accept() (StreamConn, error) {
	fd, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, ErrWouldBlock
		}
		return nil, fmt.Errorf("accept on fd %d: %w", l.fd, err)
	}

	return &posixConn{fd: fd}, nil
}

// Close implements ListenConn.
func (l *posixListener) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true

	return unix.Close(l.fd)
}
