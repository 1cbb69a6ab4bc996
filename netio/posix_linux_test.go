//go:build linux

package netio

import (
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// boundPort reads back the ephemeral port the kernel picked for a listener.
func boundPort(t *testing.T, l ListenConn) int {
	t.Helper()
	sa, err := unix.Getsockname(l.Fd())
	require.NoError(t, err)
	inet, ok := sa.(*unix.SockaddrInet4)
	require.True(t, ok)
	return inet.Port
}

// acceptOne drains would-block results until a connection arrives.
func acceptOne(t *testing.T, l ListenConn) StreamConn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := l.Accept()
		if err == nil {
			return conn
		}
		require.ErrorIs(t, err, ErrWouldBlock)
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no connection accepted before deadline")
	return nil
}

func TestListen_AcceptReadWrite(t *testing.T) {
	l, err := Listen(0)
	require.NoError(t, err)
	defer l.Close()

	port := boundPort(t, l)

	t.Run("empty backlog would block", func(t *testing.T) {
		_, err := l.Accept()
		assert.ErrorIs(t, err, ErrWouldBlock)
	})

	peer, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer peer.Close()

	conn := acceptOne(t, l)
	defer conn.Close()

	t.Run("read would block with no data", func(t *testing.T) {
		buf := make([]byte, 16)
		_, err := conn.Read(buf)
		assert.ErrorIs(t, err, ErrWouldBlock)
	})

	t.Run("round trip through the socket", func(t *testing.T) {
		_, err := peer.Write([]byte("ping"))
		require.NoError(t, err)

		buf := make([]byte, 16)
		var n int
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			n, err = conn.Read(buf)
			if err == nil {
				break
			}
			require.ErrorIs(t, err, ErrWouldBlock)
			time.Sleep(time.Millisecond)
		}
		require.NoError(t, err)
		assert.Equal(t, "ping", string(buf[:n]))

		n, err = conn.Write([]byte("pong"))
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		reply := make([]byte, 16)
		require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
		rn, err := peer.Read(reply)
		require.NoError(t, err)
		assert.Equal(t, "pong", string(reply[:rn]))
	})

	t.Run("peer close surfaces as EOF", func(t *testing.T) {
		require.NoError(t, peer.Close())

		buf := make([]byte, 16)
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			_, err = conn.Read(buf)
			if err == nil || err == ErrWouldBlock {
				time.Sleep(time.Millisecond)
				continue
			}
			break
		}
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestConn_CloseIdempotent(t *testing.T) {
	l, err := Listen(0)
	require.NoError(t, err)

	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())
}
