package netio

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeConn_Read(t *testing.T) {
	t.Run("drained script would block", func(t *testing.T) {
		c := NewFakeConn(5)
		buf := make([]byte, 8)
		n, err := c.Read(buf)
		assert.Equal(t, 0, n)
		assert.ErrorIs(t, err, ErrWouldBlock)
	})

	t.Run("scripted chunks come back in order", func(t *testing.T) {
		c := NewFakeConn(5)
		c.QueueRead([]byte("ab"))
		c.QueueRead([]byte("cd"))

		buf := make([]byte, 8)
		n, err := c.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "ab", string(buf[:n]))

		n, err = c.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "cd", string(buf[:n]))

		_, err = c.Read(buf)
		assert.ErrorIs(t, err, ErrWouldBlock)
	})

	t.Run("short destination keeps the remainder", func(t *testing.T) {
		c := NewFakeConn(5)
		c.QueueRead([]byte("abcd"))

		buf := make([]byte, 2)
		n, err := c.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "ab", string(buf[:n]))

		n, err = c.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "cd", string(buf[:n]))
	})

	t.Run("eof after script", func(t *testing.T) {
		c := NewFakeConn(5)
		c.QueueRead([]byte("x"))
		c.QueueEOF()

		buf := make([]byte, 8)
		_, err := c.Read(buf)
		require.NoError(t, err)
		_, err = c.Read(buf)
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestFakeConn_Write(t *testing.T) {
	t.Run("captures writes", func(t *testing.T) {
		c := NewFakeConn(5)
		n, err := c.Write([]byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "hello", string(c.Written()))
	})

	t.Run("write limit forces partial writes", func(t *testing.T) {
		c := NewFakeConn(5)
		c.LimitWrite(3)
		n, err := c.Write([]byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, "hel", string(c.Written()))
	})

	t.Run("injected failure", func(t *testing.T) {
		c := NewFakeConn(5)
		c.FailWrites(ErrWouldBlock)
		n, err := c.Write([]byte("hello"))
		assert.Equal(t, 0, n)
		assert.ErrorIs(t, err, ErrWouldBlock)
		assert.Empty(t, c.Written())
	})
}

func TestFakeListener_Accept(t *testing.T) {
	l := NewFakeListener(3)
	a := NewFakeConn(10)
	b := NewFakeConn(11)
	l.QueueConn(a)
	l.QueueConn(b)

	got, err := l.Accept()
	require.NoError(t, err)
	assert.Equal(t, a.Fd(), got.Fd())

	got, err = l.Accept()
	require.NoError(t, err)
	assert.Equal(t, b.Fd(), got.Fd())

	_, err = l.Accept()
	assert.ErrorIs(t, err, ErrWouldBlock)
}
