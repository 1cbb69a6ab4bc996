// Package client implements the terminal chat client: a connection layer
// that decodes protocol frames off the wire and a ChatClient that turns
// console input into chat messages and server frames into console output.
package client

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/go-chat/logger"
	"github.com/cyberinferno/go-chat/protocol"
)

const (
	dialTimeout = 10 * time.Second

	// maxPendingBytes caps the reassembly buffer. A server that streams
	// more than this without completing a frame is misbehaving.
	maxPendingBytes = 4 << 20
)

// MessageHandler is called for each decoded frame, from the receive
// goroutine, in arrival order.
type MessageHandler func(msg *protocol.Message)

// ServerConnection owns the client side of the chat connection: dialing,
// sending encoded frames and a receive goroutine that reassembles and
// decodes incoming frames. It is safe for concurrent use.
type ServerConnection struct {
	log logger.Logger

	mu        sync.RWMutex
	conn      net.Conn
	closed    bool
	onMessage MessageHandler

	group errgroup.Group
}

// NewServerConnection creates a disconnected ServerConnection.
func NewServerConnection(log logger.Logger) *ServerConnection {
	if log == nil {
		log = logger.NewNop()
	}

	return &ServerConnection{log: log}
}

// Connect dials the chat server.
//
// Parameters:
//   - host: Server hostname or IP address
//   - port: Server TCP port
//
// Returns:
//   - An error if the dial fails or the connection was already established
func (s *ServerConnection) Connect(host string, port int) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		s.log.Error("failed to connect",
			logger.Field{Key: "host", Value: host},
			logger.Field{Key: "port", Value: port},
			logger.Field{Key: "error", Value: err})
		return fmt.Errorf("failed to connect to %s:%d: %w", host, port, err)
	}

	return s.adopt(conn)
}

// adopt installs an already-established connection, which lets tests drive
// the connection over an in-memory pipe.
func (s *ServerConnection) adopt(conn net.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil || s.closed {
		return fmt.Errorf("already connected or closed")
	}
	s.conn = conn

	return nil
}

// StartReceiving registers the frame handler and launches the receive
// goroutine. Call once, after Connect.
func (s *ServerConnection) StartReceiving(handler MessageHandler) {
	s.mu.Lock()
	s.onMessage = handler
	s.mu.Unlock()

	s.group.Go(s.readLoop)
}

// Send encodes and writes one frame.
//
// Returns:
//   - An error if the connection is down or the write fails
func (s *ServerConnection) Send(msg protocol.Message) error {
	s.mu.RLock()
	conn := s.conn
	closed := s.closed
	s.mu.RUnlock()

	if closed || conn == nil {
		return fmt.Errorf("not connected")
	}

	if _, err := conn.Write(protocol.Encode(msg)); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Type, err)
	}

	return nil
}

// Close shuts the connection down, unblocking the receive goroutine. It does
// not wait for the goroutine; use Wait for that. Safe to call multiple times.
func (s *ServerConnection) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}

	return nil
}

// Wait blocks until the receive goroutine has finished and returns its
// error, if any. An orderly close on either side yields nil.
func (s *ServerConnection) Wait() error {
	return s.group.Wait()
}

func (s *ServerConnection) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *ServerConnection) emit(msg *protocol.Message) {
	s.mu.RLock()
	handler := s.onMessage
	s.mu.RUnlock()

	if handler != nil {
		handler(msg)
	}
}

// readLoop drains the connection, reassembles frames across read boundaries
// and emits each decoded message in order. When the connection drops while
// the caller still expects traffic, a synthetic departure frame from the
// reserved server id is emitted so the handler can wind the client down.
func (s *ServerConnection) readLoop() error {
	buf := make([]byte, 4096)
	var pending []byte

	for {
		s.mu.RLock()
		conn := s.conn
		closed := s.closed
		s.mu.RUnlock()

		if conn == nil || closed {
			return nil
		}

		n, err := conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			if len(pending) > maxPendingBytes {
				s.log.Error("receive buffer overflow", logger.Field{Key: "bytes", Value: len(pending)})
				_ = s.Close()
				return fmt.Errorf("receive buffer overflow: %d bytes without a complete frame", len(pending))
			}

			for {
				msg, consumed := protocol.Decode(pending)
				if msg == nil {
					break
				}
				pending = pending[consumed:]
				s.emit(msg)

				if s.isClosed() {
					return nil
				}
			}
		}

		if err != nil {
			if s.isClosed() {
				return nil
			}

			s.emit(&protocol.Message{Type: protocol.MsgUserLeft, SenderID: protocol.ServerID})
			_ = s.Close()
			if err == io.EOF {
				return nil
			}

			return fmt.Errorf("connection lost: %w", err)
		}
	}
}
