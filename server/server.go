// Package server implements the chat connection dispatcher: a single
// goroutine that waits on the readiness multiplexer, accepts connections,
// reassembles protocol frames out of non-blocking reads and drives the chat
// state machine for every session.
package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/go-chat/logger"
	"github.com/cyberinferno/go-chat/netio"
	"github.com/cyberinferno/go-chat/poller"
	"github.com/cyberinferno/go-chat/registry"
)

const (
	// readChunkSize is the scratch buffer used to drain a readable socket.
	readChunkSize = 4096

	// maxFramePayload caps the payload size a client may declare. The codec
	// itself accepts anything up to 4 GiB; the dispatcher disconnects peers
	// that declare more than this, before buffering their payload.
	maxFramePayload = 1 << 20
)

// Server is the event-driven chat server. One goroutine runs the dispatch
// loop; Stop may be called from any goroutine and wakes the loop through a
// loopback connection.
type Server struct {
	log      logger.Logger
	port     int
	listener netio.ListenConn
	poller   poller.Poller
	registry *registry.Registry
	running  atomic.Bool
	done     chan struct{}
	scratch  [readChunkSize]byte
}

// New creates a server that will listen on the given TCP port once started.
//
// Parameters:
//   - port: The TCP port to bind (1-65535)
//   - log: Logger for lifecycle and protocol events
//
// Returns:
//   - The new Server, not yet listening
func New(port int, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}

	return &Server{
		log:      log,
		port:     port,
		registry: registry.NewRegistry(log),
		done:     make(chan struct{}),
	}
}

// Start binds the listening socket, creates the readiness multiplexer and
// launches the dispatch loop in a goroutine. Failing to bind or listen is
// fatal; there is no degraded mode.
//
// Returns:
//   - An error if the server is already running or startup fails
func (s *Server) Start() error {
	if s.running.Load() {
		s.log.Error("server already running")
		return fmt.Errorf("server already running on port %d", s.port)
	}

	ln, err := netio.Listen(s.port)
	if err != nil {
		s.log.Error("server failed to start", logger.Field{Key: "error", Value: err})
		return fmt.Errorf("server failed to start: %w", err)
	}

	p, err := poller.New()
	if err != nil {
		_ = ln.Close()
		s.log.Error("server failed to start", logger.Field{Key: "error", Value: err})
		return fmt.Errorf("server failed to start: %w", err)
	}

	if err := p.Register(ln.Fd(), poller.Readable); err != nil {
		_ = ln.Close()
		_ = p.Close()
		return fmt.Errorf("server failed to start: %w", err)
	}

	s.listener = ln
	s.poller = p
	// A previous run's loop closed the old channel on exit; each run gets
	// its own so Start after Stop works.
	s.done = make(chan struct{})
	s.running.Store(true)

	s.log.Info("server started", logger.Field{Key: "port", Value: s.port})
	go s.loop()

	return nil
}

// Stop requests a graceful shutdown and blocks until the dispatch loop has
// broadcast the shutdown notice and returned. Safe to call when the server
// is not running.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		s.log.Info("server not running")
		return
	}

	// The loop may be blocked in an indefinite wait. A throwaway loopback
	// connection produces a readiness event that gets it moving again.
	addr := net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", s.port))
	if conn, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		_ = conn.Close()
	}

	<-s.done
}

// loop is the dispatch loop: wait for readiness, accept, drain, decode,
// dispatch. It runs until the running flag is cleared, then performs the
// shutdown sequence.
func (s *Server) loop() {
	defer close(s.done)

	for s.running.Load() {
		events, err := s.poller.Wait(-1)
		if err != nil {
			if !s.running.Load() {
				break
			}
			s.log.Error("poller wait failed", logger.Field{Key: "error", Value: err})
			continue
		}

		for _, ev := range events {
			switch {
			case ev.Fd == s.listener.Fd():
				s.acceptPending()
			case ev.HangUp:
				s.disconnect(ev.Fd)
			default:
				if ev.Readable {
					s.handleReadable(ev.Fd)
				}
				if ev.Writable {
					s.handleWritable(ev.Fd)
				}
			}
		}
	}

	s.shutdown()
}

// acceptPending drains the accept backlog. Edge-triggered notification for
// the listener fires once per batch, so every pending connection must be
// accepted before returning to the wait.
func (s *Server) acceptPending() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, netio.ErrWouldBlock) {
				s.log.Error("accept failed", logger.Field{Key: "error", Value: err})
			}
			return
		}

		fd := conn.Fd()
		if err := s.poller.Register(fd, poller.Readable); err != nil {
			s.log.Error("failed to watch new connection", logger.Field{Key: "fd", Value: fd}, logger.Field{Key: "error", Value: err})
			_ = conn.Close()
			continue
		}

		sess := s.registry.Add(conn)
		sess.OnBacklogged(func() {
			if err := s.poller.Modify(fd, poller.Readable|poller.Writable); err != nil {
				s.log.Error("failed to add write interest", logger.Field{Key: "fd", Value: fd}, logger.Field{Key: "error", Value: err})
			}
		})

		s.log.Info("new connection accepted", logger.Field{Key: "fd", Value: fd}, logger.Field{Key: "id", Value: sess.ID()})
	}
}

// handleReadable drains the socket into the session's read buffer, then
// decodes and dispatches every complete frame. A transport error or orderly
// close runs the disconnect path.
func (s *Server) handleReadable(fd int) {
	sess, ok := s.registry.ByFd(fd)
	if !ok {
		s.log.Warn("readiness event for unknown client", logger.Field{Key: "fd", Value: fd})
		return
	}

	for {
		n, err := sess.Conn().Read(s.scratch[:])
		if err != nil {
			if errors.Is(err, netio.ErrWouldBlock) {
				break
			}
			if !errors.Is(err, io.EOF) {
				s.log.Warn("read failed", logger.Field{Key: "fd", Value: fd}, logger.Field{Key: "error", Value: err})
			}
			s.disconnect(fd)
			return
		}
		sess.AppendRead(s.scratch[:n])
	}

	s.dispatchBuffered(sess)
}
