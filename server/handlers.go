package server

import (
	"fmt"
	"strings"

	"github.com/cyberinferno/go-chat/logger"
	"github.com/cyberinferno/go-chat/poller"
	"github.com/cyberinferno/go-chat/protocol"
	"github.com/cyberinferno/go-chat/registry"
)

// dispatchBuffered decodes every complete frame sitting in the session's
// read buffer and dispatches it. Decoding stops as soon as the session
// disappears from the registry, since a handler may have disconnected it.
func (s *Server) dispatchBuffered(sess *registry.Session) {
	for {
		msg, consumed, err := protocol.DecodeBounded(sess.ReadBuffered(), maxFramePayload)
		if err != nil {
			s.log.Warn("oversized frame",
				logger.Field{Key: "fd", Value: sess.Fd()},
				logger.Field{Key: "error", Value: err})
			s.disconnect(sess.Fd())
			return
		}
		if msg == nil {
			return
		}
		sess.ConsumeRead(consumed)

		s.dispatch(sess, msg)

		if _, ok := s.registry.ByFd(sess.Fd()); !ok {
			return
		}
	}
}

// handleWritable flushes the pending-write backlog. Once the backlog is
// empty the write interest is dropped so the multiplexer stops reporting
// the always-writable socket.
func (s *Server) handleWritable(fd int) {
	sess, ok := s.registry.ByFd(fd)
	if !ok {
		return
	}

	drained, err := sess.Flush()
	if err != nil {
		s.log.Warn("flush failed", logger.Field{Key: "fd", Value: fd}, logger.Field{Key: "error", Value: err})
		s.disconnect(fd)
		return
	}
	if drained {
		if err := s.poller.Modify(fd, poller.Readable); err != nil {
			s.log.Error("failed to drop write interest", logger.Field{Key: "fd", Value: fd}, logger.Field{Key: "error", Value: err})
		}
	}
}

func (s *Server) dispatch(sess *registry.Session, msg *protocol.Message) {
	switch msg.Type {
	case protocol.MsgJoin:
		s.handleJoin(sess, msg)
	case protocol.MsgBroadcast:
		s.handleBroadcast(sess, msg)
	case protocol.MsgPrivate:
		s.handlePrivate(sess, msg)
	case protocol.MsgUserList:
		s.handleUserList(sess)
	case protocol.MsgLeave:
		s.log.Info("client leaving", logger.Field{Key: "id", Value: sess.ID()})
		s.disconnect(sess.Fd())
	default:
		s.log.Warn("unexpected message type",
			logger.Field{Key: "id", Value: sess.ID()},
			logger.Field{Key: "type", Value: msg.Type.String()})
	}
}

// handleJoin authenticates the session under the requested username. A
// duplicate username gets a failure notice and a forced disconnect; repeated
// joins on an authenticated session are ignored.
func (s *Server) handleJoin(sess *registry.Session, msg *protocol.Message) {
	if sess.Authenticated() {
		s.log.Warn("join on authenticated session", logger.Field{Key: "id", Value: sess.ID()})
		return
	}

	username := msg.Text()
	if username == "" {
		s.sendTo(sess, protocol.NewText(protocol.MsgJoinFailure, protocol.ServerID, sess.ID(), "Username must not be empty"))
		s.disconnect(sess.Fd())
		return
	}
	if s.registry.IsUsernameTaken(username) {
		s.sendTo(sess, protocol.NewText(protocol.MsgJoinFailure, protocol.ServerID, sess.ID(), "Username already exists"))
		s.disconnect(sess.Fd())
		return
	}

	s.registry.Authenticate(sess, username)
	s.log.Info("client joined",
		logger.Field{Key: "id", Value: sess.ID()},
		logger.Field{Key: "username", Value: username})

	welcome := fmt.Sprintf("Welcome to the chat, %s!", username)
	s.sendTo(sess, protocol.NewText(protocol.MsgJoinSuccess, protocol.ServerID, sess.ID(), welcome))

	s.broadcast(protocol.NewText(protocol.MsgUserJoined, sess.ID(), protocol.BroadcastID, username), sess.ID())
}

// handleBroadcast relays a message to every other authenticated session,
// restamped as a server broadcast carrying the original sender id.
func (s *Server) handleBroadcast(sess *registry.Session, msg *protocol.Message) {
	if !sess.Authenticated() {
		s.rejectUnauthenticated(sess)
		return
	}

	out := protocol.Message{
		Type:       protocol.MsgServerBroadcast,
		SenderID:   sess.ID(),
		ReceiverID: protocol.BroadcastID,
		Payload:    msg.Payload,
	}
	s.broadcast(out, sess.ID())
}

// handlePrivate relays a message to a single recipient. An unknown or
// disconnected recipient produces an error notice for the sender.
func (s *Server) handlePrivate(sess *registry.Session, msg *protocol.Message) {
	if !sess.Authenticated() {
		s.rejectUnauthenticated(sess)
		return
	}

	target, ok := s.registry.ByID(msg.ReceiverID)
	if !ok || !target.Authenticated() {
		s.sendTo(sess, protocol.NewText(protocol.MsgError, protocol.ServerID, sess.ID(), "Receiver not found or not connected."))
		return
	}

	out := protocol.Message{
		Type:       protocol.MsgServerPrivate,
		SenderID:   sess.ID(),
		ReceiverID: target.ID(),
		Payload:    msg.Payload,
	}
	s.sendTo(target, out)
}

// handleUserList replies with a comma separated "username:id" roster of the
// other authenticated sessions. An empty roster produces no reply.
func (s *Server) handleUserList(sess *registry.Session) {
	if !sess.Authenticated() {
		s.rejectUnauthenticated(sess)
		return
	}

	var entries []string
	for _, other := range s.registry.Sessions() {
		if other.ID() == sess.ID() || !other.Authenticated() {
			continue
		}
		entries = append(entries, fmt.Sprintf("%s:%d", other.Username(), other.ID()))
	}
	if len(entries) == 0 {
		return
	}

	roster := strings.Join(entries, ",")
	s.sendTo(sess, protocol.NewText(protocol.MsgUserList, protocol.ServerID, sess.ID(), roster))
}

func (s *Server) rejectUnauthenticated(sess *registry.Session) {
	s.log.Warn("message from unauthenticated client", logger.Field{Key: "id", Value: sess.ID()})
	s.sendTo(sess, protocol.NewText(protocol.MsgError, protocol.ServerID, sess.ID(), "Join the chat before sending messages."))
}

// sendTo encodes and sends a single message. A failed send means the
// session's outgoing stream can no longer be trusted — the backlog refused
// the frame or the transport broke, possibly mid-frame — so the session is
// torn down on the spot rather than left to desync its peer.
func (s *Server) sendTo(sess *registry.Session, msg protocol.Message) {
	if err := sess.Send(protocol.Encode(msg)); err != nil {
		s.log.Warn("send failed",
			logger.Field{Key: "id", Value: sess.ID()},
			logger.Field{Key: "type", Value: msg.Type.String()},
			logger.Field{Key: "error", Value: err})
		s.disconnect(sess.Fd())
	}
}

// broadcast relays through the registry and tears down every session whose
// delivery failed, outside the registry's snapshot iteration.
func (s *Server) broadcast(msg protocol.Message, excludeID uint32) {
	for _, failed := range s.registry.Broadcast(msg, excludeID) {
		s.disconnect(failed.Fd())
	}
}

// disconnect tears down a connection: multiplexer deregistration, registry
// removal, socket close, then a departure broadcast if the session had
// authenticated. Removal happens before the broadcast so that a delivery
// failure inside the broadcast, which disconnects the failed recipient in
// turn, can never re-enter this teardown for the same descriptor. Safe to
// call twice for the same fd.
func (s *Server) disconnect(fd int) {
	sess, ok := s.registry.ByFd(fd)
	if !ok {
		return
	}

	if err := s.poller.Unregister(fd); err != nil {
		s.log.Warn("failed to unwatch connection", logger.Field{Key: "fd", Value: fd}, logger.Field{Key: "error", Value: err})
	}
	s.registry.Remove(fd)
	_ = sess.Conn().Close()

	if sess.Authenticated() {
		s.broadcast(protocol.NewText(protocol.MsgUserLeft, sess.ID(), protocol.BroadcastID, sess.Username()), sess.ID())
	}

	s.log.Info("client disconnected", logger.Field{Key: "id", Value: sess.ID()})
}

// shutdown closes the listener, notifies every connected client and releases
// the multiplexer. Runs exactly once, at the end of the dispatch loop.
func (s *Server) shutdown() {
	_ = s.listener.Close()

	notice := protocol.NewText(protocol.MsgServerShutdown, protocol.ServerID, protocol.BroadcastID, "Server is shutting down.")
	s.registry.Broadcast(notice, protocol.ServerID)

	for _, sess := range s.registry.Sessions() {
		fd := sess.Fd()
		s.registry.Remove(fd)
		_ = sess.Conn().Close()
	}

	if err := s.poller.Close(); err != nil {
		s.log.Error("failed to close poller", logger.Field{Key: "error", Value: err})
	}

	s.log.Info("server stopped", logger.Field{Key: "port", Value: s.port})
}
