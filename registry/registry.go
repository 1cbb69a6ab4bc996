package registry

import (
	"fmt"
	"sync/atomic"

	"github.com/cyberinferno/go-chat/logger"
	"github.com/cyberinferno/go-chat/netio"
	"github.com/cyberinferno/go-chat/protocol"
	"github.com/cyberinferno/go-chat/safemap"
	"github.com/cyberinferno/go-chat/safeset"
)

// Registry owns all live sessions. Both indices are total bijections onto
// the live-session set: every session is reachable by id and by descriptor
// until removal, and visible through neither afterwards. Usernames claimed
// by authenticated sessions stay reserved until that session is removed.
type Registry struct {
	log       logger.Logger
	byID      *safemap.SafeMap[uint32, *Session]
	byFd      *safemap.SafeMap[int, *Session]
	usernames *safeset.SafeSet[string]
	nextID    atomic.Uint32
}

// NewRegistry creates an empty registry. Session ids are assigned
// monotonically starting at 1.
//
// Parameters:
//   - log: Logger for broadcast delivery failures and lifecycle events
//
// Returns:
//   - The new Registry
func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNop()
	}

	return &Registry{
		log:       log,
		byID:      safemap.NewSafeMap[uint32, *Session](),
		byFd:      safemap.NewSafeMap[int, *Session](),
		usernames: safeset.NewSafeSet[string](),
	}
}

// Add creates a session for a freshly accepted connection, assigns it the
// next id and indexes it by id and by descriptor. Adding a descriptor that
// is already tracked is a programmer error and panics.
//
// Parameters:
//   - conn: The accepted connection, owned by the new session from here on
//
// Returns:
//   - The new session, unauthenticated and with an empty read buffer
func (r *Registry) Add(conn netio.StreamConn) *Session {
	fd := conn.Fd()
	if r.byFd.Has(fd) {
		panic(fmt.Sprintf("registry: fd %d is already tracked", fd))
	}

	s := newSession(r.nextID.Add(1), conn)
	r.byFd.Store(fd, s)
	r.byID.Store(s.id, s)

	r.log.Info("client added", logger.Field{Key: "id", Value: s.id}, logger.Field{Key: "fd", Value: fd})
	return s
}

// Remove erases the session for fd from every index, releasing its username
// reservation if it held one. Removing an untracked descriptor is a no-op,
// which makes the disconnect path idempotent.
//
// Parameters:
//   - fd: The descriptor whose session should be removed
//
// Returns:
//   - The removed session, or nil if fd was not tracked
func (r *Registry) Remove(fd int) *Session {
	s, ok := r.byFd.Load(fd)
	if !ok {
		r.log.Warn("attempted to remove untracked client", logger.Field{Key: "fd", Value: fd})
		return nil
	}

	r.byID.Delete(s.id)
	r.byFd.Delete(fd)
	if s.username != "" {
		r.usernames.Remove(s.username)
	}

	r.log.Info("client removed", logger.Field{Key: "id", Value: s.id}, logger.Field{Key: "fd", Value: fd})
	return s
}

// ByID returns the session with the given id, if present.
func (r *Registry) ByID(id uint32) (*Session, bool) {
	return r.byID.Load(id)
}

// ByFd returns the session for the given descriptor, if present.
func (r *Registry) ByFd(fd int) (*Session, bool) {
	return r.byFd.Load(fd)
}

// IsUsernameTaken reports whether an authenticated session has claimed name.
func (r *Registry) IsUsernameTaken(name string) bool {
	return r.usernames.Contains(name)
}

// Authenticate marks the session as joined under name and reserves the name
// until the session is removed. The caller checks IsUsernameTaken first; the
// single-threaded dispatcher makes check-then-claim race free.
//
// Parameters:
//   - s: The session to authenticate
//   - name: The username to claim
func (r *Registry) Authenticate(s *Session, name string) {
	s.username = name
	s.authenticated = true
	r.usernames.Add(name)
}

// Sessions returns a snapshot of all live sessions. The slice is not
// affected by later additions or removals.
func (r *Registry) Sessions() []*Session {
	return r.byFd.Values()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.byFd.Len()
}

// Broadcast encodes msg once and sends it to every authenticated session
// except excludeID. A delivery failure is logged and does not abort the rest
// of the broadcast, but it leaves that session's outgoing stream unusable (a
// refused backlog may follow a partial frame write), so the failed sessions
// are returned for the caller to disconnect. Iteration runs over a snapshot,
// so a disconnect triggered while a broadcast is in flight cannot corrupt it.
//
// Parameters:
//   - msg: The message to deliver
//   - excludeID: Session id to skip, typically the originator
//
// Returns:
//   - The sessions whose delivery failed; the caller must tear them down
func (r *Registry) Broadcast(msg protocol.Message, excludeID uint32) []*Session {
	frame := protocol.Encode(msg)

	var failed []*Session
	for _, s := range r.Sessions() {
		if !s.authenticated || s.id == excludeID {
			continue
		}

		if err := s.Send(frame); err != nil {
			r.log.Error("broadcast delivery failed",
				logger.Field{Key: "id", Value: s.id},
				logger.Field{Key: "type", Value: msg.Type.String()},
				logger.Field{Key: "error", Value: err})
			failed = append(failed, s)
		}
	}

	return failed
}
