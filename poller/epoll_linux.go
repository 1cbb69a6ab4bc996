//go:build linux

package poller

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const maxEvents = 128

// epollPoller implements Poller over Linux epoll in edge-triggered mode.
type epollPoller struct {
	epfd   int
	events []unix.EpollEvent
}

// New creates the platform poller. On Linux this is an epoll instance.
//
// Returns:
//   - The poller, or an error if the epoll instance cannot be created
func New() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("poller: epoll create: %w", err)
	}

	return &epollPoller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, maxEvents),
	}, nil
}

// interestEvents translates an Interest set to epoll event flags. EPOLLET is
// always set; the dispatcher is written to drain on every notification.
func interestEvents(interest Interest) uint32 {
	events := uint32(unix.EPOLLET)
	if interest&Readable != 0 {
		events |= unix.EPOLLIN
	}
	if interest&Writable != 0 {
		events |= unix.EPOLLOUT
	}

	return events
}

// Register implements Poller.
func (p *epollPoller) Register(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: interestEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("poller: register fd %d: %w", fd, err)
	}

	return nil
}

// Modify implements Poller.
func (p *epollPoller) Modify(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: interestEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("poller: modify fd %d: %w", fd, err)
	}

	return nil
}

// Unregister implements Poller.
func (p *epollPoller) Unregister(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("poller: unregister fd %d: %w", fd, err)
	}

	return nil
}

// Wait implements Poller. EINTR is not an error; it returns an empty ready
// set so the caller loops back into Wait.
func (p *epollPoller) Wait(timeoutMs int) ([]Event, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("poller: epoll wait: %w", err)
	}

	ready := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		raw := p.events[i]
		ready = append(ready, Event{
			Fd:       int(raw.Fd),
			Readable: raw.Events&unix.EPOLLIN != 0,
			Writable: raw.Events&unix.EPOLLOUT != 0,
			HangUp:   raw.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0,
		})
	}

	return ready, nil
}

// Close implements Poller.
func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
