package poller

import (
	"errors"
	"sync"
)

// ErrFakeClosed is returned by Fake.Wait after Close, so a dispatcher loop
// driven by the fake terminates instead of spinning.
var ErrFakeClosed = errors.New("poller: fake closed")

// Fake is a recording, scripted Poller for dispatcher tests. Registration
// calls are recorded for assertions; Wait hands out batches queued with
// QueueEvents and blocks (like a real poller) when none are queued.
type Fake struct {
	mu         sync.Mutex
	interests  map[int]Interest
	unregCalls []int

	batches chan []Event
	closed  bool
}

// NewFake creates a Fake with room for the given number of queued batches.
func NewFake() *Fake {
	return &Fake{
		interests: make(map[int]Interest),
		batches:   make(chan []Event, 64),
	}
}

// QueueEvents schedules one batch for a future Wait call.
func (f *Fake) QueueEvents(events ...Event) {
	f.batches <- events
}

// Interest returns the currently registered interest for fd.
func (f *Fake) Interest(fd int) (Interest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.interests[fd]
	return in, ok
}

// Unregistered returns the descriptors unregistered so far, in order.
func (f *Fake) Unregistered() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int{}, f.unregCalls...)
}

// Register implements Poller.
func (f *Fake) Register(fd int, interest Interest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interests[fd] = interest
	return nil
}

// Modify implements Poller.
func (f *Fake) Modify(fd int, interest Interest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interests[fd] = interest
	return nil
}

// Unregister implements Poller.
func (f *Fake) Unregister(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.interests, fd)
	f.unregCalls = append(f.unregCalls, fd)
	return nil
}

// Wait implements Poller. It blocks until a batch is queued or the fake is
// closed; the timeout is ignored.
func (f *Fake) Wait(timeoutMs int) ([]Event, error) {
	batch, ok := <-f.batches
	if !ok {
		return nil, ErrFakeClosed
	}

	return batch, nil
}

// Close implements Poller. Subsequent Wait calls return ErrFakeClosed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.batches)
	}

	return nil
}
