// Package poller provides the readiness multiplexer the dispatcher waits on:
// a bounded set of watched descriptors and a blocking Wait that reports which
// of them can be serviced. The production implementation wraps Linux epoll in
// edge-triggered mode; a recording fake drives the dispatcher tests.
package poller

// Interest selects which readiness conditions a descriptor is watched for.
// Hang-up and error conditions are always reported regardless of interest.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
)

// Event is one readiness notification for a watched descriptor. Edge-triggered
// semantics apply: after an event is reported the caller must drain the
// descriptor until it would block, or it will not be notified again for data
// that is already buffered.
type Event struct {
	Fd       int
	Readable bool
	Writable bool

	// HangUp reports a peer hang-up or socket error. The dispatcher runs the
	// disconnect path without attempting a read.
	HangUp bool
}

// Poller waits for readiness across a changing set of descriptors.
// Implementations are used from a single dispatcher goroutine; they do not
// need to be safe for concurrent use.
type Poller interface {
	// Register starts watching fd for the given interest.
	Register(fd int, interest Interest) error

	// Modify replaces the interest set of an already watched fd.
	Modify(fd int, interest Interest) error

	// Unregister stops watching fd. Unregistering a descriptor that is
	// already gone is harmless from the caller's point of view; the
	// dispatcher logs the error and continues.
	Unregister(fd int) error

	// Wait blocks up to timeoutMs milliseconds (-1 blocks indefinitely) and
	// returns the ready set. An empty slice with a nil error means the wait
	// was interrupted and should simply be retried.
	Wait(timeoutMs int) ([]Event, error)

	// Close releases the poller's resources.
	Close() error
}
