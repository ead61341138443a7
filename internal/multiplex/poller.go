// Package multiplex provides a bounded-wait readiness primitive over many
// datagram sockets: the Receiver registers every input socket once at
// startup and then blocks on a single Wait call per event-loop tick instead
// of polling each socket individually.
package multiplex

import "time"

// Poller multiplexes readiness across registered file descriptors. A single
// Poller instance is owned by one Receiver for its entire lifetime; it is
// not safe for concurrent use, matching the single-threaded event loop the
// rest of the daemon runs on.
type Poller interface {
	// Register adds fd to the readiness set, associated with key. key is
	// returned by Wait when fd becomes readable; callers typically use the
	// input port number or a socket index.
	Register(fd uintptr, key int) error

	// Wait blocks up to timeout for at least one registered descriptor to
	// become readable, returning the keys of every descriptor that is.
	// A zero-length, nil-error result means the timeout elapsed with
	// nothing ready.
	Wait(timeout time.Duration) ([]int, error)

	// Close releases the underlying OS resource. Registered descriptors are
	// not themselves closed.
	Close() error
}
