// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the readiness multiplexer used by the event loop. The loop owns the
// interest sets and hands them to the multiplexer on every wait, so the only
// suspension point of the server is a single Wait call.

package api

import "time"

// Readiness is the result of one Multiplexer.Wait call. The three slices are
// disjoint per category but a descriptor may be both Readable and Exceptional.
type Readiness struct {
	Readable    []int
	Writable    []int
	Exceptional []int
}

// Empty reports whether nothing became ready (timeout or wakeup).
func (r Readiness) Empty() bool {
	return len(r.Readable) == 0 && len(r.Writable) == 0 && len(r.Exceptional) == 0
}

// Multiplexer reports which descriptors are ready for I/O.
type Multiplexer interface {
	// Wait blocks until at least one descriptor of readInterest or
	// writeInterest is ready, the timeout elapses, or Wake is called.
	// Error readiness is watched on the union of both sets. A descriptor
	// must not appear in both sets.
	Wait(readInterest, writeInterest []int, timeout time.Duration) (Readiness, error)

	// Release drops any state kept for fd. Called before fd is closed.
	Release(fd int)

	// Wake makes a concurrent Wait return early with empty readiness.
	Wake() error

	// Close releases the multiplexer's own descriptors.
	Close() error
}
