// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the socket abstractions driven by the event loop. Implementations
// must be non-blocking: operations that cannot make progress return
// ErrWouldBlock instead of parking the caller.

package api

import "net"

// Socket is a non-blocking, connected stream endpoint.
type Socket interface {
	// Fd returns the descriptor registered with the multiplexer.
	Fd() int

	// Recv reads at most len(p) bytes. n == 0 with a nil error means the
	// peer closed its side.
	Recv(p []byte) (n int, err error)

	// Send writes a prefix of p and reports how much was accepted.
	Send(p []byte) (n int, err error)

	// RemoteAddr is the peer address recorded at accept time.
	RemoteAddr() net.Addr

	// Close releases the descriptor.
	Close() error
}

// Listener is a non-blocking listening socket.
type Listener interface {
	// Fd returns the descriptor registered with the multiplexer.
	Fd() int

	// Accept takes one pending connection, already in non-blocking mode.
	Accept() (Socket, error)

	// Addr is the bound local address.
	Addr() net.Addr

	// Close stops listening.
	Close() error
}
