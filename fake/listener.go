// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"net"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-sql/api"
)

// Listener is an in-memory api.Listener fed by Network.Dial.
type Listener struct {
	net       *Network
	pending   *queue.Queue // of *Socket
	acceptErr error
	broken    bool
	closed    bool
}

func newListener(n *Network) *Listener {
	return &Listener{net: n, pending: queue.New()}
}

// Fd implements api.Listener.
func (l *Listener) Fd() int { return listenerFd }

// Addr implements api.Listener.
func (l *Listener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4zero, Port: 5050}
}

// Accept implements api.Listener.
func (l *Listener) Accept() (api.Socket, error) {
	l.net.mu.Lock()
	defer l.net.mu.Unlock()
	if l.closed {
		return nil, api.ErrClosed
	}
	if l.acceptErr != nil {
		err := l.acceptErr
		l.acceptErr = nil
		return nil, err
	}
	if l.pending.Length() == 0 {
		return nil, api.ErrWouldBlock
	}
	return l.pending.Remove().(*Socket), nil
}

// Close implements api.Listener.
func (l *Listener) Close() error {
	l.net.mu.Lock()
	defer l.net.mu.Unlock()
	l.closed = true
	return nil
}

// Closed reports whether the server closed the listener.
func (l *Listener) Closed() bool {
	l.net.mu.Lock()
	defer l.net.mu.Unlock()
	return l.closed
}

// FailAccept makes the next Accept return err and marks the listener readable.
func (l *Listener) FailAccept(err error) {
	l.net.mu.Lock()
	l.acceptErr = err
	l.net.mu.Unlock()
}

// Break flags the listener as exceptional on the next wait.
func (l *Listener) Break() {
	l.net.mu.Lock()
	l.broken = true
	l.net.mu.Unlock()
}

func (l *Listener) readable() bool {
	return !l.closed && (l.pending.Length() > 0 || l.acceptErr != nil)
}
