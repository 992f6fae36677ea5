// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Package fake provides in-memory sockets, a listener and a readiness
// multiplexer so the event loop can be driven step by step in tests.
package fake

import (
	"fmt"
	"net"
	"sync"
)

const listenerFd = 3

// Network ties together one fake listener, the sockets dialed against it and
// a multiplexer that derives readiness from their state.
type Network struct {
	mu       sync.Mutex
	nextFd   int
	nextPort int
	listener *Listener
	sockets  map[int]*Socket
	mux      *Multiplexer
}

// NewNetwork creates an empty network with a listener on fd 3.
func NewNetwork() *Network {
	n := &Network{
		nextFd:   listenerFd + 1,
		nextPort: 40000,
		sockets:  make(map[int]*Socket),
	}
	n.listener = newListener(n)
	n.mux = &Multiplexer{net: n}
	return n
}

// Listener returns the network's listening socket.
func (n *Network) Listener() *Listener { return n.listener }

// Multiplexer returns the readiness multiplexer bound to this network.
func (n *Network) Multiplexer() *Multiplexer { return n.mux }

// Dial creates a client connection and queues the server side for Accept.
// The returned socket is the server side; tests feed it with Deliver and
// inspect what the server wrote with Output.
func (n *Network) Dial() *Socket {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := newSocket(n, n.nextFd, &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: n.nextPort})
	n.nextFd++
	n.nextPort++
	n.sockets[s.fd] = s
	n.listener.pending.Add(s)
	return s
}

// Socket returns the socket registered under fd.
func (n *Network) Socket(fd int) (*Socket, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.sockets[fd]
	if !ok {
		return nil, fmt.Errorf("fake: no socket with fd %d", fd)
	}
	return s, nil
}
