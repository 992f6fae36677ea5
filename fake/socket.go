// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"bytes"
	"net"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-sql/api"
)

// Socket is an in-memory api.Socket. Every chunk handed to Deliver is
// returned by exactly one Recv call (split only if the caller's buffer is
// smaller), which lets tests control chunk boundaries precisely.
type Socket struct {
	net    *Network
	fd     int
	remote net.Addr

	inbound *queue.Queue // of []byte
	partial []byte
	hangup  bool
	recvErr error

	sendLimit  int
	sendBlock  bool
	sendZero   bool
	sendErr    error
	sent       bytes.Buffer
	exceptions bool
	closed     bool

	recvCalls int
	sendCalls int
}

func newSocket(n *Network, fd int, remote net.Addr) *Socket {
	return &Socket{net: n, fd: fd, remote: remote, inbound: queue.New()}
}

// Fd implements api.Socket.
func (s *Socket) Fd() int { return s.fd }

// RemoteAddr implements api.Socket.
func (s *Socket) RemoteAddr() net.Addr { return s.remote }

// Recv implements api.Socket.
func (s *Socket) Recv(p []byte) (int, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	s.recvCalls++
	if s.closed {
		return 0, api.ErrClosed
	}
	if len(s.partial) == 0 && s.inbound.Length() > 0 {
		s.partial = s.inbound.Remove().([]byte)
	}
	if len(s.partial) > 0 {
		n := copy(p, s.partial)
		s.partial = s.partial[n:]
		return n, nil
	}
	if s.recvErr != nil {
		return 0, s.recvErr
	}
	if s.hangup {
		return 0, nil
	}
	return 0, api.ErrWouldBlock
}

// Send implements api.Socket.
func (s *Socket) Send(p []byte) (int, error) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	s.sendCalls++
	switch {
	case s.closed:
		return 0, api.ErrClosed
	case s.sendErr != nil:
		return 0, s.sendErr
	case s.sendZero:
		return 0, nil
	case s.sendBlock:
		return 0, api.ErrWouldBlock
	}
	n := len(p)
	if s.sendLimit > 0 && n > s.sendLimit {
		n = s.sendLimit
	}
	s.sent.Write(p[:n])
	return n, nil
}

// Close implements api.Socket.
func (s *Socket) Close() error {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	s.closed = true
	return nil
}

// Deliver queues chunks as if the peer had written them.
func (s *Socket) Deliver(chunks ...string) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	for _, c := range chunks {
		s.inbound.Add([]byte(c))
	}
}

// HangUp makes Recv return zero bytes once queued chunks are consumed.
func (s *Socket) HangUp() {
	s.net.mu.Lock()
	s.hangup = true
	s.net.mu.Unlock()
}

// FailRecv makes Recv return err once queued chunks are consumed.
func (s *Socket) FailRecv(err error) {
	s.net.mu.Lock()
	s.recvErr = err
	s.net.mu.Unlock()
}

// FailSend makes every Send return err.
func (s *Socket) FailSend(err error) {
	s.net.mu.Lock()
	s.sendErr = err
	s.net.mu.Unlock()
}

// LimitSend caps the bytes accepted per Send call; 0 removes the cap.
func (s *Socket) LimitSend(n int) {
	s.net.mu.Lock()
	s.sendLimit = n
	s.net.mu.Unlock()
}

// BlockSend toggles write readiness; while blocked Send would block.
func (s *Socket) BlockSend(blocked bool) {
	s.net.mu.Lock()
	s.sendBlock = blocked
	s.net.mu.Unlock()
}

// SendZero makes Send report zero bytes written, as for a vanished peer.
func (s *Socket) SendZero() {
	s.net.mu.Lock()
	s.sendZero = true
	s.net.mu.Unlock()
}

// Break flags the socket as exceptional on the next wait.
func (s *Socket) Break() {
	s.net.mu.Lock()
	s.exceptions = true
	s.net.mu.Unlock()
}

// Output returns everything the server has sent so far.
func (s *Socket) Output() string {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	return s.sent.String()
}

// Closed reports whether the server closed the socket.
func (s *Socket) Closed() bool {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	return s.closed
}

// RecvCalls returns how many times Recv was called.
func (s *Socket) RecvCalls() int {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	return s.recvCalls
}

// SendCalls returns how many times Send was called.
func (s *Socket) SendCalls() int {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	return s.sendCalls
}

// readable, writable and exceptional are evaluated with net.mu held.
func (s *Socket) readable() bool {
	if s.closed {
		return false
	}
	return s.inbound.Length() > 0 || len(s.partial) > 0 || s.hangup || s.recvErr != nil
}

func (s *Socket) writable() bool { return !s.closed && !s.sendBlock }

func (s *Socket) exceptional() bool { return !s.closed && s.exceptions }
