//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"fmt"
	"net"
	"sync"

	"github.com/momentics/hioload-sql/api"
	"golang.org/x/sys/unix"
)

// Conn is an accepted, non-blocking client socket.
type Conn struct {
	fd     int
	remote *net.TCPAddr

	closeOnce sync.Once
	closeErr  error
}

// Fd returns the connection descriptor.
func (c *Conn) Fd() int { return c.fd }

// RemoteAddr returns the peer address captured at accept time.
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

// Recv performs one read(2). (0, nil) means the peer closed.
func (c *Conn) Recv(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err != nil {
		if isTransient(err) {
			return 0, api.ErrWouldBlock
		}
		return 0, socketError("recv", c.fd, err)
	}
	return n, nil
}

// Send performs one send(2) and returns how many bytes the kernel took.
func (c *Conn) Send(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.SendmsgN(c.fd, p, nil, nil, sendFlags)
	if err != nil {
		if isTransient(err) {
			return 0, api.ErrWouldBlock
		}
		return 0, socketError("send", c.fd, err)
	}
	return n, nil
}

// socketError reports a non-transient failure on fd. The result matches
// both api.ErrSocketException and the underlying errno.
func socketError(op string, fd int, errno error) error {
	return api.WrapError(api.ErrCodeSocket, op,
		fmt.Errorf("%w: %w", api.ErrSocketException, errno)).
		WithContext("fd", fd)
}

// Close releases the descriptor. It is idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = unix.Close(c.fd) })
	return c.closeErr
}
