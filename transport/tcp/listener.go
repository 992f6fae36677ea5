//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/momentics/hioload-sql/api"
	"golang.org/x/sys/unix"
)

// DefaultBacklog is the listen(2) backlog used when none is configured.
const DefaultBacklog = 5

// Listener is a non-blocking TCP listening socket.
type Listener struct {
	fd   int
	addr *net.TCPAddr

	closeOnce sync.Once
	closeErr  error
}

// Listen binds addr ("host:port"; empty host binds all interfaces) and
// starts listening with the given backlog.
func Listen(addr string, backlog int) (*Listener, error) {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp resolve %q: %w", addr, err)
	}
	family, sa, err := bindSockaddr(tcpAddr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	if err := prepareFd(fd); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("tcp bind %s: %w", tcpAddr, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("tcp listen %s: %w", tcpAddr, err)
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("getsockname: %w", err)
	}
	return &Listener{fd: fd, addr: sockaddrToTCP(bound)}, nil
}

// Fd returns the listening descriptor.
func (l *Listener) Fd() int { return l.fd }

// Addr returns the bound address, including the kernel-chosen port.
func (l *Listener) Addr() net.Addr { return l.addr }

// Accept takes one pending connection. api.ErrWouldBlock means the backlog
// was empty (or the pending peer already went away).
func (l *Listener) Accept() (api.Socket, error) {
	nfd, sa, err := unix.Accept(l.fd)
	if err != nil {
		if isTransient(err) || errors.Is(err, unix.ECONNABORTED) {
			return nil, api.ErrWouldBlock
		}
		return nil, api.WrapError(api.ErrCodeAccept, "tcp accept", err).WithContext("fd", l.fd)
	}
	if err := prepareFd(nfd); err != nil {
		_ = unix.Close(nfd)
		return nil, api.WrapError(api.ErrCodeAccept, "tcp accept", err).WithContext("fd", nfd)
	}
	_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return &Conn{fd: nfd, remote: sockaddrToTCP(sa)}, nil
}

// Close stops listening. It is idempotent.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() { l.closeErr = unix.Close(l.fd) })
	return l.closeErr
}

func prepareFd(fd int) error {
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		return fmt.Errorf("set nonblock fd %d: %w", fd, err)
	}
	return nil
}

func isTransient(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR)
}
