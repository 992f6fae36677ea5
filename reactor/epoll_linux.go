//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/momentics/hioload-sql/api"
	"golang.org/x/sys/unix"
)

const maxEpollEvents = 256

// epollMux is a level-triggered epoll multiplexer. Registrations are
// reconciled against the caller's interest sets on every Wait.
type epollMux struct {
	epfd       int
	wake       wakePipe
	registered map[int]uint32 // fd -> EPOLLIN or EPOLLOUT
	want       map[int]uint32
	events     []unix.EpollEvent

	closeOnce sync.Once
	closeErr  error
}

// NewEpoll creates a new epoll multiplexer.
func NewEpoll() (api.Multiplexer, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wp, err := newWakePipe()
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wp.r)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wp.r, &ev); err != nil {
		_ = wp.close()
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wake: %w", err)
	}
	return &epollMux{
		epfd:       epfd,
		wake:       wp,
		registered: make(map[int]uint32),
		want:       make(map[int]uint32),
		events:     make([]unix.EpollEvent, maxEpollEvents),
	}, nil
}

func (m *epollMux) Wait(readInterest, writeInterest []int, timeout time.Duration) (api.Readiness, error) {
	if err := m.sync(readInterest, writeInterest); err != nil {
		return api.Readiness{}, err
	}

	n, err := unix.EpollWait(m.epfd, m.events, timeoutMillis(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return api.Readiness{}, nil // interrupted by signal, normal
		}
		return api.Readiness{}, fmt.Errorf("epoll wait: %w", err)
	}

	var ready api.Readiness
	for i := 0; i < n; i++ {
		ev := m.events[i]
		fd := int(ev.Fd)
		if fd == m.wake.r {
			m.wake.drain()
			continue
		}
		if ev.Events&unix.EPOLLIN != 0 {
			ready.Readable = append(ready.Readable, fd)
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			ready.Writable = append(ready.Writable, fd)
		}
		if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			ready.Exceptional = append(ready.Exceptional, fd)
		}
	}
	return ready, nil
}

// sync brings the kernel interest list in line with the requested sets.
func (m *epollMux) sync(readInterest, writeInterest []int) error {
	clear(m.want)
	for _, fd := range readInterest {
		m.want[fd] = unix.EPOLLIN
	}
	for _, fd := range writeInterest {
		if _, dup := m.want[fd]; dup {
			return fmt.Errorf("epoll: fd %d in both interest sets: %w", fd, api.ErrInvalidArgument)
		}
		m.want[fd] = unix.EPOLLOUT
	}

	for fd := range m.registered {
		if _, ok := m.want[fd]; !ok {
			m.Release(fd)
		}
	}
	for fd, events := range m.want {
		cur, ok := m.registered[fd]
		if ok && cur == events {
			continue
		}
		op := unix.EPOLL_CTL_ADD
		if ok {
			op = unix.EPOLL_CTL_MOD
		}
		ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
		if err := unix.EpollCtl(m.epfd, op, fd, &ev); err != nil {
			return fmt.Errorf("epoll ctl fd %d: %w", fd, err)
		}
		m.registered[fd] = events
	}
	return nil
}

// Release removes fd from the interest list. It must run before fd is
// closed so a reused descriptor number is registered afresh.
func (m *epollMux) Release(fd int) {
	if _, ok := m.registered[fd]; !ok {
		return
	}
	delete(m.registered, fd)
	// ENOENT/EBADF mean the kernel already dropped it.
	_ = unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (m *epollMux) Wake() error { return m.wake.signal() }

// Close releases the epoll file descriptor.
func (m *epollMux) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = errors.Join(m.wake.close(), unix.Close(m.epfd))
	})
	return m.closeErr
}
