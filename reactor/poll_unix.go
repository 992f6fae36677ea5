//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

// File: reactor/poll_unix.go
// Author: momentics <momentics@gmail.com>
//
// poll(2)-based multiplexer. It keeps no registrations: the interest sets are
// rebuilt from the caller's slices on every Wait.

package reactor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/momentics/hioload-sql/api"
	"golang.org/x/sys/unix"
)

const pollErrorMask = unix.POLLERR | unix.POLLHUP | unix.POLLNVAL

type pollMux struct {
	wake wakePipe
	fds  []unix.PollFd
	seen map[int]struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewPoll returns a poll(2) multiplexer.
func NewPoll() (api.Multiplexer, error) {
	wp, err := newWakePipe()
	if err != nil {
		return nil, err
	}
	return &pollMux{
		wake: wp,
		seen: make(map[int]struct{}),
	}, nil
}

func (m *pollMux) Wait(readInterest, writeInterest []int, timeout time.Duration) (api.Readiness, error) {
	clear(m.seen)
	m.fds = m.fds[:0]
	m.fds = append(m.fds, unix.PollFd{Fd: int32(m.wake.r), Events: unix.POLLIN})
	for _, fd := range readInterest {
		m.seen[fd] = struct{}{}
		m.fds = append(m.fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	}
	for _, fd := range writeInterest {
		if _, dup := m.seen[fd]; dup {
			return api.Readiness{}, fmt.Errorf("poll: fd %d in both interest sets: %w", fd, api.ErrInvalidArgument)
		}
		m.fds = append(m.fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLOUT})
	}

	n, err := unix.Poll(m.fds, timeoutMillis(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return api.Readiness{}, nil
		}
		return api.Readiness{}, fmt.Errorf("poll: %w", err)
	}
	var ready api.Readiness
	if n == 0 {
		return ready, nil
	}
	if m.fds[0].Revents != 0 {
		m.wake.drain()
	}
	for _, pfd := range m.fds[1:] {
		re := pfd.Revents
		if re == 0 {
			continue
		}
		fd := int(pfd.Fd)
		if re&unix.POLLIN != 0 {
			ready.Readable = append(ready.Readable, fd)
		}
		if re&unix.POLLOUT != 0 {
			ready.Writable = append(ready.Writable, fd)
		}
		if re&pollErrorMask != 0 {
			ready.Exceptional = append(ready.Exceptional, fd)
		}
	}
	return ready, nil
}

// Release is a no-op: poll(2) keeps no per-descriptor state.
func (m *pollMux) Release(int) {}

func (m *pollMux) Wake() error { return m.wake.signal() }

func (m *pollMux) Close() error {
	m.closeOnce.Do(func() { m.closeErr = m.wake.close() })
	return m.closeErr
}
