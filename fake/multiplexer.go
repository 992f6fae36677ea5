// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"fmt"
	"slices"
	"time"

	"github.com/momentics/hioload-sql/api"
)

// Multiplexer derives readiness from the fake network's state. It never
// sleeps: an idle wait counts as a timeout and returns immediately.
type Multiplexer struct {
	net *Network

	waits     int
	timeouts  int
	wakes     int
	released  []int
	lastRead  []int
	lastWrite []int
	failNext  error
	closed    bool
	onWait    func()
}

// Wait implements api.Multiplexer.
func (m *Multiplexer) Wait(readInterest, writeInterest []int, _ time.Duration) (api.Readiness, error) {
	m.net.mu.Lock()
	hook := m.onWait
	m.net.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.net.mu.Lock()
	defer m.net.mu.Unlock()
	m.waits++
	m.lastRead = slices.Clone(readInterest)
	m.lastWrite = slices.Clone(writeInterest)
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return api.Readiness{}, err
	}
	for _, fd := range writeInterest {
		if slices.Contains(readInterest, fd) {
			return api.Readiness{}, fmt.Errorf("fake: fd %d in both interest sets: %w", fd, api.ErrInvalidArgument)
		}
	}

	var ready api.Readiness
	for _, fd := range readInterest {
		if fd == listenerFd {
			if m.net.listener.readable() {
				ready.Readable = append(ready.Readable, fd)
			}
			if m.net.listener.broken {
				ready.Exceptional = append(ready.Exceptional, fd)
			}
			continue
		}
		s, ok := m.net.sockets[fd]
		if !ok {
			continue
		}
		if s.readable() {
			ready.Readable = append(ready.Readable, fd)
		}
		if s.exceptional() {
			ready.Exceptional = append(ready.Exceptional, fd)
		}
	}
	for _, fd := range writeInterest {
		s, ok := m.net.sockets[fd]
		if !ok {
			continue
		}
		if s.writable() {
			ready.Writable = append(ready.Writable, fd)
		}
		if s.exceptional() {
			ready.Exceptional = append(ready.Exceptional, fd)
		}
	}
	if ready.Empty() {
		m.timeouts++
	}
	return ready, nil
}

// Release implements api.Multiplexer.
func (m *Multiplexer) Release(fd int) {
	m.net.mu.Lock()
	m.released = append(m.released, fd)
	m.net.mu.Unlock()
}

// Wake implements api.Multiplexer.
func (m *Multiplexer) Wake() error {
	m.net.mu.Lock()
	m.wakes++
	m.net.mu.Unlock()
	return nil
}

// Close implements api.Multiplexer.
func (m *Multiplexer) Close() error {
	m.net.mu.Lock()
	m.closed = true
	m.net.mu.Unlock()
	return nil
}

// FailNext makes the next Wait return err.
func (m *Multiplexer) FailNext(err error) {
	m.net.mu.Lock()
	m.failNext = err
	m.net.mu.Unlock()
}

// OnWait installs a hook run at the start of every Wait, outside the lock.
func (m *Multiplexer) OnWait(fn func()) {
	m.net.mu.Lock()
	m.onWait = fn
	m.net.mu.Unlock()
}

// Stats reports wait, idle-timeout and wake counts.
func (m *Multiplexer) Stats() (waits, timeouts, wakes int) {
	m.net.mu.Lock()
	defer m.net.mu.Unlock()
	return m.waits, m.timeouts, m.wakes
}

// LastInterest returns the interest sets passed to the latest Wait.
func (m *Multiplexer) LastInterest() (read, write []int) {
	m.net.mu.Lock()
	defer m.net.mu.Unlock()
	return slices.Clone(m.lastRead), slices.Clone(m.lastWrite)
}

// Released returns the descriptors passed to Release, in order.
func (m *Multiplexer) Released() []int {
	m.net.mu.Lock()
	defer m.net.mu.Unlock()
	return slices.Clone(m.released)
}
