// File: server/server.go
// Package server implements the single-goroutine readiness loop that
// multiplexes client connections, frames requests and responses, and hands
// each complete request to the query handler.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/momentics/hioload-sql/affinity"
	"github.com/momentics/hioload-sql/api"
	"github.com/momentics/hioload-sql/control"
	"github.com/momentics/hioload-sql/internal/logfields"
	"github.com/momentics/hioload-sql/reactor"
	"github.com/momentics/hioload-sql/transport/tcp"
	"pkt.systems/pslog"
)

// Server owns the listening socket, the multiplexer, every client
// connection and both interest sets. All of them are touched only by the
// goroutine running Run (or Step).
type Server struct {
	cfg      Config
	handler  api.QueryHandler
	listener api.Listener
	mux      api.Multiplexer
	logger   pslog.Logger
	metrics  *control.Metrics
	now      func() time.Time

	conns    map[int]*conn
	readSet  *interestSet
	writeSet *interestSet
	chunk    []byte

	running   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

// New builds a Server. Unless replaced by options, it binds cfg.ListenAddr
// and creates the multiplexer named by cfg.Multiplexer.
func New(cfg *Config, handler api.QueryHandler, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if handler == nil {
		return nil, fmt.Errorf("server: nil query handler: %w", api.ErrInvalidArgument)
	}
	s := &Server{
		cfg:      *cfg,
		handler:  handler,
		now:      time.Now,
		conns:    make(map[int]*conn),
		readSet:  newInterestSet(),
		writeSet: newInterestSet(),
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	s.logger = logfields.WithSubsystem(s.logger, "server.loop")
	s.chunk = make([]byte, s.cfg.ReadChunkSize)

	if s.listener == nil {
		ln, err := tcp.Listen(s.cfg.ListenAddr, s.cfg.Backlog)
		if err != nil {
			return nil, err
		}
		s.listener = ln
	}
	if s.mux == nil {
		mux, err := reactor.New(s.cfg.Multiplexer)
		if err != nil {
			_ = s.listener.Close()
			return nil, err
		}
		s.mux = mux
	}
	s.readSet.add(s.listener.Fd())
	return s, nil
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// ActiveConnections returns the number of open client connections.
// It must be called from the loop goroutine or after Run returned.
func (s *Server) ActiveConnections() int { return len(s.conns) }

// Run drives the event loop until ctx is cancelled or a fatal error occurs.
// On return every connection, the listener and the multiplexer are closed.
// Cancellation is a clean stop and yields nil.
func (s *Server) Run(ctx context.Context) error {
	if s.closed.Load() {
		return api.ErrClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return api.ErrAlreadyRunning
	}
	defer s.running.Store(false)

	stop := context.AfterFunc(ctx, func() { _ = s.mux.Wake() })
	defer stop()

	if s.cfg.CPU >= 0 {
		release, err := affinity.Pin(s.cfg.CPU)
		defer release()
		if err != nil {
			s.logger.Warn("server.affinity", "cpu", s.cfg.CPU, "error", err)
		}
	}

	s.logger.Info("server.started",
		"addr", s.listener.Addr().String(),
		"multiplexer", s.cfg.Multiplexer,
		"poll_timeout", s.cfg.PollTimeout,
		"read_chunk", humanize.Bytes(uint64(s.cfg.ReadChunkSize)),
		"strict", s.cfg.StrictMode)

	var err error
	for s.readSet.len() > 0 && ctx.Err() == nil {
		if err = s.Step(ctx); err != nil {
			break
		}
	}
	reason := "context canceled"
	if err != nil {
		reason = err.Error()
		s.logger.Error("server.fatal", "error", err)
	}
	s.shutdown(reason)
	return err
}

// Step runs exactly one loop iteration: one multiplexer wait followed by
// the accept, receive, send and error transitions it reported. Step must not
// be called concurrently with Run.
func (s *Server) Step(ctx context.Context) error {
	if s.closed.Load() {
		return api.ErrClosed
	}
	ready, err := s.mux.Wait(s.readSet.slice(), s.writeSet.slice(), s.cfg.PollTimeout)
	if err != nil {
		return &api.FatalLoopError{Op: "poll", Err: err}
	}
	if ready.Empty() {
		s.metrics.PollTimeout()
		s.logger.Debug("server.poll.timeout", "active", len(s.conns))
		return nil
	}

	// Resolve descriptors before any transition so a descriptor closed and
	// reused by an accept in this iteration cannot receive stale events.
	readable, listenerReady := s.resolve(ready.Readable)
	writable, _ := s.resolve(ready.Writable)
	exceptional, listenerBroken := s.resolve(ready.Exceptional)

	if listenerBroken {
		return &api.FatalLoopError{Op: "listener", Err: api.ErrListenerFailed}
	}
	if listenerReady {
		if err := s.accept(); err != nil {
			return err
		}
	}
	for _, c := range readable {
		if err := s.onReadable(ctx, c); err != nil {
			return err
		}
	}
	for _, c := range writable {
		s.onWritable(c)
	}
	for _, c := range exceptional {
		if c.state != stateClosed {
			s.closeConn(c, control.ReasonException,
				api.WrapError(api.ErrCodeSocket, "exceptional readiness", api.ErrSocketException).WithContext("fd", c.fd))
		}
	}
	return nil
}

// Close releases every resource. It is meant for servers that were never
// run or were driven with Step; Run closes on its own.
func (s *Server) Close() error {
	if s.running.Load() {
		return api.ErrAlreadyRunning
	}
	s.shutdown("closed")
	return nil
}

// resolve maps ready descriptors to live connections. The listener is
// reported separately; unknown descriptors are dropped.
func (s *Server) resolve(fds []int) ([]*conn, bool) {
	var (
		out      []*conn
		listener bool
		lfd      = s.listener.Fd()
	)
	for _, fd := range fds {
		if fd == lfd {
			listener = true
			continue
		}
		if c, ok := s.conns[fd]; ok {
			out = append(out, c)
		}
	}
	return out, listener
}

func (s *Server) shutdown(reason string) {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		for _, c := range s.conns {
			s.closeConn(c, control.ReasonShutdown, nil)
		}
		lfd := s.listener.Fd()
		s.readSet.remove(lfd)
		s.mux.Release(lfd)
		err := errors.Join(s.listener.Close(), s.mux.Close())
		if err != nil {
			s.logger.Warn("server.close_error", "error", err)
		}
		s.logger.Info("server.stopped", "reason", reason)
	})
}
