// File: server/options.go
// Package server defines functional options for the Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/momentics/hioload-sql/api"
	"github.com/momentics/hioload-sql/control"
	"pkt.systems/pslog"
)

// Option customizes server initialization.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l pslog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *control.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithListener replaces the TCP listener built from Config.ListenAddr.
// The server takes ownership and closes it on shutdown.
func WithListener(ln api.Listener) Option {
	return func(s *Server) {
		s.listener = ln
	}
}

// WithMultiplexer replaces the multiplexer built from Config.Multiplexer.
// The server takes ownership and closes it on shutdown.
func WithMultiplexer(m api.Multiplexer) Option {
	return func(s *Server) {
		s.mux = m
	}
}

// WithStrictMode makes handler and accept failures fatal.
func WithStrictMode(strict bool) Option {
	return func(s *Server) {
		s.cfg.StrictMode = strict
	}
}

// WithPollTimeout overrides the multiplexer wait bound.
func WithPollTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.cfg.PollTimeout = d
	}
}

// WithHandlerTimeout bounds the context handed to the query handler.
func WithHandlerTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.cfg.HandlerTimeout = d
	}
}

// WithCPU pins the loop's OS thread to cpu while Run is active.
func WithCPU(cpu int) Option {
	return func(s *Server) {
		s.cfg.CPU = cpu
	}
}
