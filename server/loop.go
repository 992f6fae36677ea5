package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/momentics/hioload-sql/api"
	"github.com/momentics/hioload-sql/control"
	"github.com/momentics/hioload-sql/protocol"
)

// accept takes one pending connection off the listener.
func (s *Server) accept() error {
	sock, err := s.listener.Accept()
	if errors.Is(err, api.ErrWouldBlock) {
		return nil
	}
	if err != nil {
		if s.cfg.StrictMode {
			return &api.FatalLoopError{Op: "accept", Err: err}
		}
		s.logger.Warn("server.accept.error", "code", api.CodeOf(err).String(), "error", err)
		return nil
	}
	c := newConn(sock)
	s.conns[c.fd] = c
	s.readSet.add(c.fd)
	s.metrics.ConnectionAccepted()
	s.logger.Info("server.conn.accepted",
		"conn_id", c.id.String(),
		"remote", c.remoteString(),
		"active", len(s.conns))
	return nil
}

// onReadable performs one receive for a connection awaiting a request.
func (s *Server) onReadable(ctx context.Context, c *conn) error {
	if c.state != stateAwaitingRequest {
		return nil
	}
	n, err := c.sock.Recv(s.chunk)
	switch {
	case errors.Is(err, api.ErrWouldBlock):
		return nil
	case err != nil:
		s.closeConn(c, control.ReasonIOError, err)
		return nil
	case n == 0:
		s.closeConn(c, control.ReasonPeerRead, api.ErrPeerClosed)
		return nil
	}
	s.metrics.BytesReceived(n)

	chunk := s.chunk[:n]
	c.inbound = append(c.inbound, chunk...)
	if !protocol.Complete(chunk) {
		if s.cfg.MaxRequestSize > 0 && len(c.inbound) > s.cfg.MaxRequestSize {
			s.closeConn(c, control.ReasonOversize,
				fmt.Errorf("%d bytes without terminator: %w", len(c.inbound), api.ErrMessageTooLarge))
		}
		return nil
	}

	c.request = protocol.Strip(c.inbound)
	s.logger.Debug("server.conn.request",
		"conn_id", c.id.String(),
		"remote", c.remoteString(),
		"query", c.request)
	if protocol.IsExit(c.request) {
		s.metrics.Request(control.OutcomeExit, 0)
		s.closeConn(c, control.ReasonExit, nil)
		return nil
	}

	c.state = stateProcessing
	text, err := s.invoke(ctx, c.request)
	if err != nil {
		if s.cfg.StrictMode {
			return &api.FatalLoopError{Op: "handle", Err: err}
		}
		s.logger.Warn("server.handler.error",
			"conn_id", c.id.String(),
			"query", c.request,
			"error", err)
		text = errorResponse(err)
	}
	c.queue(protocol.Frame(text))
	s.readSet.remove(c.fd)
	s.writeSet.add(c.fd)
	return nil
}

// onWritable performs one send of the pending response.
func (s *Server) onWritable(c *conn) {
	if c.state != stateSendingResponse {
		return
	}
	n, err := c.sock.Send(c.outbound)
	switch {
	case errors.Is(err, api.ErrWouldBlock):
		return
	case err != nil:
		s.closeConn(c, control.ReasonIOError, err)
		return
	case n == 0:
		s.closeConn(c, control.ReasonPeerWrite, api.ErrPeerClosed)
		return
	}
	s.metrics.BytesSent(n)
	if !c.consume(n) {
		return
	}
	s.logger.Debug("server.conn.response.sent",
		"conn_id", c.id.String(),
		"remote", c.remoteString(),
		"query", c.request,
		"bytes", humanize.Bytes(uint64(c.respSize)))
	c.reset()
	s.writeSet.remove(c.fd)
	s.readSet.add(c.fd)
}

// invoke calls the handler, converting a panic into an error.
func (s *Server) invoke(ctx context.Context, query string) (text string, err error) {
	if s.cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.HandlerTimeout)
		defer cancel()
	}
	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			text, err = "", api.WrapError(api.ErrCodeHandler, fmt.Sprintf("panic %v", r), api.ErrHandlerPanicked)
		}
		outcome := control.OutcomeOK
		if err != nil {
			outcome = control.OutcomeError
		}
		s.metrics.Request(outcome, s.now().Sub(start))
	}()
	return s.handler.HandleQuery(ctx, query)
}

// closeConn moves c to the closed state and drops every trace of it.
func (s *Server) closeConn(c *conn, reason string, cause error) {
	if c.state == stateClosed {
		return
	}
	s.readSet.remove(c.fd)
	s.writeSet.remove(c.fd)
	s.mux.Release(c.fd)
	closeErr := c.sock.Close()
	delete(s.conns, c.fd)
	c.discard()
	s.metrics.ConnectionClosed(reason)

	fields := []any{
		"conn_id", c.id.String(),
		"remote", c.remoteString(),
		"reason", reason,
		"active", len(s.conns),
	}
	if cause != nil {
		fields = append(fields, "error", cause)
		if code := api.CodeOf(cause); code != 0 {
			fields = append(fields, "code", code.String())
		}
	}
	if closeErr != nil {
		fields = append(fields, "close_error", closeErr)
	}
	switch reason {
	case control.ReasonIOError, control.ReasonException, control.ReasonOversize:
		s.logger.Warn("server.conn.closed", fields...)
	default:
		s.logger.Info("server.conn.closed", fields...)
	}
}

func errorResponse(err error) string {
	return "\nError: " + err.Error() + "\n\n"
}
