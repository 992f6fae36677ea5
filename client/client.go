// File: client/client.go
// Package client provides a blocking client for the terminator-framed query
// protocol.
// Author: momentics <momentics@gmail.com>
//
// A Client holds one TCP connection and performs strict request/response
// alternation: Query writes one framed request and reads exactly one framed
// response before returning.

package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/momentics/hioload-sql/api"
	"github.com/momentics/hioload-sql/protocol"
)

// Config holds client parameters.
type Config struct {
	Addr         string        // host:port of the server
	DialTimeout  time.Duration // per attempt (0 = no limit beyond ctx)
	DialAttempts int           // total attempts (<= 1 = single attempt)
	MaxResponse  int           // response size limit (0 = protocol default)
}

// Client is a connected query client. Methods are safe for concurrent use
// but calls are serialised.
type Client struct {
	cfg  Config
	mu   sync.Mutex
	conn net.Conn
	scan *protocol.Scanner
	done bool
}

// Dial connects to addr with default settings.
func Dial(ctx context.Context, addr string) (*Client, error) {
	return DialConfig(ctx, Config{Addr: addr})
}

// DialConfig connects according to cfg, retrying with linear backoff when
// DialAttempts > 1.
func DialConfig(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("client: empty address: %w", api.ErrInvalidArgument)
	}
	attempts := max(cfg.DialAttempts, 1)
	d := net.Dialer{Timeout: cfg.DialTimeout}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := d.DialContext(ctx, "tcp", cfg.Addr)
		if err == nil {
			return &Client{
				cfg:  cfg,
				conn: conn,
				scan: protocol.NewScanner(conn, cfg.MaxResponse),
			}, nil
		}
		lastErr = err
		if i == attempts || ctx.Err() != nil {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 100 * time.Millisecond):
		case <-ctx.Done():
			return nil, fmt.Errorf("dial %s: %w", cfg.Addr, ctx.Err())
		}
	}
	return nil, fmt.Errorf("dial %s: %w", cfg.Addr, lastErr)
}

// Query sends text and waits for its response. The reserved exit command
// is rejected; use Exit.
func (c *Client) Query(ctx context.Context, text string) (string, error) {
	if protocol.IsExit(text) {
		return "", fmt.Errorf("query %q: use Exit: %w", text, api.ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return "", api.ErrClosed
	}
	stop := c.bindDeadline(ctx)
	defer stop()

	if _, err := c.conn.Write(protocol.Frame(text)); err != nil {
		return "", c.abort(ctx, fmt.Errorf("write request: %w", err))
	}
	resp, err := c.scan.Next()
	if err != nil {
		return "", c.abort(ctx, err)
	}
	return resp, nil
}

// abort closes the connection after a failed exchange. A response to the
// failed request may still arrive, so the stream can no longer be paired
// with later requests. Callers hold c.mu.
func (c *Client) abort(ctx context.Context, err error) error {
	c.done = true
	_ = c.conn.Close()
	return c.ctxErr(ctx, err)
}

// Exit sends the exit command and closes the connection. The server closes
// its side without replying.
func (c *Client) Exit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return nil
	}
	_, werr := c.conn.Write(protocol.Frame(protocol.ExitCommand))
	c.done = true
	return errors.Join(werr, c.conn.Close())
}

// Close closes the connection without sending exit. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return nil
	}
	c.done = true
	return c.conn.Close()
}

// RemoteAddr returns the server address.
func (c *Client) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// bindDeadline unblocks pending I/O once ctx is done.
func (c *Client) bindDeadline(ctx context.Context) func() {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	return func() {
		stop()
		_ = c.conn.SetDeadline(time.Time{})
	}
}

func (c *Client) ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %w", cerr, err)
	}
	return err
}
