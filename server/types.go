package server

import (
	"fmt"
	"time"

	"github.com/momentics/hioload-sql/api"
	"github.com/momentics/hioload-sql/reactor"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr     string        // TCP bind address, e.g. ":5050"
	Backlog        int           // listen(2) backlog
	PollTimeout    time.Duration // upper bound of one multiplexer wait
	ReadChunkSize  int           // bytes requested per receive
	MaxRequestSize int           // inbound bytes allowed per request (0 = unlimited)
	Multiplexer    string        // "poll" or "epoll"
	StrictMode     bool          // handler and accept failures stop the server
	HandlerTimeout time.Duration // deadline on the handler context (0 = none)
	CPU            int           // pin the loop thread to this CPU (-1 = no pinning)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     ":5050",
		Backlog:        5,
		PollTimeout:    60 * time.Second,
		ReadChunkSize:  512,
		MaxRequestSize: 1 << 20,
		Multiplexer:    reactor.KindPoll,
		StrictMode:     false,
		HandlerTimeout: 0,
		CPU:            -1,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Backlog <= 0:
		return fmt.Errorf("server config: backlog %d: %w", c.Backlog, api.ErrInvalidArgument)
	case c.PollTimeout <= 0:
		return fmt.Errorf("server config: poll timeout %s: %w", c.PollTimeout, api.ErrInvalidArgument)
	case c.ReadChunkSize <= 0:
		return fmt.Errorf("server config: read chunk size %d: %w", c.ReadChunkSize, api.ErrInvalidArgument)
	case c.MaxRequestSize < 0:
		return fmt.Errorf("server config: max request size %d: %w", c.MaxRequestSize, api.ErrInvalidArgument)
	case c.CPU < -1:
		return fmt.Errorf("server config: cpu %d: %w", c.CPU, api.ErrInvalidArgument)
	case c.HandlerTimeout < 0:
		return fmt.Errorf("server config: handler timeout %s: %w", c.HandlerTimeout, api.ErrInvalidArgument)
	}
	return nil
}
