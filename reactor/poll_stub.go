//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

// File: reactor/poll_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-sql/api"
)

// NewPoll returns an error for unsupported platforms.
func NewPoll() (api.Multiplexer, error) {
	return nil, fmt.Errorf("reactor: poll: %w", api.ErrNotSupported)
}
