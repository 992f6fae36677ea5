//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"fmt"

	"github.com/momentics/hioload-sql/api"
)

// DefaultBacklog is the listen(2) backlog used when none is configured.
const DefaultBacklog = 5

// Listener is unavailable on this platform.
type Listener struct{ api.Listener }

// Listen returns an error for unsupported platforms.
func Listen(addr string, backlog int) (*Listener, error) {
	return nil, fmt.Errorf("tcp listen %q: %w", addr, api.ErrNotSupported)
}
