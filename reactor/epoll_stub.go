//go:build !linux

// File: reactor/epoll_stub.go
// Author: momentics <momentics@gmail.com>
//
// epoll is Linux only.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-sql/api"
)

// NewEpoll returns an error on platforms without epoll.
func NewEpoll() (api.Multiplexer, error) {
	return nil, fmt.Errorf("reactor: epoll: %w", api.ErrNotSupported)
}
