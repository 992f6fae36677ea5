// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral multiplexer factory.

package reactor

import (
	"fmt"
	"strings"
	"time"

	"github.com/momentics/hioload-sql/api"
)

// Multiplexer kinds accepted by New.
const (
	KindPoll  = "poll"
	KindEpoll = "epoll"
)

// New constructs the multiplexer named by kind. An empty kind selects poll.
func New(kind string) (api.Multiplexer, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindPoll:
		return NewPoll()
	case KindEpoll:
		return NewEpoll()
	default:
		return nil, fmt.Errorf("reactor: unknown multiplexer %q: %w", kind, api.ErrInvalidArgument)
	}
}

// timeoutMillis converts a wait timeout for poll(2)/epoll_wait(2).
// Negative means block forever; sub-millisecond positive values round up.
func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	return int(ms)
}
