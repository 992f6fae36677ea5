// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness multiplexers driven by the server's
// event loop: a stateless poll(2) implementation and a level-triggered
// epoll(7) implementation for Linux.
package reactor
