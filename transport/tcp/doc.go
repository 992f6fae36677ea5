// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp implements the non-blocking TCP listening socket and client
// sockets driven by the server's readiness loop. All descriptors are in
// non-blocking mode; operations that cannot progress return api.ErrWouldBlock.
package tcp
