//go:build linux

package tcp

import "golang.org/x/sys/unix"

// sendFlags suppresses SIGPIPE on writes to a reset peer.
const sendFlags = unix.MSG_NOSIGNAL
