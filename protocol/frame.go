// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Sentinel-byte framing for requests and responses.
//
// A message is complete once the most recently received chunk ends with
// Terminator. The server never scans earlier chunks for a terminator: a
// terminator that arrives mid-chunk does not complete the message.

package protocol

// Frame returns text followed by exactly one terminator.
func Frame(text string) []byte {
	out := make([]byte, 0, len(text)+1)
	out = append(out, text...)
	return append(out, Terminator)
}

// Complete reports whether chunk, the bytes returned by the latest read,
// finishes a message.
func Complete(chunk []byte) bool {
	return len(chunk) > 0 && chunk[len(chunk)-1] == Terminator
}

// Strip returns buf without its single trailing terminator, if present.
func Strip(buf []byte) string {
	if n := len(buf); n > 0 && buf[n-1] == Terminator {
		return string(buf[:n-1])
	}
	return string(buf)
}

// IsExit reports whether request is the connection-closing command.
func IsExit(request string) bool {
	return request == ExitCommand
}
