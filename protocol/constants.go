// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Wire protocol constants.

package protocol

const (
	// Terminator ends every request and every response on the wire.
	// ACK (0x06) never appears in the textual payloads the server exchanges.
	Terminator byte = 0x06

	// ExitCommand closes the connection instead of being handled as a query.
	ExitCommand = "exit"

	// DefaultMaxMessage bounds a single response read by Scanner.
	DefaultMaxMessage = 16 << 20
)
