package server

import (
	"net"

	"github.com/momentics/hioload-sql/api"
	"github.com/rs/xid"
)

// connState tracks where a connection is in its request/response cycle.
type connState int

const (
	stateAwaitingRequest connState = iota
	stateProcessing
	stateSendingResponse
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateAwaitingRequest:
		return "awaiting_request"
	case stateProcessing:
		return "processing"
	case stateSendingResponse:
		return "sending_response"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// conn is the per-socket record owned by the event loop.
type conn struct {
	id     xid.ID
	sock   api.Socket
	fd     int
	remote net.Addr
	state  connState

	inbound  []byte // request bytes received so far
	outbound []byte // unsent remainder of the framed response
	request  string // last complete request, kept for logging
	respSize int    // framed size of the response being sent
}

func newConn(sock api.Socket) *conn {
	return &conn{
		id:     xid.New(),
		sock:   sock,
		fd:     sock.Fd(),
		remote: sock.RemoteAddr(),
		state:  stateAwaitingRequest,
	}
}

func (c *conn) remoteString() string {
	if c.remote == nil {
		return ""
	}
	return c.remote.String()
}

// queue installs a complete framed response.
func (c *conn) queue(framed []byte) {
	c.outbound = framed
	c.respSize = len(framed)
	c.state = stateSendingResponse
}

// consume drops the n bytes the socket accepted and reports whether the
// response is fully sent.
func (c *conn) consume(n int) bool {
	c.outbound = c.outbound[n:]
	return len(c.outbound) == 0
}

// reset prepares the connection for its next request.
func (c *conn) reset() {
	c.inbound = c.inbound[:0]
	c.outbound = nil
	c.respSize = 0
	c.state = stateAwaitingRequest
}

func (c *conn) discard() {
	c.inbound = nil
	c.outbound = nil
	c.state = stateClosed
}
