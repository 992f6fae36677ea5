// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Client-side message reader.

package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/momentics/hioload-sql/api"
)

// Scanner reads terminator-delimited messages from a stream. Unlike the
// server, a client treats the first terminator it sees as the end of a
// message, wherever it falls inside a read.
type Scanner struct {
	br  *bufio.Reader
	max int
	buf bytes.Buffer
}

// NewScanner wraps r. max <= 0 selects DefaultMaxMessage.
func NewScanner(r io.Reader, max int) *Scanner {
	if max <= 0 {
		max = DefaultMaxMessage
	}
	return &Scanner{br: bufio.NewReader(r), max: max}
}

// Next returns the payload of the next message without its terminator.
// io.EOF is returned only when the stream ends cleanly between messages.
func (s *Scanner) Next() (string, error) {
	s.buf.Reset()
	for {
		part, err := s.br.ReadSlice(Terminator)
		if s.buf.Len()+len(part) > s.max+1 {
			return "", fmt.Errorf("read message: %w", api.ErrMessageTooLarge)
		}
		s.buf.Write(part)
		switch err {
		case nil:
			return Strip(s.buf.Bytes()), nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if s.buf.Len() == 0 {
				return "", io.EOF
			}
			return "", fmt.Errorf("read message: %w", io.ErrUnexpectedEOF)
		default:
			return "", fmt.Errorf("read message: %w", err)
		}
	}
}
