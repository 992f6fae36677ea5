// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-sql.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrPeerClosed      = errors.New("peer closed connection")
	ErrWouldBlock      = errors.New("operation would block")
	ErrSocketException = errors.New("socket exception")
	ErrListenerFailed  = errors.New("listening socket failed")
	ErrClosed          = errors.New("use of closed resource")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotSupported    = errors.New("operation not supported")
	ErrNotFound        = errors.New("resource not found")
	ErrMessageTooLarge = errors.New("message exceeds size limit")
	ErrHandlerPanicked = errors.New("query handler panicked")
	ErrAlreadyRunning  = errors.New("server already running")
)

// ErrorCode classifies a structured Error.
type ErrorCode int

const (
	ErrCodeSocket  ErrorCode = iota + 1 // client socket I/O
	ErrCodeAccept                       // listener accept
	ErrCodeHandler                      // query handler failure
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeSocket:
		return "socket"
	case ErrCodeAccept:
		return "accept"
	case ErrCodeHandler:
		return "handler"
	default:
		return "unknown"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// WrapError creates a structured error around cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf returns the code of the first structured Error in err's chain,
// or 0 when there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// FatalLoopError is returned by the event loop when an error escapes an
// iteration and the server has to stop.
type FatalLoopError struct {
	Op  string // "poll", "accept", "handle", "listener"
	Err error
}

func (e *FatalLoopError) Error() string {
	return fmt.Sprintf("event loop %s: %v", e.Op, e.Err)
}

func (e *FatalLoopError) Unwrap() error { return e.Err }

// IsFatal reports whether err stopped the event loop.
func IsFatal(err error) bool {
	var fe *FatalLoopError
	return errors.As(err, &fe)
}
