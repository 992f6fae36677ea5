// File: api/handler.go
// Package api defines the QueryHandler interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "context"

// QueryHandler turns one complete request text into response text.
// It is called synchronously from the event loop and must return promptly.
type QueryHandler interface {
	HandleQuery(ctx context.Context, query string) (string, error)
}

// HandlerFunc adapts a plain function to QueryHandler.
type HandlerFunc func(ctx context.Context, query string) (string, error)

// HandleQuery calls f(ctx, query).
func (f HandlerFunc) HandleQuery(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}
