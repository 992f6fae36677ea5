// File: query/handler.go
// Package query answers "select * from <table>" requests from a table
// catalog and renders the result as a plain-text table.
// Author: momentics <momentics@gmail.com>

package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/momentics/hioload-sql/api"
	"github.com/momentics/hioload-sql/internal/logfields"
	"github.com/momentics/hioload-sql/store"
	"pkt.systems/pslog"
)

// Catalog looks tables up by name. Missing tables report api.ErrNotFound.
type Catalog interface {
	Table(ctx context.Context, name string) (*store.Table, error)
}

// Handler implements api.QueryHandler over a Catalog.
type Handler struct {
	catalog Catalog
	logger  pslog.Logger
}

var _ api.QueryHandler = (*Handler)(nil)

// NewHandler builds a handler. A nil logger disables logging.
func NewHandler(catalog Catalog, logger pslog.Logger) *Handler {
	return &Handler{
		catalog: catalog,
		logger:  logfields.WithSubsystem(logger, "query"),
	}
}

// HandleQuery resolves the table named by q and renders it. Unknown tables
// produce a message rather than an error.
func (h *Handler) HandleQuery(ctx context.Context, q string) (string, error) {
	name := TableName(q)
	t, err := h.catalog.Table(ctx, name)
	switch {
	case errors.Is(err, api.ErrNotFound):
		h.logger.Debug("query.unknown_table", "table", name)
		return Missing(name), nil
	case err != nil:
		return "", fmt.Errorf("query %q: %w", name, err)
	}
	h.logger.Debug("query.table", "table", name, "rows", len(t.Rows))
	return Render(t), nil
}

// TableName returns the text after the first "from" (any case), trimmed.
// Without a "from" the whole trimmed request is the name.
func TableName(q string) string {
	if i := indexFold(q, "from"); i >= 0 {
		return strings.TrimSpace(q[i+len("from"):])
	}
	return strings.TrimSpace(q)
}

// Missing is the response for a table that is not in the catalog.
func Missing(name string) string {
	return "\nTable '" + name + "' doesn't exist.\n\n"
}

// indexFold is an ASCII case-insensitive strings.Index. Byte offsets in s
// stay valid, which strings.ToLower does not guarantee.
func indexFold(s, sub string) int {
	n := len(sub)
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], sub) {
			return i
		}
	}
	return -1
}
