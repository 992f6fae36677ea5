// File: query/render.go
// Author: momentics <momentics@gmail.com>

package query

import (
	"github.com/momentics/hioload-sql/store"
	"github.com/momentics/hioload-sql/tabular"
)

const pkMarker = " #PK#"

// Render formats t as "\n## name ##\n", the table, then a blank line.
// Rows whose values are all NULL are left out.
func Render(t *store.Table) string {
	headers := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		h := c.Name + " (" + c.Type + ")"
		if i == t.PK {
			h += pkMarker
		}
		headers[i] = h
	}
	rows := make([][]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		if allNull(r) {
			continue
		}
		rows = append(rows, r)
	}
	return "\n## " + t.Name + " ##\n" + tabular.Simple(headers, rows) + "\n\n"
}

func allNull(row []any) bool {
	for _, v := range row {
		if v != nil {
			return false
		}
	}
	return true
}
