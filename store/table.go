// File: store/table.go
// Author: momentics <momentics@gmail.com>

// Package store provides the table catalogs the query handler reads from:
// a SQLite-backed catalog and an in-memory one.
package store

import "slices"

// Column describes one table column and its value type name
// ("int", "float", "str", "bytes", ...).
type Column struct {
	Name string
	Type string
}

// Table is a materialised table. PK is the primary key column index, or -1.
type Table struct {
	Name    string
	Columns []Column
	PK      int
	Rows    [][]any
}

// Clone returns a copy whose slices are independent of t.
func (t *Table) Clone() *Table {
	out := &Table{
		Name:    t.Name,
		Columns: slices.Clone(t.Columns),
		PK:      t.PK,
		Rows:    make([][]any, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = slices.Clone(r)
	}
	return out
}
