// File: store/sqlite.go
// Author: momentics <momentics@gmail.com>

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/momentics/hioload-sql/api"
)

// SQLite is a catalog backed by a SQLite database file.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: empty path: %w", api.ErrInvalidArgument)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open %q: %w", path, err)
	}
	// The event loop is the only caller; one connection keeps :memory:
	// databases coherent.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping %q: %w", path, err)
	}
	return &SQLite{db: db, path: path}, nil
}

// Path returns the database path.
func (s *SQLite) Path() string { return s.path }

// Exec runs a statement, used to load schema and data.
func (s *SQLite) Exec(ctx context.Context, stmt string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("sqlite exec: %w", err)
	}
	return nil
}

// Tables lists user tables in name order.
func (s *SQLite) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list tables: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite list tables: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Table loads the named table's schema and rows, or api.ErrNotFound.
func (s *SQLite) Table(ctx context.Context, name string) (*Table, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("sqlite lookup %q: %w", name, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("table %q: %w", name, api.ErrNotFound)
	}

	t := &Table{Name: name, PK: -1}
	if err := s.loadColumns(ctx, t); err != nil {
		return nil, err
	}
	if err := s.loadRows(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLite) loadColumns(ctx context.Context, t *Table) error {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(t.Name)+")")
	if err != nil {
		return fmt.Errorf("sqlite table_info %q: %w", t.Name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid      int
			name     string
			declType string
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("sqlite table_info %q: %w", t.Name, err)
		}
		if pk == 1 {
			t.PK = len(t.Columns)
		}
		t.Columns = append(t.Columns, Column{Name: name, Type: TypeName(declType)})
	}
	return rows.Err()
}

func (s *SQLite) loadRows(ctx context.Context, t *Table) error {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(t.Name))
	if err != nil {
		return fmt.Errorf("sqlite select %q: %w", t.Name, err)
	}
	defer rows.Close()
	n := len(t.Columns)
	for rows.Next() {
		vals := make([]any, n)
		ptrs := make([]any, n)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("sqlite scan %q: %w", t.Name, err)
		}
		for i, v := range vals {
			vals[i] = normalize(v, t.Columns[i].Type)
		}
		t.Rows = append(t.Rows, vals)
	}
	return rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// TypeName maps a declared SQLite column type to a value type name in the
// order of SQLite's affinity rules. A column with no declared type has BLOB
// affinity. Types that fall through to NUMERIC affinity keep their declared
// name in lower case.
func TypeName(declType string) string {
	d := strings.ToUpper(strings.TrimSpace(declType))
	switch {
	case strings.Contains(d, "INT"):
		return "int"
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return "str"
	case strings.Contains(d, "BLOB"), d == "":
		return "bytes"
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"):
		return "float"
	default:
		return strings.ToLower(declType)
	}
}

func normalize(v any, typ string) any {
	switch x := v.(type) {
	case []byte:
		if typ == "bytes" {
			return x
		}
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return v
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
