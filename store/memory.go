// File: store/memory.go
// Author: momentics <momentics@gmail.com>

package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/momentics/hioload-sql/api"
)

// Memory is a concurrency-safe in-memory catalog.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewMemory returns a catalog holding copies of tables.
func NewMemory(tables ...Table) *Memory {
	m := &Memory{tables: make(map[string]*Table)}
	for i := range tables {
		m.Put(tables[i])
	}
	return m
}

// Put stores a copy of t, replacing any table with the same name.
func (m *Memory) Put(t Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[t.Name] = t.Clone()
}

// Table returns a copy of the named table or api.ErrNotFound.
func (m *Memory) Table(_ context.Context, name string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, api.ErrNotFound)
	}
	return t.Clone(), nil
}

// Tables lists table names in sorted order.
func (m *Memory) Tables(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
