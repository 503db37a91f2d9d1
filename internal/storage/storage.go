// Package storage holds the backend-agnostic contract for cell sinks.
//
// A sink receives flattened rows in long format, one tuple per non-empty cell:
// (run_id, row_num, stream, column_name, value). Backends register a factory
// at init time; callers open one with New by kind and never import the
// backend directly.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// CellColumns is the column order of every cell sink table.
var CellColumns = []string{"run_id", "row_num", "stream", "column_name", "value"}

// DefaultTable is the table used when Config.Table is empty.
const DefaultTable = "flattened_cells"

// Config selects and configures a backend.
type Config struct {
	Kind    string   // "sqlite", "postgres"
	DSN     string   // backend connection string
	Table   string   // destination table, optionally schema-qualified
	Columns []string // defaults to CellColumns
}

// Repository is implemented by every backend.
type Repository interface {
	// CopyFrom bulk-inserts rows aligned to columns and reports how many
	// rows were written.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	// EnsureTable creates the configured cell table when missing.
	EnsureTable(ctx context.Context) error
	Close()
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. A later registration for
// the same kind replaces the earlier one.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if len(cfg.Columns) == 0 {
		cfg.Columns = CellColumns
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
