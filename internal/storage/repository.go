// Package storage contains the storage-agnostic contract for persisting task
// records and a small factory that backends register with at init time.
//
// Typical wiring:
//
//	import _ "taskstats/internal/storage/all" // enable every backend
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: "tasks.db", Table: "employee_tasks"})
//	if err != nil { ... }
//	defer repo.Close()
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"taskstats/internal/schema"
)

var (
	// ErrNotFound is returned when a task id does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("storage: unique constraint violated")
)

// DefaultTable is used when Config.Table is empty.
const DefaultTable = "employee_tasks"

// Repository persists task records.
type Repository interface {
	// EnsureSchema creates the table and its unique constraints if missing.
	EnsureSchema(ctx context.Context) error

	// InsertTasks writes all tasks inside a single transaction. Rows that
	// collide with an already persisted unique key are skipped silently. It
	// returns the number of rows actually inserted; on error nothing is
	// committed.
	InsertTasks(ctx context.Context, tasks []schema.TaskRecord) (int64, error)

	// ListTasks returns every stored task ordered by id.
	ListTasks(ctx context.Context) ([]schema.TaskRecord, error)

	GetTask(ctx context.Context, id int64) (schema.TaskRecord, error)

	// UpdateTask replaces every column of the task with t.ID.
	UpdateTask(ctx context.Context, t schema.TaskRecord) error

	DeleteTask(ctx context.Context, id int64) error

	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind  string // "sqlite", "postgres", "mysql", "mssql"
	DSN   string
	Table string
}

// TableName returns the configured table or DefaultTable.
func (c Config) TableName() string {
	if c.Table == "" {
		return DefaultTable
	}
	return c.Table
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
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
