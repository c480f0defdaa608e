// Package sqlite implements the SQLite storage backend on the pure-Go
// modernc.org/sqlite driver. It is the default backend: a file path DSN is
// all it needs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"taskstats/internal/storage"
	"taskstats/internal/storage/sqldb"
)

// Dialect returns the SQLite dialect.
func Dialect() sqldb.Dialect {
	return sqldb.Dialect{
		Name:         "sqlite",
		Bind:         func(int) string { return "?" },
		Quote:        sqlIdent,
		CreateTable:  createTable,
		InsertVerb:   "INSERT INTO",
		InsertSuffix: " ON CONFLICT DO NOTHING",
		IsConflict:   isConflict,
	}
}

// Open opens a SQLite database and verifies the connection.
//
// DSN is passed directly to the driver; for example:
//
//	"tasks.db"
//	"file:tasks.db?_pragma=busy_timeout(5000)"
//	":memory:"
func Open(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection: writers serialize anyway, and a :memory: database
	// exists per connection.
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewRepository opens cfg.DSN and returns a ready repository.
func NewRepository(ctx context.Context, cfg storage.Config) (*sqldb.Repository, error) {
	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	return sqldb.New(db, cfg.TableName(), Dialect()), nil
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, err := NewRepository(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}

// sqlIdent quotes a single identifier for SQLite.
func sqlIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func createTable(table string) []string {
	q := sqldb.QuoteFQN(table, sqlIdent)
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"employee_id" INTEGER NOT NULL UNIQUE,
	"employee_name" TEXT NOT NULL UNIQUE,
	"department" TEXT NOT NULL DEFAULT 'engineering',
	"task_id" INTEGER NOT NULL,
	"task_name" TEXT NOT NULL,
	"hours_spent" INTEGER NOT NULL,
	"deadline" TEXT NOT NULL,
	"status" TEXT NOT NULL DEFAULT 'in progress',
	UNIQUE ("employee_id", "task_id")
)`, q)}
}

func isConflict(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// Extended result codes off: fall back to the message.
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	}
	return false
}
