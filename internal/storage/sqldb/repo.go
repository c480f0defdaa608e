// Package sqldb implements storage.Repository on top of database/sql. The
// SQL differences between backends (placeholders, quoting, DDL, how
// duplicate keys are skipped) live in a Dialect supplied by each backend
// package; the transaction handling and row mapping are shared here.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskstats/internal/schema"
	"taskstats/internal/storage"
)

// Dialect captures what differs between database/sql backends.
type Dialect struct {
	Name string

	// Bind returns the placeholder for the n-th (1-based) argument.
	Bind func(n int) string

	// Quote quotes a single identifier segment.
	Quote func(ident string) string

	// CreateTable returns the DDL statements that create table and its
	// unique constraints when absent.
	CreateTable func(table string) []string

	// InsertVerb starts an insert, e.g. "INSERT INTO" or "INSERT IGNORE INTO".
	InsertVerb string

	// InsertSuffix is appended to an insert, e.g. " ON CONFLICT DO NOTHING".
	InsertSuffix string

	// SkipConflicts makes InsertTasks drop rows whose insert fails with a
	// unique violation instead of aborting. Used where the SQL itself cannot
	// express "ignore conflicts".
	SkipConflicts bool

	// IsConflict reports whether err is a unique-constraint violation.
	IsConflict func(err error) bool
}

// Repository is a database/sql backed storage.Repository.
type Repository struct {
	db    *sql.DB
	table string
	d     Dialect
}

var _ storage.Repository = (*Repository)(nil)

// New wraps an open *sql.DB. Close closes db.
func New(db *sql.DB, table string, d Dialect) *Repository {
	if table == "" {
		table = storage.DefaultTable
	}
	return &Repository{db: db, table: table, d: d}
}

// DB exposes the underlying handle.
func (r *Repository) DB() *sql.DB { return r.db }

// Close closes the connection pool.
func (r *Repository) Close() { _ = r.db.Close() }

// EnsureSchema executes the dialect's CREATE TABLE statements.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range r.d.CreateTable(r.table) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: ensure schema: %w", r.d.Name, err)
		}
	}
	return nil
}

// InsertTasks inserts tasks in one transaction, skipping rows that collide
// with persisted unique keys.
func (r *Repository) InsertTasks(ctx context.Context, tasks []schema.TaskRecord) (int64, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", r.d.Name, err)
	}
	stmt, err := tx.PrepareContext(ctx, r.insertSQL())
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("%s: prepare insert: %w", r.d.Name, err)
	}
	defer stmt.Close()

	var inserted int64
	for _, t := range tasks {
		res, err := stmt.ExecContext(ctx, t.Args()...)
		if err != nil {
			if r.d.SkipConflicts && r.isConflict(err) {
				continue
			}
			_ = tx.Rollback()
			return 0, fmt.Errorf("%s: insert: %w", r.d.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("%s: rows affected: %w", r.d.Name, err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", r.d.Name, err)
	}
	return inserted, nil
}

// ListTasks returns every task ordered by id.
func (r *Repository) ListTasks(ctx context.Context) ([]schema.TaskRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.selectSQL()+" ORDER BY "+r.d.Quote(schema.ColID))
	if err != nil {
		return nil, fmt.Errorf("%s: list: %w", r.d.Name, err)
	}
	defer rows.Close()

	var out []schema.TaskRecord
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", r.d.Name, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: list: %w", r.d.Name, err)
	}
	return out, nil
}

// GetTask returns the task with id or storage.ErrNotFound.
func (r *Repository) GetTask(ctx context.Context, id int64) (schema.TaskRecord, error) {
	q := r.selectSQL() + " WHERE " + r.d.Quote(schema.ColID) + " = " + r.d.Bind(1)
	t, err := scanTask(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return schema.TaskRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return schema.TaskRecord{}, fmt.Errorf("%s: get: %w", r.d.Name, err)
	}
	return t, nil
}

// UpdateTask overwrites every column of t.ID.
func (r *Repository) UpdateTask(ctx context.Context, t schema.TaskRecord) error {
	sets := make([]string, len(schema.InsertColumns))
	for i, c := range schema.InsertColumns {
		sets[i] = r.d.Quote(c) + " = " + r.d.Bind(i+1)
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		r.fqTable(), strings.Join(sets, ", "), r.d.Quote(schema.ColID), r.d.Bind(len(sets)+1))

	res, err := r.db.ExecContext(ctx, q, append(t.Args(), t.ID)...)
	if err != nil {
		if r.isConflict(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("%s: update: %w", r.d.Name, err)
	}
	return requireRow(res, r.d.Name)
}

// DeleteTask removes the task with id.
func (r *Repository) DeleteTask(ctx context.Context, id int64) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", r.fqTable(), r.d.Quote(schema.ColID), r.d.Bind(1))
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("%s: delete: %w", r.d.Name, err)
	}
	return requireRow(res, r.d.Name)
}

func (r *Repository) insertSQL() string {
	binds := make([]string, len(schema.InsertColumns))
	for i := range binds {
		binds[i] = r.d.Bind(i + 1)
	}
	return fmt.Sprintf("%s %s (%s) VALUES (%s)%s",
		r.d.InsertVerb, r.fqTable(), strings.Join(r.quoteAll(schema.InsertColumns), ", "),
		strings.Join(binds, ", "), r.d.InsertSuffix)
}

func (r *Repository) selectSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(r.quoteAll(schema.SelectColumns), ", "), r.fqTable())
}

func (r *Repository) fqTable() string { return QuoteFQN(r.table, r.d.Quote) }

func (r *Repository) quoteAll(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = r.d.Quote(c)
	}
	return out
}

func (r *Repository) isConflict(err error) bool {
	return r.d.IsConflict != nil && r.d.IsConflict(err)
}

// QuoteFQN quotes a possibly schema-qualified name like "dbo.tasks" segment
// by segment.
func QuoteFQN(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(s rowScanner) (schema.TaskRecord, error) {
	var t schema.TaskRecord
	err := s.Scan(&t.ID, &t.EmployeeID, &t.EmployeeName, &t.Department, &t.TaskID,
		&t.TaskName, &t.HoursSpent, &t.Deadline, &t.Status)
	return t, err
}

func requireRow(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", name, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
