// Package postgres implements a Postgres repository using pgx v5. Imports
// COPY into a transaction-scoped temp table followed by an
// INSERT ... ON CONFLICT DO NOTHING into the target table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskstats/internal/schema"
	"taskstats/internal/storage"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Repository is a Postgres-backed storage.Repository.
type Repository struct {
	pool  *pgxpool.Pool
	table string
}

var _ storage.Repository = (*Repository)(nil)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// NewRepository opens a pgx pool for cfg.DSN.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repository{pool: pool, table: cfg.TableName()}, nil
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, err := newRepository(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}

// Close closes the pool.
func (r *Repository) Close() { r.pool.Close() }

// EnsureSchema creates the target table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createTableSQL(r.table)); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// InsertTasks copies tasks into a temp table and moves them into the target,
// skipping rows that collide with persisted unique keys.
func (r *Repository) InsertTasks(ctx context.Context, tasks []schema.TaskRecord) (int64, error) {
	if len(tasks) == 0 {
		return 0, nil
	}
	tmp := tempTable(r.table)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, createTempSQL(tmp, r.table)); err != nil {
		return 0, fmt.Errorf("postgres: create temp: %w", err)
	}

	rows := make([][]any, len(tasks))
	for i, t := range tasks {
		rows[i] = copyRow(t)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tmp}, schema.InsertColumns, pgx.CopyFromRows(rows)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("postgres: copy into temp: %s (%s)", pgErr.Detail, pgErr.SQLState())
		}
		return 0, fmt.Errorf("postgres: copy into temp: %w", err)
	}

	tag, err := tx.Exec(ctx, moveSQL(tmp, r.table))
	if err != nil {
		return 0, fmt.Errorf("postgres: insert phase: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListTasks returns every task ordered by id.
func (r *Repository) ListTasks(ctx context.Context) ([]schema.TaskRecord, error) {
	rows, err := r.pool.Query(ctx, selectSQL(r.table)+" ORDER BY "+pgIdent(schema.ColID))
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	defer rows.Close()

	var out []schema.TaskRecord
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	return out, nil
}

// GetTask returns the task with id or storage.ErrNotFound.
func (r *Repository) GetTask(ctx context.Context, id int64) (schema.TaskRecord, error) {
	q := selectSQL(r.table) + " WHERE " + pgIdent(schema.ColID) + " = $1"
	t, err := scanTask(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return schema.TaskRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return schema.TaskRecord{}, fmt.Errorf("postgres: get: %w", err)
	}
	return t, nil
}

// UpdateTask overwrites every column of t.ID.
func (r *Repository) UpdateTask(ctx context.Context, t schema.TaskRecord) error {
	tag, err := r.pool.Exec(ctx, updateSQL(r.table), append(copyRow(t), t.ID)...)
	if err != nil {
		if isConflict(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("postgres: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteTask removes the task with id.
func (r *Repository) DeleteTask(ctx context.Context, id int64) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", pgFQN(r.table), pgIdent(schema.ColID))
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("postgres: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// copyRow passes the deadline as time.Time so pgx encodes it as DATE.
func copyRow(t schema.TaskRecord) []any {
	row := t.Args()
	for i, v := range row {
		if d, ok := v.(schema.Date); ok {
			row[i] = d.Time
		}
	}
	return row
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (schema.TaskRecord, error) {
	var t schema.TaskRecord
	err := s.Scan(&t.ID, &t.EmployeeID, &t.EmployeeName, &t.Department, &t.TaskID,
		&t.TaskName, &t.HoursSpent, &t.Deadline, &t.Status)
	return t, err
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func tempTable(table string) string {
	return "tmp_" + strings.ReplaceAll(table, ".", "_")
}

func createTableSQL(table string) string {
	base := strings.ReplaceAll(table, ".", "_")
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	"id" BIGSERIAL PRIMARY KEY,
	"employee_id" BIGINT NOT NULL,
	"employee_name" VARCHAR(255) NOT NULL,
	"department" VARCHAR(32) NOT NULL DEFAULT 'engineering',
	"task_id" BIGINT NOT NULL,
	"task_name" VARCHAR(255) NOT NULL,
	"hours_spent" BIGINT NOT NULL,
	"deadline" DATE NOT NULL,
	"status" VARCHAR(32) NOT NULL DEFAULT 'in progress',
	CONSTRAINT %s UNIQUE ("employee_id"),
	CONSTRAINT %s UNIQUE ("employee_name"),
	CONSTRAINT %s UNIQUE ("employee_id", "task_id")
)`, pgFQN(table),
		pgIdent("uq_"+base+"_employee_id"),
		pgIdent("uq_"+base+"_employee_name"),
		pgIdent("uq_"+base+"_employee_task"))
}

func createTempSQL(tmp, table string) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s ON COMMIT DROP AS SELECT %s FROM %s WITH NO DATA",
		pgIdent(tmp), strings.Join(mapIdent(schema.InsertColumns), ","), pgFQN(table))
}

func moveSQL(tmp, table string) string {
	cols := strings.Join(mapIdent(schema.InsertColumns), ",")
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT DO NOTHING",
		pgFQN(table), cols, cols, pgIdent(tmp))
}

func selectSQL(table string) string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(mapIdent(schema.SelectColumns), ", "), pgFQN(table))
}

func updateSQL(table string) string {
	sets := make([]string, len(schema.InsertColumns))
	for i, c := range schema.InsertColumns {
		sets[i] = fmt.Sprintf("%s = $%d", pgIdent(c), i+1)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		pgFQN(table), strings.Join(sets, ", "), pgIdent(schema.ColID), len(sets)+1)
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.tasks" to
// "public"."tasks".
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
