// Package mssql implements a Microsoft SQL Server repository using
// go-mssqldb. Imports bulk copy into a session temp table (#tmp) and then
// move the rows that do not collide with persisted keys into the target
// table, all inside one transaction.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"taskstats/internal/schema"
	"taskstats/internal/storage"
	"taskstats/internal/storage/sqldb"
)

// SQL Server unique violation error numbers.
const (
	errUniqueConstraint = 2627
	errUniqueIndex      = 2601
)

// Repository is the SQL Server storage.Repository. Reads and single-row
// writes come from sqldb; InsertTasks is overridden with bulk copy.
type Repository struct {
	*sqldb.Repository
	table string
}

var _ storage.Repository = (*Repository)(nil)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// Dialect returns the SQL Server dialect.
func Dialect() sqldb.Dialect {
	return sqldb.Dialect{
		Name:          "mssql",
		Bind:          func(n int) string { return fmt.Sprintf("@p%d", n) },
		Quote:         msIdent,
		CreateTable:   createTable,
		InsertVerb:    "INSERT INTO",
		SkipConflicts: true,
		IsConflict:    isConflict,
	}
}

// Wrap builds a Repository over an open *sql.DB.
func Wrap(db *sql.DB, table string) *Repository {
	if table == "" {
		table = storage.DefaultTable
	}
	return &Repository{Repository: sqldb.New(db, table, Dialect()), table: table}
}

// NewRepository validates the DSN, opens the pool and pings it.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return Wrap(db, cfg.TableName()), nil
}

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, err := newRepository(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}

// InsertTasks bulk copies tasks into a temp table, then inserts the rows
// whose employee_id and employee_name are not yet persisted.
func (r *Repository) InsertTasks(ctx context.Context, tasks []schema.TaskRecord) (int64, error) {
	if len(tasks) == 0 {
		return 0, nil
	}
	tmp := tempTable(r.table)
	fq := sqldb.QuoteFQN(r.table, msIdent)
	cols := mapIdent(schema.InsertColumns)

	tx, err := r.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mssql: begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	// 1) Create temp table with the target's shape.
	create := fmt.Sprintf("SELECT TOP 0 %s INTO %s FROM %s",
		strings.Join(cols, ","), msIdent(tmp), fq)
	if _, err := tx.ExecContext(ctx, create); err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: create temp: %w", err)
	}

	// 2) Bulk copy.
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(tmp, mssql.BulkOptions{}, schema.InsertColumns...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: prepare bulk: %w", err)
	}
	for i, t := range tasks {
		if _, err := stmt.ExecContext(ctx, copyRow(t)...); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("mssql: bulk row %d: %w", i, err)
		}
	}
	_, err = stmt.ExecContext(ctx) // flush
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: bulk finalize: %w", err)
	}

	// 3) Move non-conflicting rows. employee_id uniqueness implies the
	// (employee_id, task_id) key, so two probes suffice.
	insert := fmt.Sprintf(`INSERT INTO %[1]s (%[2]s)
  SELECT %[3]s FROM %[4]s AS S
  WHERE NOT EXISTS (SELECT 1 FROM %[1]s AS T WHERE T.%[5]s = S.%[5]s OR T.%[6]s = S.%[6]s)`,
		fq, strings.Join(cols, ","), prefixAll("S.", cols), msIdent(tmp),
		msIdent(schema.ColEmployeeID), msIdent(schema.ColEmployeeName))
	res, err := tx.ExecContext(ctx, insert)
	if err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: insert phase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: rows affected: %w", err)
	}

	// Temp tables live as long as the pooled session.
	if _, err := tx.ExecContext(ctx, "DROP TABLE "+msIdent(tmp)); err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: drop temp: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit: %w", err)
	}
	return n, nil
}

// copyRow converts a task to bulk-copy values. Bulk copy wants time.Time for
// DATE columns.
func copyRow(t schema.TaskRecord) []any {
	row := t.Args()
	for i, v := range row {
		if d, ok := v.(schema.Date); ok {
			row[i] = d.Time
		}
	}
	return row
}

func tempTable(table string) string {
	return "#tmp_" + strings.ReplaceAll(table, ".", "_")
}

func createTable(table string) []string {
	fq := sqldb.QuoteFQN(table, msIdent)
	base := strings.ReplaceAll(table, ".", "_")
	lit := strings.ReplaceAll(table, "'", "''")
	return []string{fmt.Sprintf(`IF OBJECT_ID(N'%s', N'U') IS NULL
CREATE TABLE %s (
	[id] BIGINT IDENTITY(1,1) NOT NULL PRIMARY KEY,
	[employee_id] BIGINT NOT NULL,
	[employee_name] NVARCHAR(255) NOT NULL,
	[department] NVARCHAR(32) NOT NULL DEFAULT 'engineering',
	[task_id] BIGINT NOT NULL,
	[task_name] NVARCHAR(255) NOT NULL,
	[hours_spent] BIGINT NOT NULL,
	[deadline] DATE NOT NULL,
	[status] NVARCHAR(32) NOT NULL DEFAULT 'in progress',
	CONSTRAINT %s UNIQUE ([employee_id]),
	CONSTRAINT %s UNIQUE ([employee_name]),
	CONSTRAINT %s UNIQUE ([employee_id], [task_id])
)`, lit, fq,
		msIdent("uq_"+base+"_employee_id"),
		msIdent("uq_"+base+"_employee_name"),
		msIdent("uq_"+base+"_employee_task"),
	)}
}

func isConflict(err error) bool {
	var num int32
	var me mssql.Error
	var mp *mssql.Error
	switch {
	case errors.As(err, &me):
		num = me.Number
	case errors.As(err, &mp):
		num = mp.Number
	default:
		return false
	}
	return num == errUniqueConstraint || num == errUniqueIndex
}

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// mapIdent maps a list of column names to their bracket-quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = msIdent(c)
	}
	return out
}

func prefixAll(prefix string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + c
	}
	return strings.Join(out, ",")
}
