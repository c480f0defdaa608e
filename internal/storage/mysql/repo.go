// Package mysql implements the MySQL storage backend using
// github.com/go-sql-driver/mysql. Persisted-key conflicts are skipped with
// INSERT IGNORE.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"taskstats/internal/storage"
	"taskstats/internal/storage/sqldb"
)

// erDupEntry is MySQL's ER_DUP_ENTRY.
const erDupEntry = 1062

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// Dialect returns the MySQL dialect.
func Dialect() sqldb.Dialect {
	return sqldb.Dialect{
		Name:        "mysql",
		Bind:        func(int) string { return "?" },
		Quote:       quoteIdent,
		CreateTable: createTable,
		InsertVerb:  "INSERT IGNORE INTO",
		IsConflict:  isConflict,
	}
}

// NormalizeDSN parses dsn and forces the options the repository relies on:
// DATE columns scan as time.Time, and UPDATE reports matched rather than
// changed rows so an unchanged update is not mistaken for a missing id.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

// NewRepository opens and pings a MySQL connection pool.
func NewRepository(ctx context.Context, cfg storage.Config) (*sqldb.Repository, error) {
	dsn, err := NormalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return sqldb.New(db, cfg.TableName(), Dialect()), nil
}

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, err := newRepository(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}

func quoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func createTable(table string) []string {
	q := sqldb.QuoteFQN(table, quoteIdent)
	base := strings.ReplaceAll(table, ".", "_")
	return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n"+
		"\t`id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,\n"+
		"\t`employee_id` BIGINT NOT NULL,\n"+
		"\t`employee_name` VARCHAR(255) NOT NULL,\n"+
		"\t`department` VARCHAR(32) NOT NULL DEFAULT 'engineering',\n"+
		"\t`task_id` BIGINT NOT NULL,\n"+
		"\t`task_name` VARCHAR(255) NOT NULL,\n"+
		"\t`hours_spent` BIGINT NOT NULL,\n"+
		"\t`deadline` DATE NOT NULL,\n"+
		"\t`status` VARCHAR(32) NOT NULL DEFAULT 'in progress',\n"+
		"\tUNIQUE KEY %s (`employee_id`),\n"+
		"\tUNIQUE KEY %s (`employee_name`),\n"+
		"\tUNIQUE KEY %s (`employee_id`, `task_id`)\n"+
		") CHARACTER SET utf8mb4",
		q,
		quoteIdent("uq_"+base+"_employee_id"),
		quoteIdent("uq_"+base+"_employee_name"),
		quoteIdent("uq_"+base+"_employee_task"),
	)}
}

func isConflict(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == erDupEntry
}
