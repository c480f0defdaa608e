// Package all wires all built-in storage backends into the storage factory.
//
// Importing it for side effects makes these kinds available to storage.New:
//
//   - "sqlite"   (taskstats/internal/storage/sqlite)
//   - "postgres" (taskstats/internal/storage/postgres)
//   - "mysql"    (taskstats/internal/storage/mysql)
//   - "mssql"    (taskstats/internal/storage/mssql)
//
// A binary that needs only a subset can import the backend packages directly.
package all

import (
	_ "taskstats/internal/storage/mssql"
	_ "taskstats/internal/storage/mysql"
	_ "taskstats/internal/storage/postgres"
	_ "taskstats/internal/storage/sqlite"
)
