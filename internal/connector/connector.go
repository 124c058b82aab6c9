// Package connector defines the minimal database connector port the
// core consumes (spec §6); the per-dialect adapters live in the mysql,
// postgres and sqlite subpackages.
// Connection/credential loading itself is an external concern; this
// package only describes the shape the orchestrator depends on.
package connector

import "context"

// Rows is the minimal cursor surface the core needs from a query result.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Err() error
	Close() error
}

// Stmt is a prepared statement bound to one Connector.
type Stmt interface {
	Execute(ctx context.Context, args ...any) (RowsAffected int64, err error)
	Close() error
}

// Tx is a connector-scoped transaction.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Commit() error
	Rollback() error
}

// Connector is the consumed port (spec §6): exec, query, prepare,
// begin/commit/rollback, and a driver name used to select dialect
// behavior. Implementations wrap database/sql for a specific driver.
type Connector interface {
	DriverName() string
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Prepare(ctx context.Context, sql string) (Stmt, error)
	Begin(ctx context.Context) (Tx, error)
	Close() error
}
