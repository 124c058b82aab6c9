// Package sqlite adapts database/sql plus the pure-Go ncruces/go-sqlite3
// driver to the connector.Connector port.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/dbmigrate/dbmigrate/internal/connector"
)

// Config holds SQLite connection configuration. SQLite has no
// network/auth surface, just a file path and a handful of pragmas.
type Config struct {
	Path string
	// ForeignKeys enables FK enforcement via PRAGMA foreign_keys=ON.
	ForeignKeys bool
}

// DefaultConfig enables foreign key enforcement, matching the
// recommended SQLite migration practice.
func DefaultConfig() Config {
	return Config{ForeignKeys: true}
}

func (c Config) dsn() string {
	if c.ForeignKeys {
		return c.Path + "?_pragma=foreign_keys(1)"
	}
	return c.Path
}

// Connector wraps a *sql.DB opened with the ncruces sqlite3 driver.
type Connector struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database file at cfg.Path.
func Open(cfg Config) (*Connector, error) {
	db, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// The ncruces driver serializes writers internally; a single
	// connection avoids SQLITE_BUSY under the orchestrator's
	// single-threaded-per-run model.
	db.SetMaxOpenConns(1)
	return &Connector{db: db}, nil
}

func (c *Connector) DriverName() string { return "sqlite" }

func (c *Connector) Exec(ctx context.Context, sqlStr string, args ...any) error {
	_, err := c.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (c *Connector) Query(ctx context.Context, sqlStr string, args ...any) (connector.Rows, error) {
	rows, err := c.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows}, nil
}

func (c *Connector) Prepare(ctx context.Context, sqlStr string) (connector.Stmt, error) {
	stmt, err := c.db.PrepareContext(ctx, sqlStr)
	if err != nil {
		return nil, err
	}
	return &sqlStmt{stmt}, nil
}

func (c *Connector) Begin(ctx context.Context) (connector.Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx}, nil
}

func (c *Connector) Close() error { return c.db.Close() }

type sqlRows struct{ *sql.Rows }

func (r *sqlRows) Err() error { return r.Rows.Err() }

type sqlStmt struct{ *sql.Stmt }

func (s *sqlStmt) Execute(ctx context.Context, args ...any) (int64, error) {
	res, err := s.Stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type sqlTx struct{ tx *sql.Tx }

func (t *sqlTx) Exec(ctx context.Context, sqlStr string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, sqlStr, args...)
	return err
}
func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }
