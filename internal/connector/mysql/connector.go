// Package mysql adapts database/sql plus the go-sql-driver/mysql driver
// to the connector.Connector port.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/dbmigrate/dbmigrate/internal/connector"
)

// Config holds MySQL connection configuration.
type Config struct {
	Host            string
	Port            int
	Database        string
	Username        string
	Password        string
	TLS             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sane pool defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            3306,
		TLS:             "false",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DSN renders the go-sql-driver/mysql connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=%s&multiStatements=true",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.TLS,
	)
}

// Connector wraps a *sql.DB opened with the mysql driver.
type Connector struct {
	db *sql.DB
}

// Open dials the database and configures the pool from cfg.
func Open(cfg Config) (*Connector, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return &Connector{db: db}, nil
}

func (c *Connector) DriverName() string { return "mysql" }

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
