package main

import (
	"fmt"
	"time"

	"github.com/dbmigrate/dbmigrate/internal/config"
	"github.com/dbmigrate/dbmigrate/internal/connector"
	"github.com/dbmigrate/dbmigrate/internal/connector/mysql"
	"github.com/dbmigrate/dbmigrate/internal/connector/postgres"
	"github.com/dbmigrate/dbmigrate/internal/connector/sqlite"
	"github.com/dbmigrate/dbmigrate/internal/dialect"
)

// openConnector builds the per-dialect connector.Connector for one
// side of a migration from its YAML/env configuration.
func openConnector(cfg config.ConnectionConfig) (connector.Connector, dialect.Name, error) {
	switch cfg.Dialect {
	case "mysql":
		c, err := mysql.Open(mysql.Config{
			Host: cfg.Host, Port: cfg.Port, Database: cfg.Database,
			Username: cfg.User, Password: cfg.Password, TLS: orDefaultStr(cfg.TLS, "false"),
			MaxOpenConns: cfg.MaxOpenConns, MaxIdleConns: cfg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
		})
		return c, dialect.MySQL, err
	case "postgresql":
		c, err := postgres.Open(postgres.Config{
			Host: cfg.Host, Port: cfg.Port, Database: cfg.Database,
			Username: cfg.User, Password: cfg.Password, SSLMode: orDefaultStr(cfg.SSLMode, "disable"),
			MaxOpenConns: cfg.MaxOpenConns, MaxIdleConns: cfg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
		})
		return c, dialect.PostgreSQL, err
	case "sqlite":
		c, err := sqlite.Open(sqlite.Config{Path: cfg.Path, ForeignKeys: true})
		return c, dialect.SQLite, err
	default:
		return nil, "", fmt.Errorf("unknown dialect: %s", cfg.Dialect)
	}
}

func orDefaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
