// Package config provides configuration management for the migration tool.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dbmigrate/dbmigrate/internal/migrator"
	"github.com/dbmigrate/dbmigrate/internal/transformer"
)

// Config is the top-level configuration for one migration run.
type Config struct {
	Source    ConnectionConfig `yaml:"source"`
	Target    ConnectionConfig `yaml:"target"`
	Migration MigrationConfig  `yaml:"migration"`
	Logging   LoggingConfig    `yaml:"logging"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

// ConnectionConfig describes one side of a migration.
type ConnectionConfig struct {
	Dialect         string `yaml:"dialect"` // mysql, postgresql, sqlite
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Database        string `yaml:"database"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"ssl_mode"` // PostgreSQL: disable, require, verify-full
	TLS             string `yaml:"tls"`      // MySQL: true, false, skip-verify, preferred
	Path            string `yaml:"path"`     // SQLite file path
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
}

// MigrationConfig is the normative options map (spec §6) in YAML form.
type MigrationConfig struct {
	IncludeData             bool     `yaml:"include_data"`
	IncludeIndexes          bool     `yaml:"include_indexes"`
	IncludeConstraints      bool     `yaml:"include_constraints"`
	IncludeDropStatements   bool     `yaml:"include_drop_statements"`
	ChunkSize               int      `yaml:"chunk_size"`
	HandleConflicts         string   `yaml:"handle_conflicts"` // skip, update, error
	ValidateBeforeMigration bool     `yaml:"validate_before_migration"`
	ValidateAfterMigration  bool     `yaml:"validate_after_migration"`
	CreateRollbackPoint     bool     `yaml:"create_rollback_point"`
	StopOnError             bool     `yaml:"stop_on_error"`
	ExcludeTables           []string `yaml:"exclude_tables"`
	IncludeTables           []string `yaml:"include_tables"`

	// ColumnMapping is per table: table name -> (source column -> target column).
	ColumnMapping map[string]map[string]string `yaml:"column_mapping"`

	FulltextStrategy             string   `yaml:"fulltext_strategy"` // convert, remove
	PostgreSQLLanguage           string   `yaml:"postgresql_language"`
	PostgreSQLWeights            []string `yaml:"postgresql_weights"`
	SQLiteFTSVersion             string   `yaml:"sqlite_fts_version"`
	ExecutePostTransformActions bool     `yaml:"execute_post_transform_actions"`
	PostgreSQLGinIndexSuffix     string   `yaml:"postgresql_gin_index_suffix"`
	SQLiteFTSTableSuffix         string   `yaml:"sqlite_fts_table_suffix"`
	GeneratedColumnSuffix        string   `yaml:"generated_column_suffix"`
	EnumConversion               string   `yaml:"enum_conversion"` // text_with_check, native_pg_enum

	DryRun bool `yaml:"dry_run"`
}

// LoggingConfig controls slog output and optional file rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // json, text
	File       string `yaml:"file"`   // empty disables file logging
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// DefaultConfig returns a configuration with the normative defaults
// from spec §6.
func DefaultConfig() *Config {
	return &Config{
		Migration: MigrationConfig{
			IncludeData:                  true,
			IncludeIndexes:               true,
			IncludeConstraints:           true,
			IncludeDropStatements:        false,
			ChunkSize:                    1000,
			HandleConflicts:              string(migrator.ConflictUpdate),
			ValidateBeforeMigration:      true,
			ValidateAfterMigration:       true,
			CreateRollbackPoint:          true,
			StopOnError:                  true,
			FulltextStrategy:             string(transformer.FulltextConvert),
			PostgreSQLLanguage:           "english",
			PostgreSQLWeights:            []string{"A", "B", "C", "D"},
			SQLiteFTSVersion:             "fts5",
			ExecutePostTransformActions: true,
			PostgreSQLGinIndexSuffix:     "_gin",
			SQLiteFTSTableSuffix:         "_fts",
			GeneratedColumnSuffix:        "_search_vector",
			EnumConversion:               string(transformer.EnumTextWithCheck),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Host: "0.0.0.0",
			Port: 9110,
		},
	}
}

// Load loads configuration from a YAML file and environment variables.
// Environment variables override file configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		// #nosec G304 -- path is a command-line argument, user-controlled input is expected
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	applyConnOverrides("DBMIGRATE_SOURCE", &c.Source)
	applyConnOverrides("DBMIGRATE_TARGET", &c.Target)

	if v := os.Getenv("DBMIGRATE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DBMIGRATE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("DBMIGRATE_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Migration.ChunkSize = n
		}
	}
	if v := os.Getenv("DBMIGRATE_HANDLE_CONFLICTS"); v != "" {
		c.Migration.HandleConflicts = v
	}
	if v := os.Getenv("DBMIGRATE_DRY_RUN"); v != "" {
		c.Migration.DryRun = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("DBMIGRATE_METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
}

func applyConnOverrides(prefix string, c *ConnectionConfig) {
	if v := os.Getenv(prefix + "_DIALECT"); v != "" {
		c.Dialect = v
	}
	if v := os.Getenv(prefix + "_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv(prefix + "_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := os.Getenv(prefix + "_DATABASE"); v != "" {
		c.Database = v
	}
	if v := os.Getenv(prefix + "_USER"); v != "" {
		c.User = v
	}
	if v := os.Getenv(prefix + "_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv(prefix + "_PATH"); v != "" {
		c.Path = v
	}
}

var validDialects = map[string]bool{"mysql": true, "postgresql": true, "sqlite": true}
var validConflictModes = map[string]bool{"skip": true, "update": true, "error": true}
var validFulltextStrategies = map[string]bool{"convert": true, "remove": true}
var validEnumConversions = map[string]bool{"text_with_check": true, "native_pg_enum": true}

// Validate checks structural correctness; it does not open any connection.
func (c *Config) Validate() error {
	if err := validateConn("source", c.Source); err != nil {
		return err
	}
	if err := validateConn("target", c.Target); err != nil {
		return err
	}
	if c.Source.Dialect != "" && c.Target.Dialect != "" && c.Source.Dialect == c.Target.Dialect {
		return fmt.Errorf("source and target dialect are both %q; same-to-same migration is not supported", c.Source.Dialect)
	}
	if c.Migration.ChunkSize < 0 {
		return fmt.Errorf("invalid chunk_size: %d", c.Migration.ChunkSize)
	}
	if c.Migration.HandleConflicts != "" && !validConflictModes[c.Migration.HandleConflicts] {
		return fmt.Errorf("invalid handle_conflicts: %s", c.Migration.HandleConflicts)
	}
	if c.Migration.FulltextStrategy != "" && !validFulltextStrategies[c.Migration.FulltextStrategy] {
		return fmt.Errorf("invalid fulltext_strategy: %s", c.Migration.FulltextStrategy)
	}
	if c.Migration.EnumConversion != "" && !validEnumConversions[c.Migration.EnumConversion] {
		return fmt.Errorf("invalid enum_conversion: %s", c.Migration.EnumConversion)
	}
	return nil
}

func validateConn(role string, c ConnectionConfig) error {
	if c.Dialect == "" {
		return nil // allow partially-configured structs before CLI flags are merged in
	}
	if !validDialects[c.Dialect] {
		return fmt.Errorf("invalid %s dialect: %s", role, c.Dialect)
	}
	if c.Dialect == "sqlite" {
		if c.Path == "" {
			return fmt.Errorf("%s: sqlite requires a path", role)
		}
		return nil
	}
	if c.Database == "" {
		return fmt.Errorf("%s: database is required for %s", role, c.Dialect)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid %s port: %d", role, c.Port)
	}
	return nil
}

// DSN builds the driver-specific connection string for c.
func (c ConnectionConfig) DSN() (string, error) {
	switch c.Dialect {
	case "mysql":
		tls := c.TLS
		if tls == "" {
			tls = "false"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?tls=%s&parseTime=true", c.User, c.Password, c.Host, c.Port, c.Database, tls), nil
	case "postgresql":
		ssl := c.SSLMode
		if ssl == "" {
			ssl = "disable"
		}
		return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s", c.Host, c.Port, c.Database, c.User, c.Password, ssl), nil
	case "sqlite":
		return c.Path, nil
	default:
		return "", fmt.Errorf("unknown dialect: %s", c.Dialect)
	}
}
