package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbmigrate/dbmigrate/internal/config"
)

func TestDefaultConfigMatchesNormativeDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.True(t, cfg.Migration.IncludeData)
	assert.Equal(t, 1000, cfg.Migration.ChunkSize)
	assert.Equal(t, "update", cfg.Migration.HandleConflicts)
	assert.True(t, cfg.Migration.ValidateBeforeMigration)
	assert.True(t, cfg.Migration.CreateRollbackPoint)
	assert.Equal(t, "convert", cfg.Migration.FulltextStrategy)
	assert.Equal(t, []string{"A", "B", "C", "D"}, cfg.Migration.PostgreSQLWeights)
	assert.NoError(t, cfg.Validate())
}

func TestLoadParsesYAMLAndExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
source:
  dialect: mysql
  host: db1
  port: 3306
  database: appdb
  user: root
  password: ${TEST_DB_PASSWORD}
target:
  dialect: postgresql
  host: db2
  port: 5432
  database: appdb
  user: postgres
migration:
  chunk_size: 500
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Source.Dialect)
	assert.Equal(t, "s3cret", cfg.Source.Password)
	assert.Equal(t, "postgresql", cfg.Target.Dialect)
	assert.Equal(t, 500, cfg.Migration.ChunkSize)
}

func TestLoadRejectsSameSourceAndTargetDialect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
source:
  dialect: mysql
  database: appdb
target:
  dialect: mysql
  database: appdb
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestEnvOverridesTakePrecedenceOverFile(t *testing.T) {
	t.Setenv("DBMIGRATE_SOURCE_HOST", "overridden-host")
	t.Setenv("DBMIGRATE_CHUNK_SIZE", "250")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
source:
  dialect: mysql
  host: original-host
  database: appdb
target:
  dialect: postgresql
  database: appdb
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "overridden-host", cfg.Source.Host)
	assert.Equal(t, 250, cfg.Migration.ChunkSize)
}

func TestValidateRejectsUnknownDialect(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Source.Dialect = "oracle"
	require.Error(t, cfg.Validate())
}

func TestValidateRequiresPathForSQLite(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Source.Dialect = "sqlite"
	require.Error(t, cfg.Validate())
	cfg.Source.Path = "/tmp/source.db"
	cfg.Target.Dialect = "mysql"
	cfg.Target.Database = "appdb"
	require.NoError(t, cfg.Validate())
}

func TestConnectionDSNPerDialect(t *testing.T) {
	mysql := config.ConnectionConfig{Dialect: "mysql", User: "root", Password: "pw", Host: "h", Port: 3306, Database: "appdb"}
	dsn, err := mysql.DSN()
	require.NoError(t, err)
	assert.Contains(t, dsn, "root:pw@tcp(h:3306)/appdb")

	sqlite := config.ConnectionConfig{Dialect: "sqlite", Path: "/tmp/app.db"}
	dsn, err = sqlite.DSN()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/app.db", dsn)

	_, err = config.ConnectionConfig{Dialect: "oracle"}.DSN()
	require.Error(t, err)
}
