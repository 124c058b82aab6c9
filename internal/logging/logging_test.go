package logging_test

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbmigrate/dbmigrate/internal/config"
	"github.com/dbmigrate/dbmigrate/internal/logging"
)

func TestNewDefaultsToInfoJSONOnStdout(t *testing.T) {
	logger := logging.New(config.LoggingConfig{})
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(nil, slog.LevelInfo))
	assert.False(t, logger.Enabled(nil, slog.LevelDebug))
}

func TestNewHonorsDebugLevel(t *testing.T) {
	logger := logging.New(config.LoggingConfig{Level: "debug"})
	assert.True(t, logger.Enabled(nil, slog.LevelDebug))
}

func TestNewWritesToRotatingFileWhenConfigured(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.log")
	logger := logging.New(config.LoggingConfig{File: path, Format: "text"})
	logger.Info("hello")
	assert.FileExists(t, path)
}
