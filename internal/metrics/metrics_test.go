package metrics_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbmigrate/dbmigrate/internal/metrics"
)

func TestObserveTableIncrementsCounters(t *testing.T) {
	m := metrics.New()
	m.ObserveTable("schema", 10*time.Millisecond, false)
	m.ObserveTable("schema", 5*time.Millisecond, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "dbmigrate_tables_processed_total")
	assert.Contains(t, body, "dbmigrate_table_duration_seconds")
}

func TestObserveChunkRecordsRowsAndErrors(t *testing.T) {
	m := metrics.New()
	m.ObserveChunk("accounts", 100, 2*time.Millisecond, false)
	m.ObserveChunk("accounts", 0, time.Millisecond, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "dbmigrate_rows_copied_total")
	assert.Contains(t, body, "dbmigrate_data_errors_total")
}
