// Package metrics provides Prometheus metrics for migration runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for one process. A single
// instance is shared across every migration run in that process.
type Metrics struct {
	MigrationsTotal    *prometheus.CounterVec
	MigrationDuration  *prometheus.HistogramVec
	MigrationsInFlight prometheus.Gauge

	TablesProcessed *prometheus.CounterVec
	TableDuration   *prometheus.HistogramVec

	DDLStatementsExecuted *prometheus.CounterVec
	DDLErrors             *prometheus.CounterVec

	RowsCopied    *prometheus.CounterVec
	ChunksCopied  *prometheus.CounterVec
	DataErrors    *prometheus.CounterVec
	CopyLatency   *prometheus.HistogramVec

	ValidationFindings *prometheus.CounterVec

	RollbacksTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.MigrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbmigrate_migrations_total",
			Help: "Total number of migration runs by outcome",
		},
		[]string{"source_dialect", "target_dialect", "outcome"},
	)

	m.MigrationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dbmigrate_migration_duration_seconds",
			Help:    "Total migration run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"source_dialect", "target_dialect"},
	)

	m.MigrationsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dbmigrate_migrations_in_flight",
			Help: "Number of migration runs currently executing",
		},
	)

	m.TablesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbmigrate_tables_processed_total",
			Help: "Total number of tables processed by outcome",
		},
		[]string{"outcome"},
	)

	m.TableDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dbmigrate_table_duration_seconds",
			Help:    "Per-table processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	m.DDLStatementsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbmigrate_ddl_statements_executed_total",
			Help: "Total number of DDL statements executed against the target",
		},
		[]string{"table"},
	)

	m.DDLErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbmigrate_ddl_errors_total",
			Help: "Total number of DDL execution errors",
		},
		[]string{"table"},
	)

	m.RowsCopied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbmigrate_rows_copied_total",
			Help: "Total number of rows copied to the target",
		},
		[]string{"table"},
	)

	m.ChunksCopied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbmigrate_chunks_copied_total",
			Help: "Total number of data chunks copied to the target",
		},
		[]string{"table"},
	)

	m.DataErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbmigrate_data_errors_total",
			Help: "Total number of row or chunk copy errors",
		},
		[]string{"table"},
	)

	m.CopyLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dbmigrate_chunk_copy_latency_seconds",
			Help:    "Per-chunk copy latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	m.ValidationFindings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbmigrate_validation_findings_total",
			Help: "Total number of validator findings by phase and severity",
		},
		[]string{"phase", "severity"},
	)

	m.RollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbmigrate_rollbacks_total",
			Help: "Total number of rollback points created or restored",
		},
		[]string{"action", "outcome"},
	)

	m.registry.MustRegister(
		m.MigrationsTotal,
		m.MigrationDuration,
		m.MigrationsInFlight,
		m.TablesProcessed,
		m.TableDuration,
		m.DDLStatementsExecuted,
		m.DDLErrors,
		m.RowsCopied,
		m.ChunksCopied,
		m.DataErrors,
		m.CopyLatency,
		m.ValidationFindings,
		m.RollbacksTotal,
	)

	m.registry.MustRegister(prometheus.NewGoCollector())
	m.registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveTable records the outcome and duration of one table's
// schema-phase processing.
func (m *Metrics) ObserveTable(phase string, d time.Duration, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.TablesProcessed.WithLabelValues(outcome).Inc()
	m.TableDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveChunk records one data-migration chunk's outcome.
func (m *Metrics) ObserveChunk(table string, rows int64, d time.Duration, errored bool) {
	m.ChunksCopied.WithLabelValues(table).Inc()
	m.RowsCopied.WithLabelValues(table).Add(float64(rows))
	m.CopyLatency.WithLabelValues(table).Observe(d.Seconds())
	if errored {
		m.DataErrors.WithLabelValues(table).Inc()
	}
}
