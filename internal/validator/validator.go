// Package validator runs the pre- and post-migration compatibility and
// integrity checks (spec §4.H). It never mutates a source table and
// only ever touches the target through a disposable scratch table used
// to probe CREATE TABLE permission.
package validator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dbmigrate/dbmigrate/internal/connector"
	"github.com/dbmigrate/dbmigrate/internal/dialect"
	"github.com/dbmigrate/dbmigrate/internal/errs"
	"github.com/dbmigrate/dbmigrate/internal/schema"
)

// Severity distinguishes a blocking finding from an informational one.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one compatibility or integrity observation.
type Finding struct {
	Severity Severity
	Table    string
	Column   string
	Message  string
}

// Report aggregates the findings of one validation pass.
type Report struct {
	Findings []Finding
}

func (r *Report) add(sev Severity, table, column, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{
		Severity: sev, Table: table, Column: column,
		Message: fmt.Sprintf(format, args...),
	})
}

// HasErrors reports whether any finding is error-severity.
func (r Report) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity findings.
func (r Report) Errors() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			out = append(out, f)
		}
	}
	return out
}

// RowCountThreshold is the row count above which a table is flagged as
// very large (spec: ">1M rows -> warning").
const RowCountThreshold = 1_000_000

// SampleSize bounds PostMigration's sample-data probe.
const SampleSize = 20

// CheckDialectPair rejects unsupported source/target combinations. The
// spec leaves same-to-same as an open question and resolves it to
// rejection: a migration tool re-reading and re-writing a schema into
// the same dialect has no transformation work to do and is almost
// always an invocation mistake.
func CheckDialectPair(src, dst dialect.Name) error {
	if src == dst {
		return &errs.ValidationError{Reason: fmt.Sprintf("source and target dialect are both %q; same-to-same migration is not supported", src)}
	}
	switch dst {
	case dialect.MySQL, dialect.PostgreSQL, dialect.SQLite:
	default:
		return &errs.ValidationError{Reason: fmt.Sprintf("unknown target dialect %q", dst)}
	}
	switch src {
	case dialect.MySQL, dialect.PostgreSQL, dialect.SQLite:
	default:
		return &errs.ValidationError{Reason: fmt.Sprintf("unknown source dialect %q", src)}
	}
	return nil
}

// probeConnectivity runs a trivial query to confirm the connection is alive.
func probeConnectivity(ctx context.Context, conn connector.Connector, name dialect.Name) error {
	rows, err := conn.Query(ctx, "SELECT 1")
	if err != nil {
		return &errs.ConnectionError{Dialect: string(name), Err: err}
	}
	defer rows.Close()
	return nil
}

// probePermission creates and drops a uniquely named scratch table on
// the target, confirming CREATE TABLE/DROP TABLE permission without
// touching any real schema object.
func probePermission(ctx context.Context, conn connector.Connector, plat dialect.Platform) error {
	name := "dbmigrate_probe_" + uuid.NewString()[:8]
	create := fmt.Sprintf("CREATE TABLE %s (%s %s)", plat.Quote(name), plat.Quote("c"), plat.TypeName(dialect.TypeSpec{Type: schema.TypeInt}))
	if err := conn.Exec(ctx, create); err != nil {
		return &errs.PermissionError{Dialect: string(plat.Name()), Action: "CREATE TABLE", Err: err}
	}
	drop := fmt.Sprintf("DROP TABLE %s", plat.Quote(name))
	if err := conn.Exec(ctx, drop); err != nil {
		return &errs.PermissionError{Dialect: string(plat.Name()), Action: "DROP TABLE", Err: err}
	}
	return nil
}

// PreMigration runs the full pre-flight pass: connectivity, dialect
// pair support, target CREATE-TABLE permission, and a schema scan for
// reserved words, empty/oversized tables, and cross-dialect type
// incompatibilities.
func PreMigration(ctx context.Context, src, dst connector.Connector, srcPlat, dstPlat dialect.Platform, tables map[string]*schema.Table) (Report, error) {
	var report Report

	if err := CheckDialectPair(srcPlat.Name(), dstPlat.Name()); err != nil {
		return report, err
	}
	if err := probeConnectivity(ctx, src, srcPlat.Name()); err != nil {
		return report, err
	}
	if err := probeConnectivity(ctx, dst, dstPlat.Name()); err != nil {
		return report, err
	}
	if err := probePermission(ctx, dst, dstPlat); err != nil {
		return report, err
	}
	if len(tables) == 0 {
		return report, &errs.ValidationError{Reason: "source schema has no tables to migrate"}
	}

	for _, name := range sortedKeys(tables) {
		tbl := tables[name]
		scanTable(&report, tbl, dstPlat)
	}

	return report, nil
}

func scanTable(report *Report, tbl *schema.Table, dstPlat dialect.Platform) {
	if tbl.RowCount == 0 {
		report.add(SeverityWarning, tbl.Name, "", "table has no rows")
	}
	if tbl.RowCount > RowCountThreshold {
		report.add(SeverityWarning, tbl.Name, "", "table has %d rows; migration may take a long time", tbl.RowCount)
	}

	for _, col := range tbl.Columns() {
		if dstPlat.IsReserved(col.Name) {
			report.add(SeverityWarning, tbl.Name, col.Name, "column name %q is a reserved word on %s and will need quoting", col.Name, dstPlat.Name())
		}
		checkTypeCompatibility(report, tbl, col, dstPlat)
	}

	if pk := tbl.PrimaryIndex(); dstPlat.Name() == dialect.SQLite {
		for _, col := range tbl.Columns() {
			if col.AutoIncrement && (pk == nil || len(pk.ColumnNames()) != 1 || pk.ColumnNames()[0] != col.Name) {
				report.add(SeverityWarning, tbl.Name, col.Name,
					"auto-increment column %q is not a single-column primary key; SQLite requires INTEGER PRIMARY KEY and the flag will be dropped", col.Name)
			}
		}
	}

	for _, idx := range tbl.Indexes() {
		if idx.Kind == schema.IndexFulltext && dstPlat.Name() == dialect.SQLite {
			report.add(SeverityWarning, tbl.Name, "", "fulltext index %q will be converted to an FTS5 virtual table", idx.Name)
		}
		if idx.Kind == schema.IndexFulltext && dstPlat.Name() == dialect.PostgreSQL {
			report.add(SeverityWarning, tbl.Name, "", "fulltext index %q will be converted to a GIN index over tsvector", idx.Name)
		}
	}
}

func checkTypeCompatibility(report *Report, tbl *schema.Table, col *schema.Column, dstPlat dialect.Platform) {
	switch {
	case col.Unsigned && dstPlat.Name() != dialect.MySQL:
		report.add(SeverityWarning, tbl.Name, col.Name, "unsigned %s has no equivalent on %s; it will be widened and checked >= 0", col.Type, dstPlat.Name())
	case (col.Type == schema.TypeEnum || col.Type == schema.TypeSet) && dstPlat.Name() != dialect.MySQL:
		report.add(SeverityWarning, tbl.Name, col.Name, "%s column %q has no native equivalent on %s and will become text with a check constraint", col.Type, col.Name, dstPlat.Name())
	case col.Type == schema.TypeJSON && dstPlat.Name() == dialect.SQLite:
		report.add(SeverityWarning, tbl.Name, col.Name, "json column %q will become text with a json_valid check on SQLite", col.Name)
	}
}

// PostMigration compares the post-migration target schema and row
// counts against the source. Missing tables, missing columns, and row
// count mismatches are errors; a column count mismatch alone is only
// a warning, since extra generated or post-transform columns on the
// target are expected.
func PostMigration(source, target map[string]*schema.Table) Report {
	var report Report

	for _, name := range sortedKeys(source) {
		srcTbl := source[name]
		dstTbl, ok := target[name]
		if !ok {
			report.add(SeverityError, name, "", "table is missing from target")
			continue
		}

		if len(dstTbl.Columns()) != len(srcTbl.Columns()) {
			report.add(SeverityWarning, name, "", "column count mismatch: source has %d, target has %d", len(srcTbl.Columns()), len(dstTbl.Columns()))
		}
		for _, col := range srcTbl.Columns() {
			if !dstTbl.HasColumn(col.Name) {
				report.add(SeverityError, name, col.Name, "column is missing from target table")
			}
		}

		if srcTbl.RowCount != dstTbl.RowCount {
			report.add(SeverityError, name, "", "row count mismatch: source has %d, target has %d", srcTbl.RowCount, dstTbl.RowCount)
		}
	}
	return report
}

// SampleProbe pulls up to SampleSize rows from the source table and
// confirms each one is present, byte-for-byte on every shared column,
// in the target. Mismatches are warnings, not errors: the probe is a
// spot check, not a full reconciliation.
func SampleProbe(ctx context.Context, src, dst connector.Connector, srcPlat, dstPlat dialect.Platform, srcTbl, dstTbl *schema.Table) (Report, error) {
	var report Report

	shared := sharedColumnNames(srcTbl, dstTbl)
	if len(shared) == 0 {
		return report, nil
	}

	selectCols := quoteAll(shared, srcPlat)
	q := fmt.Sprintf("SELECT %s FROM %s LIMIT %d", joinComma(selectCols), srcPlat.Quote(srcTbl.Name), SampleSize)
	rows, err := src.Query(ctx, q)
	if err != nil {
		return report, &errs.ValidationError{Reason: fmt.Sprintf("sample probe: reading source %q: %v", srcTbl.Name, err)}
	}
	defer rows.Close()

	for rows.Next() {
		dest := make([]any, len(shared))
		ptrs := make([]any, len(shared))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return report, &errs.ValidationError{Reason: fmt.Sprintf("sample probe: scanning source %q: %v", srcTbl.Name, err)}
		}

		exists, err := rowExists(ctx, dst, dstPlat, dstTbl.Name, shared, dest)
		if err != nil {
			return report, &errs.ValidationError{Reason: fmt.Sprintf("sample probe: querying target %q: %v", dstTbl.Name, err)}
		}
		if !exists {
			report.add(SeverityWarning, dstTbl.Name, "", "a sampled source row was not found in the target on columns %v", shared)
		}
	}
	return report, rows.Err()
}

func rowExists(ctx context.Context, conn connector.Connector, plat dialect.Platform, table string, cols []string, values []any) (bool, error) {
	var clauses []string
	var args []any
	for i, c := range cols {
		if values[i] == nil {
			clauses = append(clauses, fmt.Sprintf("%s IS NULL", plat.Quote(c)))
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s = %s", plat.Quote(c), placeholder(plat, len(args))))
		args = append(args, values[i])
	}
	q := fmt.Sprintf("SELECT 1 FROM %s WHERE %s LIMIT 1", plat.Quote(table), joinAnd(clauses))
	rows, err := conn.Query(ctx, q, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

func placeholder(plat dialect.Platform, idx int) string {
	if plat.Name() == dialect.PostgreSQL {
		return fmt.Sprintf("$%d", idx+1)
	}
	return "?"
}

func sharedColumnNames(a, b *schema.Table) []string {
	var out []string
	for _, c := range a.Columns() {
		if b.HasColumn(c.Name) {
			out = append(out, c.Name)
		}
	}
	return out
}

func quoteAll(names []string, plat dialect.Platform) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = plat.Quote(n)
	}
	return out
}

func joinComma(parts []string) string { return joinWith(parts, ", ") }
func joinAnd(parts []string) string   { return joinWith(parts, " AND ") }

func joinWith(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

func sortedKeys(m map[string]*schema.Table) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
