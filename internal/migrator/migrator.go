// Package migrator streams row data from a source table to a target
// table in fixed-size chunks, remapping columns and normalizing values
// for the destination dialect along the way (spec §4.G). It holds no
// schema ownership: callers pass a read-only source/target Table pair
// built elsewhere (extractor, transformer).
package migrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbmigrate/dbmigrate/internal/connector"
	"github.com/dbmigrate/dbmigrate/internal/dialect"
	"github.com/dbmigrate/dbmigrate/internal/errs"
	"github.com/dbmigrate/dbmigrate/internal/schema"
)

// ConflictMode selects the INSERT conflict strategy.
type ConflictMode string

const (
	ConflictSkip   ConflictMode = "skip"
	ConflictUpdate ConflictMode = "update"
	ConflictError  ConflictMode = "error"
)

// Options tunes a single table's copy.
type Options struct {
	ChunkSize       int
	HandleConflicts ConflictMode
	UseTransaction  bool

	// ColumnMapping renames source columns on the way to the target.
	// A mapping entry whose target does not name an existing target
	// column is an error; columns with no entry default to an
	// identity mapping and are dropped, with a warning, if the target
	// has no matching column.
	ColumnMapping map[string]string

	// RowTransform, if set, runs on every row (keyed by source column
	// name) before column remapping and normalization.
	RowTransform func(row map[string]any) (map[string]any, error)
}

// DefaultOptions matches the normative option defaults.
func DefaultOptions() Options {
	return Options{ChunkSize: 1000, HandleConflicts: ConflictUpdate, UseTransaction: true}
}

// TableResult summarizes one table's copy.
type TableResult struct {
	Table      string
	RowsCopied int64
	Warnings   []string
}

// Migrator copies data between two already-open connections.
type Migrator struct {
	Src     connector.Connector
	Dst     connector.Connector
	SrcPlat dialect.Platform
	DstPlat dialect.Platform
}

func New(src, dst connector.Connector, srcPlat, dstPlat dialect.Platform) *Migrator {
	return &Migrator{Src: src, Dst: dst, SrcPlat: srcPlat, DstPlat: dstPlat}
}

type columnPlan struct {
	srcName string
	dstName string
}

// CopyTable streams source into target in ChunkSize batches, ordered by
// primary key when one exists.
func (m *Migrator) CopyTable(ctx context.Context, source, target *schema.Table, opts Options) (TableResult, error) {
	res := TableResult{Table: target.Name}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}

	plan, warns, err := m.buildColumnPlan(source, target, opts.ColumnMapping)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, err
	}
	if len(plan) == 0 {
		return res, &errs.DataError{Table: target.Name, Err: fmt.Errorf("no columns to copy")}
	}

	total, err := m.rowCount(ctx, source.Name)
	if err != nil {
		return res, &errs.DataError{Table: target.Name, Err: err}
	}
	if total == 0 {
		return res, nil
	}

	insertSQL, conflictWarn := m.buildInsert(target, plan, opts.HandleConflicts)
	if conflictWarn != "" {
		res.Warnings = append(res.Warnings, conflictWarn)
	}

	srcCols := make([]string, len(plan))
	for i, p := range plan {
		srcCols[i] = p.srcName
	}
	orderBy := ""
	if idx := source.PrimaryIndex(); idx != nil {
		orderBy = " ORDER BY " + strings.Join(quoteAll(idx.ColumnNames(), m.SrcPlat), ", ")
	}

	selectBase := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(quoteAll(srcCols, m.SrcPlat), ", "), m.SrcPlat.Quote(source.Name))

	var copied int64
	for offset := int64(0); offset < total; offset += int64(opts.ChunkSize) {
		if err := ctx.Err(); err != nil {
			return res, &errs.CancelledError{}
		}
		chunkSQL := fmt.Sprintf("%s%s LIMIT %d OFFSET %d", selectBase, orderBy, opts.ChunkSize, offset)
		chunkIdx := int(offset / int64(opts.ChunkSize))
		n, rowWarns, err := m.copyChunk(ctx, chunkSQL, insertSQL, plan, target.Name, chunkIdx, offset, opts)
		res.Warnings = append(res.Warnings, rowWarns...)
		copied += n
		if err != nil {
			return res, err
		}
	}
	res.RowsCopied = copied
	return res, nil
}

// buildColumnPlan resolves the source→target column list, applying
// ColumnMapping and dropping generated columns (the target computes
// those itself).
func (m *Migrator) buildColumnPlan(source, target *schema.Table, mapping map[string]string) ([]columnPlan, []string, error) {
	var plan []columnPlan
	var warnings []string
	for _, c := range source.Columns() {
		if c.Generated {
			continue
		}
		dstName, mapped := mapping[c.Name]
		if !mapped {
			dstName = c.Name
		}
		tc, ok := target.Column(dstName)
		if !ok {
			if mapped {
				return nil, warnings, &errs.DataError{
					Table: target.Name,
					Err:   fmt.Errorf("column mapping %q -> %q: target column does not exist", c.Name, dstName),
				}
			}
			warnings = append(warnings, fmt.Sprintf("source column %q has no counterpart on target table %q, skipped", c.Name, target.Name))
			continue
		}
		if tc.Generated {
			continue
		}
		plan = append(plan, columnPlan{srcName: c.Name, dstName: dstName})
	}
	return plan, warnings, nil
}

func (m *Migrator) rowCount(ctx context.Context, table string) (int64, error) {
	rows, err := m.Src.Query(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", m.SrcPlat.Quote(table)))
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, nil
	}
	var n int64
	if err := rows.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// buildInsert constructs the INSERT template once per table, with the
// dialect-specific conflict clause for opts.HandleConflicts. When the
// target has no primary key, ON CONFLICT (PostgreSQL/SQLite) and MySQL's
// ON DUPLICATE KEY UPDATE degrade to plain INSERT with a warning; MySQL's
// INSERT IGNORE for skip needs no key and is emitted regardless.
func (m *Migrator) buildInsert(target *schema.Table, plan []columnPlan, mode ConflictMode) (string, string) {
	dstCols := make([]string, len(plan))
	for i, p := range plan {
		dstCols[i] = p.dstName
	}
	placeholders := make([]string, len(plan))
	for i := range plan {
		placeholders[i] = placeholder(m.DstPlat, i)
	}

	var pkCols []string
	if pk := target.PrimaryIndex(); pk != nil {
		pkCols = pk.ColumnNames()
	}

	verb := "INSERT INTO"
	conflictClause := ""
	var warn string

	switch m.DstPlat.Name() {
	case dialect.MySQL:
		switch mode {
		case ConflictSkip:
			verb = "INSERT IGNORE INTO"
		case ConflictUpdate:
			if len(pkCols) == 0 {
				warn = fmt.Sprintf("table %q has no primary key; conflict handling disabled", target.Name)
			} else if sets := updateAssignments(dstCols, m.DstPlat, "VALUES(%s)"); len(sets) > 0 {
				conflictClause = " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
			}
		}
	default: // PostgreSQL, SQLite
		if mode == ConflictSkip || mode == ConflictUpdate {
			if len(pkCols) == 0 {
				warn = fmt.Sprintf("table %q has no primary key; conflict handling disabled", target.Name)
			} else {
				pkQuoted := strings.Join(quoteAll(pkCols, m.DstPlat), ", ")
				if mode == ConflictSkip {
					conflictClause = fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", pkQuoted)
				} else if sets := updateAssignments(dstCols, m.DstPlat, "EXCLUDED.%s"); len(sets) > 0 {
					conflictClause = fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", pkQuoted, strings.Join(sets, ", "))
				}
			}
		}
	}

	sqlStr := fmt.Sprintf("%s %s (%s) VALUES (%s)%s",
		verb, m.DstPlat.Quote(target.Name), strings.Join(quoteAll(dstCols, m.DstPlat), ", "),
		strings.Join(placeholders, ", "), conflictClause)

	return sqlStr, warn
}

// updateAssignments builds "col=<rhsFmt(col)>" for every column,
// including the primary key, where rhsFmt is "VALUES(%s)" (MySQL) or
// "EXCLUDED.%s" (Postgres/SQLite), each applied to the column's
// quoted name, the same quoted name used on the left. The primary key stays in
// the SET list: it is a no-op assignment on genuine conflicts, but
// keeping it means the generated SQL doesn't depend on whether the
// conflicting row's other columns happen to differ.
func updateAssignments(cols []string, plat dialect.Platform, rhsFmt string) []string {
	var sets []string
	for _, c := range cols {
		q := plat.Quote(c)
		rhs := fmt.Sprintf(rhsFmt, q)
		sets = append(sets, fmt.Sprintf("%s=%s", q, rhs))
	}
	return sets
}

func placeholder(plat dialect.Platform, idx int) string {
	if plat.Name() == dialect.PostgreSQL {
		return fmt.Sprintf("$%d", idx+1)
	}
	return "?"
}

// copyChunk runs one LIMIT/OFFSET page: fetch, transform, remap,
// normalize, insert. When opts.HandleConflicts != error, a failing row
// is recorded as a warning and skipped rather than aborting the chunk.
func (m *Migrator) copyChunk(ctx context.Context, selectSQL, insertSQL string, plan []columnPlan, tableName string, chunkIdx int, offset int64, opts Options) (int64, []string, error) {
	rows, err := m.Src.Query(ctx, selectSQL)
	if err != nil {
		return 0, nil, &errs.DataError{Table: tableName, ChunkIndex: chunkIdx, Offset: offset, Err: err}
	}
	defer rows.Close()

	var tx connector.Tx
	if opts.UseTransaction {
		tx, err = m.Dst.Begin(ctx)
		if err != nil {
			return 0, nil, &errs.DataError{Table: tableName, ChunkIndex: chunkIdx, Offset: offset, Err: err}
		}
	}

	var warnings []string
	var copied int64
	rowOffset := offset

	for rows.Next() {
		dest := make([]any, len(plan))
		ptrs := make([]any, len(plan))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			if tx != nil {
				tx.Rollback()
			}
			return copied, warnings, &errs.DataError{Table: tableName, ChunkIndex: chunkIdx, Offset: rowOffset, Err: err}
		}

		row := make(map[string]any, len(plan))
		for i, p := range plan {
			row[p.srcName] = dest[i]
		}

		if opts.RowTransform != nil {
			transformed, terr := opts.RowTransform(row)
			if terr != nil {
				if opts.HandleConflicts == ConflictError {
					if tx != nil {
						tx.Rollback()
					}
					return copied, warnings, &errs.DataError{Table: tableName, ChunkIndex: chunkIdx, Offset: rowOffset, Err: terr}
				}
				warnings = append(warnings, fmt.Sprintf("row transform failed at offset %d: %v", rowOffset, terr))
				rowOffset++
				continue
			}
			row = transformed
		}

		args := make([]any, len(plan))
		for i, p := range plan {
			args[i] = normalizeValue(row[p.srcName], m.DstPlat)
		}

		var execErr error
		if tx != nil {
			execErr = tx.Exec(ctx, insertSQL, args...)
		} else {
			execErr = m.Dst.Exec(ctx, insertSQL, args...)
		}
		if execErr != nil {
			if opts.HandleConflicts == ConflictError {
				if tx != nil {
					tx.Rollback()
				}
				return copied, warnings, &errs.DataError{Table: tableName, ChunkIndex: chunkIdx, Offset: rowOffset, Err: execErr}
			}
			warnings = append(warnings, fmt.Sprintf("row at offset %d: %v", rowOffset, execErr))
			rowOffset++
			continue
		}
		copied++
		rowOffset++
	}
	if err := rows.Err(); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		return copied, warnings, &errs.DataError{Table: tableName, ChunkIndex: chunkIdx, Offset: offset, Err: err}
	}

	if tx != nil {
		if err := tx.Commit(); err != nil {
			return copied, warnings, &errs.DataError{Table: tableName, ChunkIndex: chunkIdx, Offset: offset, Err: err}
		}
	}
	return copied, warnings, nil
}

// normalizeValue adapts a scanned source value for the target dialect:
// booleans become 0/1 outside PostgreSQL, byte slices and ordinary
// scalars pass through, everything else is coerced to its string form.
func normalizeValue(v any, plat dialect.Platform) any {
	if v == nil {
		return nil
	}
	switch b := v.(type) {
	case bool:
		if plat.Name() == dialect.PostgreSQL {
			return b
		}
		if b {
			return 1
		}
		return 0
	case []byte, string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return v
	default:
		return fmt.Sprintf("%v", b)
	}
}

func quoteAll(names []string, plat dialect.Platform) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = plat.Quote(n)
	}
	return out
}
