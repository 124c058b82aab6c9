// Package extractor reads a live database's schema into the dialect-
// neutral model (spec §4.C). It never mutates the source: every method
// here only ever runs SELECT/PRAGMA/information_schema queries.
package extractor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dbmigrate/dbmigrate/internal/connector"
	"github.com/dbmigrate/dbmigrate/internal/dialect"
	"github.com/dbmigrate/dbmigrate/internal/errs"
	"github.com/dbmigrate/dbmigrate/internal/schema"
)

// Extractor pulls a Table map out of one connector, per its dialect.
type Extractor struct {
	conn connector.Connector
	name dialect.Name
}

// New binds an Extractor to an already-open connector for dialect name.
func New(conn connector.Connector, name dialect.Name) *Extractor {
	return &Extractor{conn: conn, name: name}
}

// Extract returns every table in database (schema name for PostgreSQL,
// database name for MySQL, ignored for SQLite), populated with columns,
// indexes, constraints, and an accurate row count.
func (e *Extractor) Extract(ctx context.Context, database string) (map[string]*schema.Table, error) {
	switch e.name {
	case dialect.MySQL:
		return e.extractMySQL(ctx, database)
	case dialect.PostgreSQL:
		return e.extractPostgres(ctx, database)
	case dialect.SQLite:
		return e.extractSQLite(ctx)
	default:
		return nil, &errs.ExtractError{Kind: errs.ExtractConnection, Err: fmt.Errorf("unknown dialect %q", e.name)}
	}
}

func (e *Extractor) rowCount(ctx context.Context, plat dialect.Platform, table string) (int64, error) {
	var n int64
	rows, err := e.conn.Query(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", plat.Quote(table)))
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

// --- MySQL -------------------------------------------------------------

func (e *Extractor) extractMySQL(ctx context.Context, database string) (map[string]*schema.Table, error) {
	plat := dialect.NewMySQL()
	tables := map[string]*schema.Table{}

	colRows, err := e.conn.Query(ctx, `
		SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, IS_NULLABLE,
		       COLUMN_DEFAULT, EXTRA, COLUMN_COMMENT
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, ORDINAL_POSITION`, database)
	if err != nil {
		return nil, &errs.ExtractError{Kind: errs.ExtractConnection, Err: err}
	}
	defer colRows.Close()

	for colRows.Next() {
		var tableName, colName, dataType, columnType, isNullable, extra, comment string
		var colDefault sql.NullString
		if err := colRows.Scan(&tableName, &colName, &dataType, &columnType, &isNullable, &colDefault, &extra, &comment); err != nil {
			return nil, &errs.ExtractError{Kind: errs.ExtractParse, Table: tableName, Err: err}
		}

		t, ok := tables[tableName]
		if !ok {
			t = schema.NewTable(tableName)
			tables[tableName] = t
		}

		typ, length, precision, scale, unsigned, enumValues := mysqlType(dataType, columnType)
		col := schema.NewColumn(colName, typ)
		col.Length, col.Precision, col.Scale, col.Unsigned = length, precision, scale, unsigned
		col.EnumValues = enumValues
		col.Nullable = strings.EqualFold(isNullable, "YES")
		col.Comment = comment
		col.AutoIncrement = strings.Contains(extra, "auto_increment")
		if strings.Contains(strings.ToLower(extra), "on update current_timestamp") {
			col.Options["on_update"] = schema.ExprCurrentTimestamp
		}
		col.Default = mysqlDefault(colDefault, typ)

		if err := t.AddColumn(col); err != nil {
			return nil, &errs.ExtractError{Kind: errs.ExtractParse, Table: tableName, Err: err}
		}
	}
	if err := colRows.Err(); err != nil {
		return nil, &errs.ExtractError{Kind: errs.ExtractConnection, Err: err}
	}

	if err := e.mysqlIndexes(ctx, database, tables); err != nil {
		return nil, err
	}
	if err := e.mysqlForeignKeys(ctx, database, tables); err != nil {
		return nil, err
	}

	for name, t := range tables {
		n, err := e.rowCount(ctx, plat, name)
		if err != nil {
			return nil, &errs.ExtractError{Kind: errs.ExtractConnection, Table: name, Err: err}
		}
		t.RowCount = n
	}
	return tables, nil
}

func mysqlDefault(raw sql.NullString, typ schema.Type) schema.Default {
	if !raw.Valid {
		return schema.NoDefault()
	}
	v := raw.String
	switch strings.ToUpper(v) {
	case schema.ExprCurrentTimestamp, "CURRENT_TIMESTAMP()":
		return schema.ExprDefault(schema.ExprCurrentTimestamp)
	}
	if typ == schema.TypeBoolean {
		return schema.LiteralDefault(v == "1")
	}
	return schema.LiteralDefault(v)
}

func (e *Extractor) mysqlIndexes(ctx context.Context, database string, tables map[string]*schema.Table) error {
	rows, err := e.conn.Query(ctx, `
		SELECT TABLE_NAME, INDEX_NAME, NON_UNIQUE, COLUMN_NAME, SEQ_IN_INDEX, INDEX_TYPE
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, INDEX_NAME, SEQ_IN_INDEX`, database)
	if err != nil {
		return &errs.ExtractError{Kind: errs.ExtractConnection, Err: err}
	}
	defer rows.Close()

	type key struct{ table, index string }
	seen := map[key]*schema.Index{}

	for rows.Next() {
		var tableName, indexName, colName, indexType string
		var nonUnique int
		var seq int
		if err := rows.Scan(&tableName, &indexName, &nonUnique, &colName, &seq, &indexType); err != nil {
			return &errs.ExtractError{Kind: errs.ExtractParse, Table: tableName, Err: err}
		}
		t, ok := tables[tableName]
		if !ok {
			continue
		}
		k := key{tableName, indexName}
		idx, ok := seen[k]
		if !ok {
			kind := schema.IndexBTree
			if indexName == "PRIMARY" {
				kind = schema.IndexPrimary
			} else if nonUnique == 0 {
				kind = schema.IndexUnique
			} else if strings.EqualFold(indexType, "FULLTEXT") {
				kind = schema.IndexFulltext
			} else if strings.EqualFold(indexType, "SPATIAL") {
				kind = schema.IndexSpatial
			}
			idx = &schema.Index{Name: indexName, Kind: kind}
			seen[k] = idx
		}
		idx.Columns = append(idx.Columns, schema.IndexColumn{Name: colName})
	}
	if err := rows.Err(); err != nil {
		return &errs.ExtractError{Kind: errs.ExtractConnection, Err: err}
	}
	for k, idx := range seen {
		if t, ok := tables[k.table]; ok {
			if err := t.AddIndex(idx); err != nil {
				return &errs.ExtractError{Kind: errs.ExtractParse, Table: k.table, Err: err}
			}
		}
	}
	return nil
}

func (e *Extractor) mysqlForeignKeys(ctx context.Context, database string, tables map[string]*schema.Table) error {
	rows, err := e.conn.Query(ctx, `
		SELECT k.CONSTRAINT_NAME, k.TABLE_NAME, k.COLUMN_NAME,
		       k.REFERENCED_TABLE_NAME, k.REFERENCED_COLUMN_NAME,
		       r.DELETE_RULE, r.UPDATE_RULE
		FROM information_schema.KEY_COLUMN_USAGE k
		JOIN information_schema.REFERENTIAL_CONSTRAINTS r
		  ON r.CONSTRAINT_SCHEMA = k.CONSTRAINT_SCHEMA AND r.CONSTRAINT_NAME = k.CONSTRAINT_NAME
		WHERE k.CONSTRAINT_SCHEMA = ? AND k.REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY k.TABLE_NAME, k.CONSTRAINT_NAME, k.ORDINAL_POSITION`, database)
	if err != nil {
		return &errs.ExtractError{Kind: errs.ExtractConnection, Err: err}
	}
	defer rows.Close()

	type key struct{ table, name string }
	seen := map[key]*schema.Constraint{}
	var order []key

	for rows.Next() {
		var name, tableName, col, refTable, refCol, onDelete, onUpdate string
		if err := rows.Scan(&name, &tableName, &col, &refTable, &refCol, &onDelete, &onUpdate); err != nil {
			return &errs.ExtractError{Kind: errs.ExtractParse, Table: tableName, Err: err}
		}
		k := key{tableName, name}
		c, ok := seen[k]
		if !ok {
			c = &schema.Constraint{
				Name: name, Kind: schema.ConstraintForeign, RefTable: refTable,
				OnDelete: schema.FKAction(onDelete), OnUpdate: schema.FKAction(onUpdate),
			}
			seen[k] = c
			order = append(order, k)
		}
		c.Columns = append(c.Columns, col)
		c.RefColumn = append(c.RefColumn, refCol)
	}
	if err := rows.Err(); err != nil {
		return &errs.ExtractError{Kind: errs.ExtractConnection, Err: err}
	}
	for _, k := range order {
		if t, ok := tables[k.table]; ok {
			if err := t.AddConstraint(seen[k]); err != nil {
				return &errs.ExtractError{Kind: errs.ExtractParse, Table: k.table, Err: err}
			}
		}
	}
	return nil
}

// --- PostgreSQL ----------------------------------------------------------

func (e *Extractor) extractPostgres(ctx context.Context, schemaName string) (map[string]*schema.Table, error) {
	plat := dialect.NewPostgreSQL()
	if schemaName == "" {
		schemaName = "public"
	}
	tables := map[string]*schema.Table{}

	colRows, err := e.conn.Query(ctx, `
		SELECT table_name, column_name, data_type, udt_name, is_nullable,
		       column_default, character_maximum_length, numeric_precision, numeric_scale
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position`, schemaName)
	if err != nil {
		return nil, &errs.ExtractError{Kind: errs.ExtractConnection, Err: err}
	}
	defer colRows.Close()

	for colRows.Next() {
		var tableName, colName, dataType, udtName, isNullable string
		var colDefault sql.NullString
		var charMaxLen, numPrecision, numScale sql.NullInt64
		if err := colRows.Scan(&tableName, &colName, &dataType, &udtName, &isNullable,
			&colDefault, &charMaxLen, &numPrecision, &numScale); err != nil {
			return nil, &errs.ExtractError{Kind: errs.ExtractParse, Table: tableName, Err: err}
		}

		t, ok := tables[tableName]
		if !ok {
			t = schema.NewTable(tableName)
			tables[tableName] = t
		}

		typ, length, precision, scale := postgresType(dataType, udtName,
			int(charMaxLen.Int64), int(numPrecision.Int64), int(numScale.Int64))
		col := schema.NewColumn(colName, typ)
		col.Length, col.Precision, col.Scale = length, precision, scale
		col.Nullable = strings.EqualFold(isNullable, "YES")
		col.Default = postgresDefault(colDefault)
		col.AutoIncrement = colDefault.Valid && strings.HasPrefix(strings.ToLower(colDefault.String), "nextval(")

		if err := t.AddColumn(col); err != nil {
			return nil, &errs.ExtractError{Kind: errs.ExtractParse, Table: tableName, Err: err}
		}
	}
	if err := colRows.Err(); err != nil {
		return nil, &errs.ExtractError{Kind: errs.ExtractConnection, Err: err}
	}

	if err := e.postgresIndexes(ctx, schemaName, tables); err != nil {
		return nil, err
	}
	if err := e.postgresForeignKeys(ctx, schemaName, tables); err != nil {
		return nil, err
	}

	for name, t := range tables {
		n, err := e.rowCount(ctx, plat, name)
		if err != nil {
			return nil, &errs.ExtractError{Kind: errs.ExtractConnection, Table: name, Err: err}
		}
		t.RowCount = n
	}
	return tables, nil
}

func postgresDefault(raw sql.NullString) schema.Default {
	if !raw.Valid {
		return schema.NoDefault()
	}
	v := raw.String
	if strings.HasPrefix(strings.ToLower(v), "nextval(") {
		return schema.NoDefault() // serial identity; the column loop sets AutoIncrement from the same default
	}
	up := strings.ToUpper(v)
	if strings.HasPrefix(up, schema.ExprCurrentTimestamp) || strings.HasPrefix(up, "NOW()") {
		return schema.ExprDefault(schema.ExprCurrentTimestamp)
	}
	if strings.Contains(v, "::") {
		return schema.ExprDefault(v) // cast-qualified literal, pass through verbatim
	}
	trimmed := strings.Trim(v, "'")
	return schema.LiteralDefault(trimmed)
}

func (e *Extractor) postgresIndexes(ctx context.Context, schemaName string, tables map[string]*schema.Table) error {
	rows, err := e.conn.Query(ctx, `
		SELECT t.relname, i.relname, ix.indisunique, ix.indisprimary, a.attname, am.amname
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_am am ON am.oid = i.relam
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE n.nspname = $1
		ORDER BY t.relname, i.relname`, schemaName)
	if err != nil {
		return &errs.ExtractError{Kind: errs.ExtractConnection, Err: err}
	}
	defer rows.Close()

	type key struct{ table, index string }
	seen := map[key]*schema.Index{}
	var order []key

	for rows.Next() {
		var tableName, indexName, colName, amName string
		var isUnique, isPrimary bool
		if err := rows.Scan(&tableName, &indexName, &isUnique, &isPrimary, &colName, &amName); err != nil {
			return &errs.ExtractError{Kind: errs.ExtractParse, Table: tableName, Err: err}
		}
		k := key{tableName, indexName}
		idx, ok := seen[k]
		if !ok {
			kind := schema.IndexBTree
			switch {
			case isPrimary:
				kind = schema.IndexPrimary
			case isUnique:
				kind = schema.IndexUnique
			case amName == "gin":
				kind = schema.IndexGIN
			case amName == "gist":
				kind = schema.IndexGIST
			}
			idx = &schema.Index{Name: indexName, Kind: kind, Method: amName}
			seen[k] = idx
			order = append(order, k)
		}
		idx.Columns = append(idx.Columns, schema.IndexColumn{Name: colName})
	}
	if err := rows.Err(); err != nil {
		return &errs.ExtractError{Kind: errs.ExtractConnection, Err: err}
	}
	for _, k := range order {
		if t, ok := tables[k.table]; ok {
			if err := t.AddIndex(seen[k]); err != nil {
				return &errs.ExtractError{Kind: errs.ExtractParse, Table: k.table, Err: err}
			}
		}
	}
	return nil
}

func (e *Extractor) postgresForeignKeys(ctx context.Context, schemaName string, tables map[string]*schema.Table) error {
	rows, err := e.conn.Query(ctx, `
		SELECT tc.constraint_name, tc.table_name, kcu.column_name,
		       ccu.table_name, ccu.column_name, rc.delete_rule, rc.update_rule
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		JOIN information_schema.referential_constraints rc
		  ON rc.constraint_name = tc.constraint_name AND rc.constraint_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1
		ORDER BY tc.table_name, tc.constraint_name`, schemaName)
	if err != nil {
		return &errs.ExtractError{Kind: errs.ExtractConnection, Err: err}
	}
	defer rows.Close()

	type key struct{ table, name string }
	seen := map[key]*schema.Constraint{}
	var order []key

	for rows.Next() {
		var name, tableName, col, refTable, refCol, onDelete, onUpdate string
		if err := rows.Scan(&name, &tableName, &col, &refTable, &refCol, &onDelete, &onUpdate); err != nil {
			return &errs.ExtractError{Kind: errs.ExtractParse, Table: tableName, Err: err}
		}
		k := key{tableName, name}
		c, ok := seen[k]
		if !ok {
			c = &schema.Constraint{
				Name: name, Kind: schema.ConstraintForeign, RefTable: refTable,
				OnDelete: schema.FKAction(onDelete), OnUpdate: schema.FKAction(onUpdate),
			}
			seen[k] = c
			order = append(order, k)
		}
		c.Columns = append(c.Columns, col)
		c.RefColumn = append(c.RefColumn, refCol)
	}
	if err := rows.Err(); err != nil {
		return &errs.ExtractError{Kind: errs.ExtractConnection, Err: err}
	}
	for _, k := range order {
		if t, ok := tables[k.table]; ok {
			if err := t.AddConstraint(seen[k]); err != nil {
				return &errs.ExtractError{Kind: errs.ExtractParse, Table: k.table, Err: err}
			}
		}
	}
	return nil
}

// --- SQLite --------------------------------------------------------------

func (e *Extractor) extractSQLite(ctx context.Context) (map[string]*schema.Table, error) {
	plat := dialect.NewSQLite()
	tables := map[string]*schema.Table{}

	nameRows, err := e.conn.Query(ctx, `
		SELECT name, sql FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, &errs.ExtractError{Kind: errs.ExtractConnection, Err: err}
	}
	var names []string
	for nameRows.Next() {
		var name string
		var ddl sql.NullString
		if err := nameRows.Scan(&name, &ddl); err != nil {
			nameRows.Close()
			return nil, &errs.ExtractError{Kind: errs.ExtractParse, Err: err}
		}
		t := schema.NewTable(name)
		t.OriginalDDL = ddl.String
		tables[name] = t
		names = append(names, name)
	}
	nameErr := nameRows.Err()
	nameRows.Close()
	if nameErr != nil {
		return nil, &errs.ExtractError{Kind: errs.ExtractConnection, Err: nameErr}
	}

	for _, name := range names {
		t := tables[name]
		if err := e.sqliteColumns(ctx, t); err != nil {
			return nil, err
		}
		if err := e.sqliteIndexes(ctx, t); err != nil {
			return nil, err
		}
		if err := e.sqliteForeignKeys(ctx, t); err != nil {
			return nil, err
		}
		n, err := e.rowCount(ctx, plat, name)
		if err != nil {
			return nil, &errs.ExtractError{Kind: errs.ExtractConnection, Table: name, Err: err}
		}
		t.RowCount = n
	}
	return tables, nil
}

func (e *Extractor) sqliteColumns(ctx context.Context, t *schema.Table) error {
	rows, err := e.conn.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteSQLiteIdent(t.Name)))
	if err != nil {
		return &errs.ExtractError{Kind: errs.ExtractConnection, Table: t.Name, Err: err}
	}
	defer rows.Close()

	var pkCols []string
	for rows.Next() {
		var cid int
		var name, declType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			return &errs.ExtractError{Kind: errs.ExtractParse, Table: t.Name, Err: err}
		}
		typ, length := sqliteAffinity(declType)
		col := schema.NewColumn(name, typ)
		col.Length = length
		col.Nullable = notNull == 0
		col.Default = sqliteDefault(dflt)
		if pk > 0 {
			pkCols = append(pkCols, name)
			if strings.Contains(strings.ToUpper(declType), "INT") {
				col.AutoIncrement = len(pkCols) == 1
			}
		}
		if err := t.AddColumn(col); err != nil {
			return &errs.ExtractError{Kind: errs.ExtractParse, Table: t.Name, Err: err}
		}
	}
	if err := rows.Err(); err != nil {
		return &errs.ExtractError{Kind: errs.ExtractConnection, Table: t.Name, Err: err}
	}

	if len(pkCols) > 1 {
		for _, c := range pkCols {
			if col, ok := t.Column(c); ok {
				col.AutoIncrement = false
			}
		}
	}
	if len(pkCols) > 0 {
		idxCols := make([]schema.IndexColumn, len(pkCols))
		for i, c := range pkCols {
			idxCols[i] = schema.IndexColumn{Name: c}
		}
		if err := t.AddIndex(&schema.Index{Name: "pk_" + t.Name, Kind: schema.IndexPrimary, Columns: idxCols}); err != nil {
			return &errs.ExtractError{Kind: errs.ExtractParse, Table: t.Name, Err: err}
		}
	}
	return nil
}

func sqliteDefault(raw sql.NullString) schema.Default {
	if !raw.Valid {
		return schema.NoDefault()
	}
	v := strings.TrimSpace(raw.String)
	up := strings.ToUpper(v)
	if up == schema.ExprCurrentTimestamp || up == schema.ExprCurrentDate || up == schema.ExprCurrentTime {
		return schema.ExprDefault(up)
	}
	if strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'") {
		return schema.LiteralDefault(strings.Trim(v, "'"))
	}
	if strings.HasPrefix(v, "(") {
		return schema.ExprDefault(v)
	}
	return schema.LiteralDefault(v)
}

func (e *Extractor) sqliteIndexes(ctx context.Context, t *schema.Table) error {
	listRows, err := e.conn.Query(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quoteSQLiteIdent(t.Name)))
	if err != nil {
		return &errs.ExtractError{Kind: errs.ExtractConnection, Table: t.Name, Err: err}
	}
	type idxMeta struct {
		name   string
		unique bool
		origin string
	}
	var metas []idxMeta
	for listRows.Next() {
		var seq int
		var name, origin string
		var unique, partial int
		if err := listRows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			listRows.Close()
			return &errs.ExtractError{Kind: errs.ExtractParse, Table: t.Name, Err: err}
		}
		metas = append(metas, idxMeta{name, unique == 1, origin})
	}
	listErr := listRows.Err()
	listRows.Close()
	if listErr != nil {
		return &errs.ExtractError{Kind: errs.ExtractConnection, Table: t.Name, Err: listErr}
	}

	for _, m := range metas {
		if m.origin == "pk" {
			continue // already modeled via the table_info-derived primary index
		}
		infoRows, err := e.conn.Query(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteSQLiteIdent(m.name)))
		if err != nil {
			return &errs.ExtractError{Kind: errs.ExtractConnection, Table: t.Name, Err: err}
		}
		var cols []schema.IndexColumn
		for infoRows.Next() {
			var seqno, cid int
			var name sql.NullString
			if err := infoRows.Scan(&seqno, &cid, &name); err != nil {
				infoRows.Close()
				return &errs.ExtractError{Kind: errs.ExtractParse, Table: t.Name, Err: err}
			}
			if name.Valid {
				cols = append(cols, schema.IndexColumn{Name: name.String})
			}
		}
		infoErr := infoRows.Err()
		infoRows.Close()
		if infoErr != nil {
			return &errs.ExtractError{Kind: errs.ExtractConnection, Table: t.Name, Err: infoErr}
		}

		kind := schema.IndexBTree
		if m.unique {
			kind = schema.IndexUnique
		}
		if err := t.AddIndex(&schema.Index{Name: m.name, Kind: kind, Columns: cols}); err != nil {
			return &errs.ExtractError{Kind: errs.ExtractParse, Table: t.Name, Err: err}
		}
	}
	return nil
}

func (e *Extractor) sqliteForeignKeys(ctx context.Context, t *schema.Table) error {
	rows, err := e.conn.Query(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteSQLiteIdent(t.Name)))
	if err != nil {
		return &errs.ExtractError{Kind: errs.ExtractConnection, Table: t.Name, Err: err}
	}
	defer rows.Close()

	type fk struct {
		refTable, onUpdate, onDelete string
		cols, refCols                []string
	}
	byID := map[int]*fk{}
	var order []int

	for rows.Next() {
		var id, seq int
		var refTable, from, to, onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return &errs.ExtractError{Kind: errs.ExtractParse, Table: t.Name, Err: err}
		}
		f, ok := byID[id]
		if !ok {
			f = &fk{refTable: refTable, onUpdate: onUpdate, onDelete: onDelete}
			byID[id] = f
			order = append(order, id)
		}
		f.cols = append(f.cols, from)
		f.refCols = append(f.refCols, to)
	}
	if err := rows.Err(); err != nil {
		return &errs.ExtractError{Kind: errs.ExtractConnection, Table: t.Name, Err: err}
	}

	for _, id := range order {
		f := byID[id]
		name := fmt.Sprintf("fk_%s_%s_%d", t.Name, f.refTable, id)
		c := &schema.Constraint{
			Name: name, Kind: schema.ConstraintForeign, Columns: f.cols,
			RefTable: f.refTable, RefColumn: f.refCols,
			OnDelete: schema.FKAction(strings.ToUpper(f.onDelete)),
			OnUpdate: schema.FKAction(strings.ToUpper(f.onUpdate)),
		}
		if err := t.AddConstraint(c); err != nil {
			return &errs.ExtractError{Kind: errs.ExtractParse, Table: t.Name, Err: err}
		}
	}
	return nil
}

func quoteSQLiteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
