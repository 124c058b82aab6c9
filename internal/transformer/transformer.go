// Package transformer rewrites a Table from its source dialect to an
// equivalent Table for a target dialect (spec §4.E). It never mutates
// its input: every entry point operates on a deep clone and returns a
// fresh Table plus any post-transform actions and warnings.
package transformer

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dbmigrate/dbmigrate/internal/dialect"
	"github.com/dbmigrate/dbmigrate/internal/errs"
	"github.com/dbmigrate/dbmigrate/internal/schema"
)

// Result is everything Transform produces for one table.
type Result struct {
	Table    *schema.Table
	Actions  []schema.PostTransformAction
	Warnings []string

	// These counters tally the per-table fulltext statistics the
	// orchestrator copies into its TableResult for this table.
	IndexesConverted   int
	PGGinIndexes       int
	PGGeneratedColumns int
	SQLiteFTSTables    int
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Transform rewrites table for dst, given it currently models src.
// transform(t, d, d) is idempotent: it returns a structural clone of t
// and emits no post-transform actions.
func Transform(table *schema.Table, src, dst dialect.Name, opts Options) (*Result, error) {
	r := &Result{Table: table.Clone()}

	if src == dst {
		// Idempotence contract: same-dialect transform is a structural
		// clone with no post-transform actions.
		return r, nil
	}

	if err := rewriteColumnTypes(r, src, dst, opts); err != nil {
		return nil, err
	}
	rewriteDefaults(r, dst)
	handleOnUpdateCurrentTimestamp(r, dst)
	rewriteConstraints(r, dst)
	if err := transformIndexes(r, dst, opts); err != nil {
		return nil, err
	}

	return r, nil
}

// --- Step 2: column type rewrite -------------------------------------------------

func rewriteColumnTypes(r *Result, src, dst dialect.Name, opts Options) error {
	t := r.Table
	for _, col := range t.Columns() {
		switch col.Type {
		case schema.TypeEnum, schema.TypeSet:
			if err := rewriteEnum(r, t, col, dst, opts); err != nil {
				return err
			}
		case schema.TypeBoolean:
			rewriteBoolean(r, t, col, dst)
		case schema.TypeJSON, schema.TypeJSONB:
			rewriteJSON(r, t, col, dst)
		case schema.TypeTinyText, schema.TypeMediumText, schema.TypeLongText:
			if dst != dialect.MySQL {
				col.Type = schema.TypeText
			}
		case schema.TypeText:
			if dst == dialect.MySQL {
				col.Type = mysqlTextRungFor(col.Length)
			}
		}

		if col.Unsigned && dst != dialect.MySQL {
			widenUnsigned(r, t, col, dst)
		}

		if col.AutoIncrement && dst == dialect.SQLite {
			enforceSQLiteAutoIncrement(r, t, col)
		}
	}
	return nil
}

// mysqlTextRungFor picks the narrowest MySQL text type that still fits
// length characters, matching the tinytext/text/mediumtext/longtext
// byte ceilings (255, 65535, 16777215). A zero or unknown length maps
// to the common case, text.
func mysqlTextRungFor(length int) schema.Type {
	switch {
	case length <= 0:
		return schema.TypeText
	case length <= 255:
		return schema.TypeTinyText
	case length <= 65535:
		return schema.TypeText
	case length <= 16777215:
		return schema.TypeMediumText
	default:
		return schema.TypeLongText
	}
}

func rewriteEnum(r *Result, t *schema.Table, col *schema.Column, dst dialect.Name, opts Options) error {
	if dst == dialect.MySQL {
		return nil // unchanged
	}
	if dst == dialect.PostgreSQL && opts.EnumConversion == EnumNativePG {
		r.Actions = append(r.Actions, schema.PostTransformAction{
			Type:        schema.ActionPGEnumType,
			SQL:         fmt.Sprintf("CREATE TYPE %s_%s AS ENUM (%s)", t.Name, col.Name, quotedEnumList(col.EnumValues)),
			Description: fmt.Sprintf("native enum type for %s.%s", t.Name, col.Name),
			TargetTable: t.Name,
		})
		return nil
	}

	maxLen := 0
	for _, v := range col.EnumValues {
		if len(v) > maxLen {
			maxLen = len(v)
		}
	}
	if maxLen == 0 {
		maxLen = 255
	}
	values := col.EnumValues
	col.Type = schema.TypeVarchar
	col.Length = maxLen
	col.EnumValues = nil

	inList := make([]string, len(values))
	for i, v := range values {
		inList[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	addCheckConstraint(t, fmt.Sprintf("ck_%s_%s_enum", t.Name, col.Name),
		fmt.Sprintf("%s IN (%s)", col.Name, strings.Join(inList, ",")), []string{col.Name})
	return nil
}

func quotedEnumList(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(parts, ", ")
}

func rewriteBoolean(r *Result, t *schema.Table, col *schema.Column, dst dialect.Name) {
	switch dst {
	case dialect.PostgreSQL:
		col.Type = schema.TypeBoolean
	case dialect.SQLite:
		col.Type = schema.TypeBoolean // rendered as integer affinity; check adds the semantics
		addCheckConstraint(t, fmt.Sprintf("ck_%s_%s_bool", t.Name, col.Name),
			fmt.Sprintf("%s IN (0,1)", col.Name), []string{col.Name})
	case dialect.MySQL:
		col.Type = schema.TypeBoolean
	}
}

func rewriteJSON(r *Result, t *schema.Table, col *schema.Column, dst dialect.Name) {
	switch dst {
	case dialect.MySQL:
		col.Type = schema.TypeJSON
	case dialect.PostgreSQL:
		col.Type = schema.TypeJSONB
	case dialect.SQLite:
		col.Type = schema.TypeText
		addCheckConstraint(t, fmt.Sprintf("ck_%s_%s_json", t.Name, col.Name),
			fmt.Sprintf("json_valid(%s)", col.Name), []string{col.Name})
	}
}

var widenTo = map[schema.Type]schema.Type{
	schema.TypeTinyInt:   schema.TypeSmallInt,
	schema.TypeSmallInt:  schema.TypeInt,
	schema.TypeMediumInt: schema.TypeInt,
	schema.TypeInt:       schema.TypeBigInt,
	schema.TypeBigInt:    schema.TypeBigInt,
}

func widenUnsigned(r *Result, t *schema.Table, col *schema.Column, dst dialect.Name) {
	if wider, ok := widenTo[col.Type]; ok {
		col.Type = wider
	}
	col.Unsigned = false
	addCheckConstraint(t, fmt.Sprintf("ck_%s_%s_unsigned", t.Name, col.Name),
		fmt.Sprintf("%s >= 0", col.Name), []string{col.Name})
	r.warn("column %s.%s: dropped UNSIGNED for %s, widened type and added a >= 0 check", t.Name, col.Name, dst)
}

func enforceSQLiteAutoIncrement(r *Result, t *schema.Table, col *schema.Column) {
	pk := t.PrimaryIndex()
	singleColumnPK := pk != nil && len(pk.Columns) == 1 && pk.Columns[0].Name == col.Name
	if singleColumnPK {
		col.Type = schema.TypeInt
		return
	}
	col.AutoIncrement = false
	r.warn("column %s.%s: composite primary key cannot carry AUTOINCREMENT on SQLite; flag dropped", t.Name, col.Name)
}

func addCheckConstraint(t *schema.Table, name, predicate string, columns []string) {
	if _, exists := t.Constraint(name); exists {
		return
	}
	_ = t.AddConstraint(&schema.Constraint{
		Name:      name,
		Kind:      schema.ConstraintCheck,
		Columns:   columns,
		Predicate: predicate,
	})
}

// --- Step 3: default value rewrite -------------------------------------------------

func rewriteDefaults(r *Result, dst dialect.Name) {
	for _, col := range r.Table.Columns() {
		if col.Default.Kind != schema.DefaultExpr {
			continue
		}
		expr := col.Default.Expr
		if dst == dialect.SQLite && expr != schema.ExprCurrentTimestamp &&
			expr != schema.ExprCurrentDate && expr != schema.ExprCurrentTime &&
			!strings.HasPrefix(expr, "(") {
			col.Default.Expr = "(" + expr + ")"
		}
	}
}

// --- Step 4: ON UPDATE CURRENT_TIMESTAMP -------------------------------------------------

func handleOnUpdateCurrentTimestamp(r *Result, dst dialect.Name) {
	t := r.Table
	for _, col := range t.Columns() {
		onUpdate, ok := col.Options["on_update"]
		if !ok || !strings.EqualFold(onUpdate, schema.ExprCurrentTimestamp) {
			continue
		}
		switch dst {
		case dialect.MySQL:
			// preserved verbatim
		case dialect.PostgreSQL:
			delete(col.Options, "on_update")
			name := fmt.Sprintf("trg_%s_%s_touch", t.Name, col.Name)
			sql := fmt.Sprintf(
				"CREATE TRIGGER %s BEFORE UPDATE ON %s FOR EACH ROW EXECUTE FUNCTION %s_touch_fn()",
				name, t.Name, name,
			)
			fn := fmt.Sprintf(
				"CREATE OR REPLACE FUNCTION %s_touch_fn() RETURNS trigger AS $$ BEGIN NEW.%s = CURRENT_TIMESTAMP; RETURN NEW; END; $$ LANGUAGE plpgsql",
				name, col.Name,
			)
			r.Actions = append(r.Actions, schema.PostTransformAction{
				Type:        schema.ActionTouchTrigger,
				SQL:         fn + ";\n" + sql,
				Description: fmt.Sprintf("BEFORE UPDATE trigger touching %s.%s", t.Name, col.Name),
				TargetTable: t.Name,
			})
		case dialect.SQLite:
			delete(col.Options, "on_update")
			name := fmt.Sprintf("trg_%s_%s_touch", t.Name, col.Name)
			sql := fmt.Sprintf(
				"CREATE TRIGGER %s AFTER UPDATE ON %s WHEN NEW.%s = OLD.%s BEGIN UPDATE %s SET %s = CURRENT_TIMESTAMP WHERE rowid = NEW.rowid; END",
				name, t.Name, col.Name, col.Name, t.Name, col.Name,
			)
			r.Actions = append(r.Actions, schema.PostTransformAction{
				Type:        schema.ActionTouchTrigger,
				SQL:         sql,
				Description: fmt.Sprintf("AFTER UPDATE trigger touching %s.%s", t.Name, col.Name),
				TargetTable: t.Name,
			})
		}
	}
}

// --- Step 5: constraint rewrite -------------------------------------------------

func rewriteConstraints(r *Result, dst dialect.Name) {
	for _, c := range r.Table.Constraints() {
		if c.Kind != schema.ConstraintForeign {
			continue
		}
		if c.OnDelete == schema.FKSetDefault && dst == dialect.SQLite {
			c.OnDelete = schema.FKNoAction
			r.warn("constraint %s: SET DEFAULT on_delete unsupported on SQLite; downgraded to NO ACTION", c.Name)
		}
		if c.OnUpdate == schema.FKSetDefault && dst == dialect.SQLite {
			c.OnUpdate = schema.FKNoAction
			r.warn("constraint %s: SET DEFAULT on_update unsupported on SQLite; downgraded to NO ACTION", c.Name)
		}
	}
}

// --- Step 6 & 7: index transformation + fulltext strategy -------------------------------------------------

func transformIndexes(r *Result, dst dialect.Name, opts Options) error {
	t := r.Table
	plat, err := dialect.For(dst)
	if err != nil {
		return err
	}
	caps := plat.Capabilities()

	for _, idx := range t.Indexes() {
		if idx.Kind == schema.IndexFulltext {
			if err := handleFulltext(r, t, idx, dst, opts); err != nil {
				return err
			}
			t.RemoveIndex(idx.Name)
			continue
		}
		if !caps.IndexMethodOverride {
			idx.Method = ""
		}
	}

	if dst == dialect.SQLite {
		renameForSQLite(t)
	}
	return nil
}

func handleFulltext(r *Result, t *schema.Table, idx *schema.Index, dst dialect.Name, opts Options) error {
	if opts.FulltextStrategy == FulltextRemove {
		r.warn("index %s: FULLTEXT index dropped per fulltext_strategy=remove", idx.Name)
		return nil
	}

	r.IndexesConverted++
	cols := idx.ColumnNames()

	switch dst {
	case dialect.PostgreSQL:
		lang := opts.PostgreSQLLanguage
		if len(cols) == 1 {
			name := fmt.Sprintf("%s%s", idx.Name, opts.PostgreSQLGinIndexSuffix)
			r.Actions = append(r.Actions, schema.PostTransformAction{
				Type: schema.ActionPGGinIndex,
				SQL: fmt.Sprintf("CREATE INDEX %s ON %s USING GIN (to_tsvector('%s', %s))",
					name, t.Name, lang, cols[0]),
				Description: fmt.Sprintf("GIN index replacing FULLTEXT %s", idx.Name),
				TargetTable: t.Name,
			})
			r.PGGinIndexes++
			return nil
		}

		weights := opts.PostgreSQLWeights
		if len(weights) == 0 {
			weights = []string{"A", "B", "C", "D"}
		}
		vecCol := t.Name + opts.GeneratedColumnSuffix
		var parts []string
		for i, c := range cols {
			w := weights[i%len(weights)]
			parts = append(parts, fmt.Sprintf("setweight(to_tsvector('%s', coalesce(%s,'')),'%s')", lang, c, w))
		}
		expr := strings.Join(parts, " || ")

		genCol := schema.NewColumn(vecCol, schema.Other("tsvector"))
		genCol.SetGenerated(expr, schema.GeneratedStored)
		genCol.Nullable = true
		if err := t.AddColumn(genCol); err != nil {
			return &errs.TransformError{Kind: errs.TransformUnrepresentable, Table: t.Name, Reason: err.Error()}
		}
		r.Actions = append(r.Actions, schema.PostTransformAction{
			Type:        schema.ActionPGGeneratedColumn,
			SQL:         fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s tsvector GENERATED ALWAYS AS (%s) STORED", t.Name, vecCol, expr),
			Description: fmt.Sprintf("generated tsvector column replacing FULLTEXT %s", idx.Name),
			TargetTable: t.Name,
		})
		r.PGGeneratedColumns++
		r.Actions = append(r.Actions, schema.PostTransformAction{
			Type:        schema.ActionPGGinIndex,
			SQL:         fmt.Sprintf("CREATE INDEX %s_gin ON %s USING GIN(%s)", vecCol, t.Name, vecCol),
			Description: fmt.Sprintf("GIN index on generated column %s", vecCol),
			TargetTable: t.Name,
		})
		r.PGGinIndexes++
		return nil

	case dialect.SQLite:
		ftsVersion := opts.SQLiteFTSVersion
		if ftsVersion == "" {
			ftsVersion = "fts5"
		}
		ftsTable := t.Name + opts.SQLiteFTSTableSuffix
		pk := "rowid"
		if p := t.PrimaryIndex(); p != nil && len(p.Columns) == 1 {
			pk = p.Columns[0].Name
		}
		colList := strings.Join(cols, ", ")

		r.Actions = append(r.Actions, schema.PostTransformAction{
			Type: schema.ActionSQLiteFTSTable,
			SQL: fmt.Sprintf("CREATE VIRTUAL TABLE %s USING %s(%s, content='%s', content_rowid='%s')",
				ftsTable, ftsVersion, colList, t.Name, pk),
			Description: fmt.Sprintf("FTS virtual table replacing FULLTEXT %s", idx.Name),
			TargetTable: t.Name,
		})
		r.SQLiteFTSTables++

		r.Actions = append(r.Actions, schema.PostTransformAction{
			Type: schema.ActionSQLiteFTSPopulate,
			SQL: fmt.Sprintf("INSERT INTO %s(rowid, %s) SELECT %s, %s FROM %s",
				ftsTable, colList, pk, colList, t.Name),
			Description: fmt.Sprintf("initial FTS populate for %s", ftsTable),
			TargetTable: t.Name,
		})

		r.Actions = append(r.Actions, schema.PostTransformAction{
			Type:        schema.ActionSQLiteFTSTriggers,
			SQL:         sqliteFTSTriggers(t.Name, ftsTable, pk, cols),
			Description: fmt.Sprintf("AFTER INSERT/UPDATE/DELETE sync triggers for %s", ftsTable),
			TargetTable: t.Name,
		})
		return nil
	}
	return nil
}

// sqliteFTSTriggers renders three triggers as one multi-statement string.
// Callers must split it on "CREATE TRIGGER" boundaries before executing,
// per spec §4.E step 7.
func sqliteFTSTriggers(table, ftsTable, pk string, cols []string) string {
	colList := strings.Join(cols, ", ")
	newCols := make([]string, len(cols))
	for i, c := range cols {
		newCols[i] = "NEW." + c
	}
	newList := strings.Join(newCols, ", ")

	ins := fmt.Sprintf(
		"CREATE TRIGGER %s_ai AFTER INSERT ON %s BEGIN INSERT INTO %s(rowid, %s) VALUES (NEW.%s, %s); END;",
		table, table, ftsTable, colList, pk, newList,
	)
	upd := fmt.Sprintf(
		"CREATE TRIGGER %s_au AFTER UPDATE ON %s BEGIN INSERT INTO %s(%s, rowid, %s) VALUES('delete', OLD.%s, %s); INSERT INTO %s(rowid, %s) VALUES (NEW.%s, %s); END;",
		table, table, ftsTable, ftsTable, colList, pk, deleteOldCols(cols), ftsTable, colList, pk, newList,
	)
	del := fmt.Sprintf(
		"CREATE TRIGGER %s_ad AFTER DELETE ON %s BEGIN INSERT INTO %s(%s, rowid, %s) VALUES('delete', OLD.%s, %s); END;",
		table, table, ftsTable, ftsTable, colList, pk, deleteOldCols(cols),
	)
	return ins + "\n" + upd + "\n" + del
}

func deleteOldCols(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = "OLD." + c
	}
	return strings.Join(out, ", ")
}

// renameForSQLite rewrites every index name to idx_<table>_<slug>,
// globally unique on SQLite, hashing the tail if the result is too long.
func renameForSQLite(t *schema.Table) {
	for _, idx := range t.Indexes() {
		if idx.Kind == schema.IndexPrimary {
			continue
		}
		slug := strings.ToLower(strings.TrimPrefix(idx.Name, "idx_"))
		newName := fmt.Sprintf("idx_%s_%s", t.Name, slug)
		if len(newName) > 64 {
			sum := sha1.Sum([]byte(slug))
			newName = fmt.Sprintf("idx_%s_%s", t.Name, hex.EncodeToString(sum[:])[:8])
		}
		if newName == idx.Name {
			continue
		}
		renamed := *idx
		renamed.Name = newName
		t.RemoveIndex(idx.Name)
		cp := renamed
		_ = t.AddIndex(&cp)
	}
}
