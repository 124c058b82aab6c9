// Package renderer turns a Table plus a dialect.Platform into the
// ordered DDL statements that create it (spec §4.F). It never talks to
// a database; the orchestrator is the one that executes what comes out.
package renderer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dbmigrate/dbmigrate/internal/dialect"
	"github.com/dbmigrate/dbmigrate/internal/errs"
	"github.com/dbmigrate/dbmigrate/internal/schema"
)

// Options controls which statement groups Render emits, mirroring the
// relevant slice of the orchestrator's options map (spec §6).
type Options struct {
	IncludeIndexes      bool
	IncludeConstraints  bool
	IncludeDropStatement bool
}

// DefaultOptions matches the normative defaults in spec §6.
func DefaultOptions() Options {
	return Options{IncludeIndexes: true, IncludeConstraints: true}
}

// Render returns the ordered DDL statements for table on plat: an
// optional DROP, the CREATE TABLE (inline columns, inline primary key,
// inline checks where the dialect allows), then CREATE INDEX and ALTER
// TABLE ... ADD CONSTRAINT statements. It emits no trigger statements:
// timestamp-touch triggers come from the transformer's post-transform
// actions.
func Render(table *schema.Table, plat dialect.Platform, opts Options) ([]string, error) {
	var stmts []string

	if opts.IncludeDropStatement {
		stmts = append(stmts, fmt.Sprintf("DROP TABLE IF EXISTS %s", plat.Quote(table.Name)))
	}

	create, err := renderCreateTable(table, plat)
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, create)

	if opts.IncludeIndexes {
		for _, idx := range table.Indexes() {
			if idx.IsPrimary() {
				continue // inlined into CREATE TABLE
			}
			stmt, err := renderIndex(table, idx, plat)
			if err != nil {
				return nil, err
			}
			if stmt != "" {
				stmts = append(stmts, stmt)
			}
		}
	}

	if opts.IncludeConstraints {
		for _, c := range table.Constraints() {
			if c.IsPrimary() || c.Kind == schema.ConstraintCheck {
				continue // primary is inline, check is inline where supported
			}
			stmts = append(stmts, renderAddConstraint(table, c, plat))
		}
	}

	// Timestamp-touch triggers are synthesized by the transformer as
	// PostTransformActions (MySQL keeps ON UPDATE inline instead), so
	// Render has no standalone trigger objects of its own to emit here.

	return stmts, nil
}

func renderCreateTable(table *schema.Table, plat dialect.Platform) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", plat.Quote(table.Name))

	pk := table.PrimaryIndex()
	sqliteRowidPK := plat.Name() == dialect.SQLite && pk != nil && len(pk.Columns) == 1 && func() bool {
		c, ok := table.Column(pk.Columns[0].Name)
		return ok && c.AutoIncrement
	}()

	var lines []string
	for _, col := range table.Columns() {
		inline := sqliteRowidPK && pk.Columns[0].Name == col.Name
		line, err := renderColumn(col, plat, inline)
		if err != nil {
			return "", err
		}
		lines = append(lines, "  "+line)
	}

	if pk != nil && !sqliteRowidPK {
		lines = append(lines, "  "+renderInlinePrimaryKey(pk, plat))
	}

	for _, c := range table.Constraints() {
		if c.Kind == schema.ConstraintCheck {
			lines = append(lines, fmt.Sprintf("  CONSTRAINT %s CHECK (%s)", plat.Quote(c.Name), c.Predicate))
		}
	}

	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)")
	b.WriteString(tableSuffix(table, plat))
	return b.String(), nil
}

func tableSuffix(table *schema.Table, plat dialect.Platform) string {
	if plat.Name() != dialect.MySQL {
		return ""
	}
	var parts []string
	if table.Engine != "" {
		parts = append(parts, "ENGINE="+table.Engine)
	} else {
		parts = append(parts, "ENGINE=InnoDB")
	}
	if table.Charset != "" {
		parts = append(parts, "DEFAULT CHARSET="+table.Charset)
	}
	if table.Collation != "" {
		parts = append(parts, "COLLATE="+table.Collation)
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

func renderInlinePrimaryKey(pk *schema.Index, plat dialect.Platform) string {
	names := make([]string, len(pk.Columns))
	for i, c := range pk.Columns {
		names[i] = plat.Quote(c.Name)
	}
	return fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(names, ", "))
}

// columnTypeName spells out the column's type, special-casing ENUM/SET:
// Platform.TypeName has no room for a value list or a generated type
// name, so the two cases the transformer can hand it (MySQL's inline
// ENUM(...) and PostgreSQL's native enum type from the pg_enum_type
// post-action) are resolved here instead.
func columnTypeName(col *schema.Column, plat dialect.Platform) string {
	if col.Type == schema.TypeEnum || col.Type == schema.TypeSet {
		switch plat.Name() {
		case dialect.MySQL:
			kind := "ENUM"
			if col.Type == schema.TypeSet {
				kind = "SET"
			}
			quoted := make([]string, len(col.EnumValues))
			for i, v := range col.EnumValues {
				quoted[i] = plat.QuoteString(v)
			}
			return fmt.Sprintf("%s(%s)", kind, strings.Join(quoted, ","))
		case dialect.PostgreSQL:
			// native_pg_enum path: the transformer emitted a
			// pg_enum_type CREATE TYPE action spelled <table>_<col>.
			return col.Table().Name + "_" + col.Name
		}
	}

	if col.AutoIncrement && plat.Name() == dialect.PostgreSQL {
		switch col.Type {
		case schema.TypeTinyInt, schema.TypeSmallInt:
			return "smallserial"
		case schema.TypeMediumInt, schema.TypeInt:
			return "serial"
		case schema.TypeBigInt:
			return "bigserial"
		}
	}

	spec := dialect.TypeSpec{
		Type:      col.Type,
		Length:    col.Length,
		Precision: col.Precision,
		Scale:     col.Scale,
		Unsigned:  col.Unsigned,
	}
	return plat.TypeName(spec)
}

func renderColumn(col *schema.Column, plat dialect.Platform, inlineRowidPK bool) (string, error) {
	typeName := columnTypeName(col, plat)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", plat.Quote(col.Name), typeName)

	if col.Generated {
		fmt.Fprintf(&b, " GENERATED ALWAYS AS (%s) %s", col.GeneratedExpr, strings.ToUpper(string(col.GeneratedKind)))
		return b.String(), nil
	}

	if inlineRowidPK {
		b.WriteString(" PRIMARY KEY AUTOINCREMENT")
	}

	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}

	if col.AutoIncrement && plat.Name() == dialect.MySQL {
		b.WriteString(" AUTO_INCREMENT")
	}
	// PostgreSQL encodes auto-increment in the serial/bigserial type name
	// chosen by columnTypeName; SQLite's form is the inline suffix above.

	defClause, err := renderDefault(col, plat)
	if err != nil {
		return "", err
	}
	if defClause != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(defClause)
	}

	if onUpdate, ok := col.Options["on_update"]; ok && plat.Name() == dialect.MySQL {
		fmt.Fprintf(&b, " ON UPDATE %s", onUpdate)
	}

	if col.Comment != "" && plat.Name() == dialect.MySQL {
		fmt.Fprintf(&b, " COMMENT %s", plat.QuoteString(col.Comment))
	}

	return b.String(), nil
}

func renderDefault(col *schema.Column, plat dialect.Platform) (string, error) {
	switch col.Default.Kind {
	case schema.DefaultNone:
		return "", nil
	case schema.DefaultNull:
		return "NULL", nil
	case schema.DefaultExpr:
		return col.Default.Expr, nil
	case schema.DefaultLiteral:
		return renderLiteral(col.Default.Literal, plat)
	default:
		return "", &errs.RenderError{Table: col.Table().Name, Reason: fmt.Sprintf("column %q: unknown default kind", col.Name)}
	}
}

func renderLiteral(v any, plat dialect.Platform) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if plat.Name() == dialect.PostgreSQL {
			if val {
				return "true", nil
			}
			return "false", nil
		}
		if val {
			return "1", nil
		}
		return "0", nil
	case string:
		return plat.QuoteString(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return plat.QuoteString(fmt.Sprintf("%v", val)), nil
	}
}

func renderIndex(table *schema.Table, idx *schema.Index, plat dialect.Platform) (string, error) {
	names := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		n := plat.Quote(c.Name)
		if c.Prefix > 0 && plat.Name() == dialect.MySQL {
			n = fmt.Sprintf("%s(%d)", n, c.Prefix)
		}
		if c.Direction == schema.Desc {
			n += " DESC"
		}
		names[i] = n
	}

	unique := ""
	if idx.IsUnique() {
		unique = "UNIQUE "
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE %sINDEX %s ON %s", unique, plat.Quote(idx.Name), plat.Quote(table.Name))
	if idx.Method != "" {
		fmt.Fprintf(&b, " USING %s", idx.Method)
	}
	fmt.Fprintf(&b, " (%s)", strings.Join(names, ", "))
	if idx.Predicate != "" {
		fmt.Fprintf(&b, " WHERE %s", idx.Predicate)
	}
	return b.String(), nil
}

func renderAddConstraint(table *schema.Table, c *schema.Constraint, plat dialect.Platform) string {
	switch c.Kind {
	case schema.ConstraintUnique:
		names := quoteAll(c.Columns, plat)
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)",
			plat.Quote(table.Name), plat.Quote(c.Name), strings.Join(names, ", "))
	case schema.ConstraintForeign:
		cols := quoteAll(c.Columns, plat)
		refCols := quoteAll(c.RefColumn, plat)
		var b strings.Builder
		fmt.Fprintf(&b, "ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			plat.Quote(table.Name), plat.Quote(c.Name), strings.Join(cols, ", "),
			plat.Quote(c.RefTable), strings.Join(refCols, ", "))
		if c.OnDelete != "" {
			fmt.Fprintf(&b, " ON DELETE %s", c.OnDelete)
		}
		if c.OnUpdate != "" {
			fmt.Fprintf(&b, " ON UPDATE %s", c.OnUpdate)
		}
		return b.String()
	default:
		return ""
	}
}

func quoteAll(names []string, plat dialect.Platform) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = plat.Quote(n)
	}
	return out
}
