// Package schema defines the dialect-neutral in-memory model of a
// relational database: tables, columns, indexes, and constraints.
//
// Objects are built by the extractor or by direct construction, mutated
// only by the transformer (and only on clones), rendered once per
// migration, and otherwise treated as immutable value-ish data.
package schema

import "fmt"

// Type is a closed set of logical column types, dialect-neutral.
type Type string

const (
	TypeTinyInt     Type = "tinyint"
	TypeSmallInt    Type = "smallint"
	TypeMediumInt   Type = "mediumint"
	TypeInt         Type = "int"
	TypeBigInt      Type = "bigint"
	TypeDecimal     Type = "decimal"
	TypeNumeric     Type = "numeric"
	TypeFloat       Type = "float"
	TypeDouble      Type = "double"
	TypeReal        Type = "real"
	TypeChar        Type = "char"
	TypeVarchar     Type = "varchar"
	TypeText        Type = "text"
	TypeTinyText    Type = "tinytext"
	TypeMediumText  Type = "mediumtext"
	TypeLongText    Type = "longtext"
	TypeBinary      Type = "binary"
	TypeVarbinary   Type = "varbinary"
	TypeBlob        Type = "blob"
	TypeTinyBlob    Type = "tinyblob"
	TypeMediumBlob  Type = "mediumblob"
	TypeLongBlob    Type = "longblob"
	TypeBytea       Type = "bytea"
	TypeDate        Type = "date"
	TypeDateTime    Type = "datetime"
	TypeTimestamp   Type = "timestamp"
	TypeTime        Type = "time"
	TypeYear        Type = "year"
	TypeEnum        Type = "enum"
	TypeSet         Type = "set"
	TypeJSON        Type = "json"
	TypeJSONB       Type = "jsonb"
	TypeBoolean     Type = "boolean"
	TypeUUID        Type = "uuid"
	TypeSerial      Type = "serial"
	TypeBigSerial   Type = "bigserial"
	TypeSmallSerial Type = "smallserial"
)

// Other is the escape hatch for a type tag not in the closed set.
func Other(name string) Type { return Type("other:" + name) }

// IsOther reports whether t was produced by Other, returning the raw name.
func (t Type) IsOther() (string, bool) {
	const prefix = "other:"
	if len(t) > len(prefix) && string(t[:len(prefix)]) == prefix {
		return string(t[len(prefix):]), true
	}
	return "", false
}

// DefaultKind distinguishes the three shapes a column default can take.
type DefaultKind int

const (
	DefaultNone DefaultKind = iota
	DefaultNull
	DefaultLiteral
	DefaultExpr
)

// Sentinel expression defaults recognized across dialects.
const (
	ExprCurrentTimestamp = "CURRENT_TIMESTAMP"
	ExprCurrentDate      = "CURRENT_DATE"
	ExprCurrentTime      = "CURRENT_TIME"
)

// Default is a sum type: Literal(scalar) | Expr(string) | Null | none.
type Default struct {
	Kind    DefaultKind
	Literal any
	Expr    string
}

func NoDefault() Default           { return Default{Kind: DefaultNone} }
func NullDefault() Default         { return Default{Kind: DefaultNull} }
func LiteralDefault(v any) Default { return Default{Kind: DefaultLiteral, Literal: v} }
func ExprDefault(e string) Default { return Default{Kind: DefaultExpr, Expr: e} }

// GeneratedKind tags a generated column's storage strategy.
type GeneratedKind string

const (
	GeneratedStored  GeneratedKind = "stored"
	GeneratedVirtual GeneratedKind = "virtual"
)

// Column is a single field of a Table.
type Column struct {
	Name          string
	Type          Type
	Length        int
	Precision     int
	Scale         int
	Nullable      bool
	AutoIncrement bool
	Unsigned      bool
	Default       Default
	Comment       string
	EnumValues    []string

	GeneratedExpr string
	GeneratedKind GeneratedKind
	Generated     bool

	Options map[string]string

	table *Table // weak back-pointer, rewired on clone
}

// NewColumn returns a column with spec defaults (nullable=true).
func NewColumn(name string, t Type) *Column {
	return &Column{
		Name:     name,
		Type:     t,
		Nullable: true,
		Default:  NoDefault(),
		Options:  map[string]string{},
	}
}

// SetGenerated sets the generated-column expression; Generated becomes true,
// matching the invariant "setting a generated expression implies generated=true".
func (c *Column) SetGenerated(expr string, kind GeneratedKind) {
	c.GeneratedExpr = expr
	c.GeneratedKind = kind
	c.Generated = true
}

// Table returns the owning table, or nil if detached.
func (c *Column) Table() *Table { return c.table }

func (c *Column) clone() *Column {
	cp := *c
	cp.table = nil
	cp.EnumValues = append([]string(nil), c.EnumValues...)
	cp.Options = make(map[string]string, len(c.Options))
	for k, v := range c.Options {
		cp.Options[k] = v
	}
	return &cp
}

// IndexKind is the closed set of index kinds.
type IndexKind string

const (
	IndexPrimary  IndexKind = "primary"
	IndexUnique   IndexKind = "unique"
	IndexBTree    IndexKind = "btree"
	IndexHash     IndexKind = "hash"
	IndexFulltext IndexKind = "fulltext"
	IndexSpatial  IndexKind = "spatial"
	IndexGIN      IndexKind = "gin"
	IndexGIST     IndexKind = "gist"
)

// Direction of an index column.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// IndexColumn references a column within an Index, with an optional
// prefix length (MySQL-style) and sort direction.
type IndexColumn struct {
	Name      string
	Prefix    int
	Direction Direction
}

// Index is a named, ordered set of column references.
type Index struct {
	Name      string
	Kind      IndexKind
	Columns   []IndexColumn
	Method    string
	Predicate string

	table *Table
}

func (i *Index) clone() *Index {
	cp := *i
	cp.table = nil
	cp.Columns = append([]IndexColumn(nil), i.Columns...)
	return &cp
}

// ColumnNames returns the names of the columns the index covers, in order.
func (i *Index) ColumnNames() []string {
	names := make([]string, len(i.Columns))
	for idx, c := range i.Columns {
		names[idx] = c.Name
	}
	return names
}

func (i *Index) IsPrimary() bool { return i.Kind == IndexPrimary }
func (i *Index) IsUnique() bool  { return i.Kind == IndexUnique || i.Kind == IndexPrimary }

// ConstraintKind is the closed set of constraint kinds.
type ConstraintKind string

const (
	ConstraintPrimary ConstraintKind = "primary"
	ConstraintUnique  ConstraintKind = "unique"
	ConstraintForeign ConstraintKind = "foreign"
	ConstraintCheck   ConstraintKind = "check"
)

// FKAction is the closed set of ON DELETE / ON UPDATE actions.
type FKAction string

const (
	FKCascade    FKAction = "CASCADE"
	FKSetNull    FKAction = "SET NULL"
	FKSetDefault FKAction = "SET DEFAULT"
	FKRestrict   FKAction = "RESTRICT"
	FKNoAction   FKAction = "NO ACTION"
)

// Constraint is a named table-level constraint.
type Constraint struct {
	Name    string
	Kind    ConstraintKind
	Columns []string

	// Foreign-key fields.
	RefTable  string
	RefColumn []string
	OnDelete  FKAction
	OnUpdate  FKAction

	// Check-constraint field; passed through verbatim, never parsed.
	Predicate string

	table *Table
}

func (c *Constraint) clone() *Constraint {
	cp := *c
	cp.table = nil
	cp.Columns = append([]string(nil), c.Columns...)
	cp.RefColumn = append([]string(nil), c.RefColumn...)
	return &cp
}

func (c *Constraint) IsPrimary() bool { return c.Kind == ConstraintPrimary }
func (c *Constraint) IsUnique() bool  { return c.Kind == ConstraintUnique || c.Kind == ConstraintPrimary }
func (c *Constraint) IsForeign() bool { return c.Kind == ConstraintForeign }
func (c *Constraint) ColumnNames() []string { return c.Columns }

// Table is the dialect-neutral model of a relational table.
type Table struct {
	Name string

	columns    []*Column
	columnIdx  map[string]int // exact-case name -> index into columns
	lowerIdx   map[string]int // lowercased name -> index, for case-insensitive lookup

	indexes     map[string]*Index
	indexOrder  []string
	constraints map[string]*Constraint
	constraintOrder []string

	Engine    string
	Charset   string
	Collation string
	Comment   string
	Options   map[string]string

	RowCount   int64
	OriginalDDL string

	// Data is an in-memory buffer of rows used only by the transformer/
	// migrator paths; it is never populated by Extract.
	Data [][]any
}

// NewTable returns an empty table ready to accept columns.
func NewTable(name string) *Table {
	return &Table{
		Name:        name,
		columnIdx:   map[string]int{},
		lowerIdx:    map[string]int{},
		indexes:     map[string]*Index{},
		constraints: map[string]*Constraint{},
		Options:     map[string]string{},
	}
}

// AddColumn appends a column, rejecting a duplicate (case-sensitive) name.
func (t *Table) AddColumn(c *Column) error {
	if _, exists := t.columnIdx[c.Name]; exists {
		return fmt.Errorf("schema: table %q already has column %q", t.Name, c.Name)
	}
	c.table = t
	t.columnIdx[c.Name] = len(t.columns)
	t.lowerIdx[lower(c.Name)] = len(t.columns)
	t.columns = append(t.columns, c)
	return nil
}

// RemoveColumn detaches a column by name, if present.
func (t *Table) RemoveColumn(name string) {
	idx, ok := t.columnIdx[name]
	if !ok {
		return
	}
	removed := t.columns[idx]
	removed.table = nil
	t.columns = append(t.columns[:idx], t.columns[idx+1:]...)
	delete(t.columnIdx, name)
	delete(t.lowerIdx, lower(name))
	for n, i := range t.columnIdx {
		if i > idx {
			t.columnIdx[n] = i - 1
		}
	}
	for n, i := range t.lowerIdx {
		if i > idx {
			t.lowerIdx[n] = i - 1
		}
	}
}

// Columns returns the columns in insertion order. The slice is a copy of
// the header only; callers must not mutate table structure through it.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Column looks up a column by exact name.
func (t *Table) Column(name string) (*Column, bool) {
	idx, ok := t.columnIdx[name]
	if !ok {
		return nil, false
	}
	return t.columns[idx], true
}

// ColumnCI looks up a column case-insensitively.
func (t *Table) ColumnCI(name string) (*Column, bool) {
	idx, ok := t.lowerIdx[lower(name)]
	if !ok {
		return nil, false
	}
	return t.columns[idx], true
}

// HasColumn reports whether a column with the exact name exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columnIdx[name]
	return ok
}

// AddIndex attaches an index, rejecting a second primary index or one
// referencing a nonexistent column.
func (t *Table) AddIndex(idx *Index) error {
	if idx.Kind == IndexPrimary {
		if existing := t.PrimaryIndex(); existing != nil {
			return fmt.Errorf("schema: table %q already has a primary index %q", t.Name, existing.Name)
		}
	}
	for _, c := range idx.Columns {
		if !t.HasColumn(c.Name) {
			return fmt.Errorf("schema: index %q references unknown column %q on table %q", idx.Name, c.Name, t.Name)
		}
	}
	idx.table = t
	if _, exists := t.indexes[idx.Name]; !exists {
		t.indexOrder = append(t.indexOrder, idx.Name)
	}
	t.indexes[idx.Name] = idx
	return nil
}

// RemoveIndex detaches an index by name.
func (t *Table) RemoveIndex(name string) {
	if idx, ok := t.indexes[name]; ok {
		idx.table = nil
	}
	delete(t.indexes, name)
	for i, n := range t.indexOrder {
		if n == name {
			t.indexOrder = append(t.indexOrder[:i], t.indexOrder[i+1:]...)
			break
		}
	}
}

// Indexes returns indexes in the order they were added.
func (t *Table) Indexes() []*Index {
	out := make([]*Index, 0, len(t.indexOrder))
	for _, n := range t.indexOrder {
		out = append(out, t.indexes[n])
	}
	return out
}

// Index looks up an index by name.
func (t *Table) Index(name string) (*Index, bool) {
	idx, ok := t.indexes[name]
	return idx, ok
}

// PrimaryIndex returns the table's single primary index, or nil.
func (t *Table) PrimaryIndex() *Index {
	for _, n := range t.indexOrder {
		if t.indexes[n].Kind == IndexPrimary {
			return t.indexes[n]
		}
	}
	return nil
}

// AddConstraint attaches a constraint, rejecting one whose columns don't exist.
func (t *Table) AddConstraint(c *Constraint) error {
	for _, name := range c.Columns {
		if !t.HasColumn(name) {
			return fmt.Errorf("schema: constraint %q references unknown column %q on table %q", c.Name, name, t.Name)
		}
	}
	c.table = t
	if _, exists := t.constraints[c.Name]; !exists {
		t.constraintOrder = append(t.constraintOrder, c.Name)
	}
	t.constraints[c.Name] = c
	return nil
}

// RemoveConstraint detaches a constraint by name.
func (t *Table) RemoveConstraint(name string) {
	if c, ok := t.constraints[name]; ok {
		c.table = nil
	}
	delete(t.constraints, name)
	for i, n := range t.constraintOrder {
		if n == name {
			t.constraintOrder = append(t.constraintOrder[:i], t.constraintOrder[i+1:]...)
			break
		}
	}
}

// Constraints returns constraints in the order they were added.
func (t *Table) Constraints() []*Constraint {
	out := make([]*Constraint, 0, len(t.constraintOrder))
	for _, n := range t.constraintOrder {
		out = append(out, t.constraints[n])
	}
	return out
}

// Constraint looks up a constraint by name.
func (t *Table) Constraint(name string) (*Constraint, bool) {
	c, ok := t.constraints[name]
	return c, ok
}

// ForeignKeys returns the table's foreign-key constraints, in add order.
func (t *Table) ForeignKeys() []*Constraint {
	var out []*Constraint
	for _, n := range t.constraintOrder {
		if t.constraints[n].Kind == ConstraintForeign {
			out = append(out, t.constraints[n])
		}
	}
	return out
}

// Clone returns a deep copy of the table under the same name; it is the
// structural building block CloneWithName uses. All back-pointers in the
// copy refer to the copy, never the original.
func (t *Table) Clone() *Table {
	return t.CloneWithName(t.Name)
}

// CloneWithName is the only supported "rename" path: it deep-copies
// columns, indexes, and constraints and rewires every back-reference to
// the new table.
func (t *Table) CloneWithName(name string) *Table {
	nt := NewTable(name)
	nt.Engine = t.Engine
	nt.Charset = t.Charset
	nt.Collation = t.Collation
	nt.Comment = t.Comment
	nt.RowCount = t.RowCount
	nt.OriginalDDL = t.OriginalDDL
	nt.Options = make(map[string]string, len(t.Options))
	for k, v := range t.Options {
		nt.Options[k] = v
	}
	if t.Data != nil {
		nt.Data = make([][]any, len(t.Data))
		copy(nt.Data, t.Data)
	}

	for i, c := range t.columns {
		cp := c.clone()
		cp.table = nt
		nt.columns = append(nt.columns, cp)
		nt.columnIdx[cp.Name] = i
		nt.lowerIdx[lower(cp.Name)] = i
	}
	for _, n := range t.indexOrder {
		cp := t.indexes[n].clone()
		cp.table = nt
		nt.indexes[n] = cp
		nt.indexOrder = append(nt.indexOrder, n)
	}
	for _, n := range t.constraintOrder {
		cp := t.constraints[n].clone()
		cp.table = nt
		nt.constraints[n] = cp
		nt.constraintOrder = append(nt.constraintOrder, n)
	}
	return nt
}

// Equal reports structural equality: same columns (name, type, nullable,
// etc.), same indexes, and same constraints, ignoring back-pointers and
// the in-memory Data buffer. Used by the transformer idempotence tests.
func (t *Table) Equal(o *Table) bool {
	if t.Name != o.Name || len(t.columns) != len(o.columns) {
		return false
	}
	for i, c := range t.columns {
		oc := o.columns[i]
		if c.Name != oc.Name || c.Type != oc.Type || c.Length != oc.Length ||
			c.Precision != oc.Precision || c.Scale != oc.Scale ||
			c.Nullable != oc.Nullable || c.AutoIncrement != oc.AutoIncrement ||
			c.Unsigned != oc.Unsigned || c.Generated != oc.Generated ||
			c.Default != oc.Default {
			return false
		}
	}
	if len(t.indexOrder) != len(o.indexOrder) {
		return false
	}
	for _, n := range t.indexOrder {
		oi, ok := o.indexes[n]
		if !ok || !sameIndex(t.indexes[n], oi) {
			return false
		}
	}
	if len(t.constraintOrder) != len(o.constraintOrder) {
		return false
	}
	for _, n := range t.constraintOrder {
		oc, ok := o.constraints[n]
		if !ok || !sameConstraint(t.constraints[n], oc) {
			return false
		}
	}
	return true
}

func sameIndex(a, b *Index) bool {
	if a.Kind != b.Kind || a.Method != b.Method || a.Predicate != b.Predicate || len(a.Columns) != len(b.Columns) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return false
		}
	}
	return true
}

func sameConstraint(a, b *Constraint) bool {
	if a.Kind != b.Kind || a.RefTable != b.RefTable || a.OnDelete != b.OnDelete ||
		a.OnUpdate != b.OnUpdate || a.Predicate != b.Predicate ||
		len(a.Columns) != len(b.Columns) || len(a.RefColumn) != len(b.RefColumn) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return false
		}
	}
	for i := range a.RefColumn {
		if a.RefColumn[i] != b.RefColumn[i] {
			return false
		}
	}
	return true
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
