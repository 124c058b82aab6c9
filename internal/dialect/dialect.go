// Package dialect provides per-database-engine value objects: identifier
// quoting, type spellings, reserved words, and capability flags. A
// Platform never carries mutable state — it is safe to share across
// goroutines and across migration runs.
package dialect

import (
	"fmt"
	"strings"

	"github.com/dbmigrate/dbmigrate/internal/schema"
)

// Name is one of the three supported dialects.
type Name string

const (
	MySQL      Name = "mysql"
	PostgreSQL Name = "postgresql"
	SQLite     Name = "sqlite"
)

// TypeSpec is the shape-carrying input to a Platform's type spelling.
type TypeSpec struct {
	Type      schema.Type
	Length    int
	Precision int
	Scale     int
	Unsigned  bool
}

// Capabilities flags what a dialect natively supports; the transformer
// consults these to decide which downgrades and post-actions to apply.
type Capabilities struct {
	Unsigned               bool
	NativeEnum             bool
	OnUpdateCurrentTS      bool
	Fulltext               bool
	GIN                    bool
	NativeBoolean           bool
	IndexMethodOverride    bool
	FKSetDefault           bool
}

// Platform is a per-dialect value object.
type Platform interface {
	Name() Name
	Quote(identifier string) string
	QuoteString(literal string) string
	TypeName(spec TypeSpec) string
	ReservedWords() map[string]struct{}
	IsReserved(identifier string) bool
	Capabilities() Capabilities
}

// reservedBaseline is the ~45-keyword shared baseline every dialect extends.
var reservedBaseline = []string{
	"select", "insert", "update", "delete", "from", "where", "join",
	"inner", "outer", "left", "right", "on", "group", "order", "by",
	"having", "limit", "offset", "union", "all", "distinct", "as",
	"table", "create", "alter", "drop", "index", "primary", "key",
	"foreign", "references", "constraint", "default", "null", "not",
	"and", "or", "in", "is", "like", "between", "case", "when", "then",
	"else", "end", "values",
}

func newReservedSet(extra ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(reservedBaseline)+len(extra))
	for _, w := range reservedBaseline {
		set[w] = struct{}{}
	}
	for _, w := range extra {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

func isReserved(set map[string]struct{}, identifier string) bool {
	_, ok := set[strings.ToLower(identifier)]
	return ok
}

// For implements For(dialect.Name) Platform for the three supported dialects.
func For(n Name) (Platform, error) {
	switch n {
	case MySQL:
		return NewMySQL(), nil
	case PostgreSQL:
		return NewPostgreSQL(), nil
	case SQLite:
		return NewSQLite(), nil
	default:
		return nil, fmt.Errorf("dialect: unknown dialect %q", n)
	}
}
