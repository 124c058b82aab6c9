package dialect

import (
	"strings"

	"github.com/dbmigrate/dbmigrate/internal/schema"
)

type sqlitePlatform struct {
	reserved map[string]struct{}
}

// NewSQLite returns the SQLite Platform value object.
func NewSQLite() Platform {
	return &sqlitePlatform{
		reserved: newReservedSet("rowid", "without", "virtual", "autoincrement"),
	}
}

func (p *sqlitePlatform) Name() Name { return SQLite }

func (p *sqlitePlatform) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (p *sqlitePlatform) QuoteString(literal string) string {
	return "'" + strings.ReplaceAll(literal, "'", "''") + "'"
}

func (p *sqlitePlatform) ReservedWords() map[string]struct{} { return p.reserved }
func (p *sqlitePlatform) IsReserved(identifier string) bool   { return isReserved(p.reserved, identifier) }

func (p *sqlitePlatform) Capabilities() Capabilities {
	return Capabilities{
		Unsigned:          false,
		NativeEnum:        false,
		OnUpdateCurrentTS: false,
		Fulltext:          false,
		GIN:               false,
		NativeBoolean:     false,
		IndexMethodOverride: false,
		FKSetDefault:      false,
	}
}

// TypeName follows SQLite's type-affinity model: the spelling mostly
// doesn't matter at runtime, but the transformer still picks the closest
// affinity so introspection tools show something sensible.
func (p *sqlitePlatform) TypeName(spec TypeSpec) string {
	switch spec.Type {
	case schema.TypeTinyInt, schema.TypeSmallInt, schema.TypeMediumInt, schema.TypeInt,
		schema.TypeBigInt, schema.TypeSerial, schema.TypeBigSerial, schema.TypeSmallSerial,
		schema.TypeYear, schema.TypeBoolean:
		return "integer"
	case schema.TypeDecimal, schema.TypeNumeric, schema.TypeFloat, schema.TypeDouble, schema.TypeReal:
		return "real"
	case schema.TypeChar, schema.TypeVarchar, schema.TypeText, schema.TypeTinyText,
		schema.TypeMediumText, schema.TypeLongText, schema.TypeDate, schema.TypeDateTime,
		schema.TypeTimestamp, schema.TypeTime, schema.TypeUUID, schema.TypeEnum, schema.TypeSet,
		schema.TypeJSON, schema.TypeJSONB:
		return "text"
	case schema.TypeBinary, schema.TypeVarbinary, schema.TypeBlob, schema.TypeTinyBlob,
		schema.TypeMediumBlob, schema.TypeLongBlob, schema.TypeBytea:
		return "blob"
	default:
		if raw, ok := spec.Type.IsOther(); ok {
			return raw
		}
		return "blob"
	}
}
