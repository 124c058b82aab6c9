package dialect

import (
	"fmt"
	"strings"

	"github.com/dbmigrate/dbmigrate/internal/schema"
)

type postgresPlatform struct {
	reserved map[string]struct{}
}

// NewPostgreSQL returns the PostgreSQL Platform value object.
func NewPostgreSQL() Platform {
	return &postgresPlatform{
		reserved: newReservedSet("returning", "using", "cascade", "tablespace", "inherits"),
	}
}

func (p *postgresPlatform) Name() Name { return PostgreSQL }

func (p *postgresPlatform) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (p *postgresPlatform) QuoteString(literal string) string {
	return "'" + strings.ReplaceAll(literal, "'", "''") + "'"
}

func (p *postgresPlatform) ReservedWords() map[string]struct{} { return p.reserved }
func (p *postgresPlatform) IsReserved(identifier string) bool   { return isReserved(p.reserved, identifier) }

func (p *postgresPlatform) Capabilities() Capabilities {
	return Capabilities{
		Unsigned:          false,
		NativeEnum:        true,
		OnUpdateCurrentTS: false,
		Fulltext:          false,
		GIN:               true,
		NativeBoolean:     true,
		IndexMethodOverride: true,
		FKSetDefault:      true,
	}
}

func (p *postgresPlatform) TypeName(spec TypeSpec) string {
	switch spec.Type {
	case schema.TypeTinyInt, schema.TypeSmallInt, schema.TypeSmallSerial:
		if spec.Type == schema.TypeSmallSerial {
			return "smallserial"
		}
		return "smallint"
	case schema.TypeMediumInt, schema.TypeInt:
		return "integer"
	case schema.TypeSerial:
		return "serial"
	case schema.TypeBigInt:
		return "bigint"
	case schema.TypeBigSerial:
		return "bigserial"
	case schema.TypeDecimal, schema.TypeNumeric:
		if spec.Precision > 0 {
			return fmt.Sprintf("numeric(%d,%d)", spec.Precision, spec.Scale)
		}
		return "numeric"
	case schema.TypeFloat:
		return "real"
	case schema.TypeDouble, schema.TypeReal:
		return "double precision"
	case schema.TypeChar:
		return fmt.Sprintf("char(%d)", nonZero(spec.Length, 1))
	case schema.TypeVarchar:
		return fmt.Sprintf("varchar(%d)", nonZero(spec.Length, 255))
	case schema.TypeText, schema.TypeTinyText, schema.TypeMediumText, schema.TypeLongText:
		return "text"
	case schema.TypeBinary, schema.TypeVarbinary, schema.TypeBlob, schema.TypeTinyBlob,
		schema.TypeMediumBlob, schema.TypeLongBlob, schema.TypeBytea:
		return "bytea"
	case schema.TypeDate:
		return "date"
	case schema.TypeDateTime, schema.TypeTimestamp:
		return "timestamp"
	case schema.TypeTime:
		return "time"
	case schema.TypeYear:
		return "integer"
	case schema.TypeJSON:
		return "json"
	case schema.TypeJSONB:
		return "jsonb"
	case schema.TypeBoolean:
		return "boolean"
	case schema.TypeUUID:
		return "uuid"
	case schema.TypeEnum, schema.TypeSet:
		return "text" // overridden by the transformer when native_pg_enum is selected
	default:
		if raw, ok := spec.Type.IsOther(); ok {
			return raw
		}
		return string(spec.Type)
	}
}
