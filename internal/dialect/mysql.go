package dialect

import (
	"fmt"
	"strings"

	"github.com/dbmigrate/dbmigrate/internal/schema"
)

type mysqlPlatform struct {
	reserved map[string]struct{}
}

// NewMySQL returns the MySQL Platform value object.
func NewMySQL() Platform {
	return &mysqlPlatform{
		reserved: newReservedSet("unsigned", "auto_increment", "engine", "charset", "fulltext", "tinytext", "longtext"),
	}
}

func (p *mysqlPlatform) Name() Name { return MySQL }

func (p *mysqlPlatform) Quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

func (p *mysqlPlatform) QuoteString(literal string) string {
	return "'" + strings.ReplaceAll(literal, "'", "''") + "'"
}

func (p *mysqlPlatform) ReservedWords() map[string]struct{} { return p.reserved }
func (p *mysqlPlatform) IsReserved(identifier string) bool   { return isReserved(p.reserved, identifier) }

func (p *mysqlPlatform) Capabilities() Capabilities {
	return Capabilities{
		Unsigned:          true,
		NativeEnum:        true,
		OnUpdateCurrentTS: true,
		Fulltext:          true,
		GIN:               false,
		NativeBoolean:     false,
		IndexMethodOverride: true,
		FKSetDefault:      true,
	}
}

func (p *mysqlPlatform) TypeName(spec TypeSpec) string {
	unsigned := ""
	if spec.Unsigned {
		unsigned = " unsigned"
	}
	switch spec.Type {
	case schema.TypeTinyInt:
		return "tinyint" + unsigned
	case schema.TypeSmallInt, schema.TypeSmallSerial:
		return "smallint" + unsigned
	case schema.TypeMediumInt:
		return "mediumint" + unsigned
	case schema.TypeInt, schema.TypeSerial:
		return "int" + unsigned
	case schema.TypeBigInt, schema.TypeBigSerial:
		return "bigint" + unsigned
	case schema.TypeDecimal, schema.TypeNumeric:
		if spec.Precision > 0 {
			return fmt.Sprintf("decimal(%d,%d)%s", spec.Precision, spec.Scale, unsigned)
		}
		return "decimal" + unsigned
	case schema.TypeFloat:
		return "float" + unsigned
	case schema.TypeDouble, schema.TypeReal:
		return "double" + unsigned
	case schema.TypeChar:
		return fmt.Sprintf("char(%d)", nonZero(spec.Length, 1))
	case schema.TypeVarchar:
		return fmt.Sprintf("varchar(%d)", nonZero(spec.Length, 255))
	case schema.TypeText:
		return "text"
	case schema.TypeTinyText:
		return "tinytext"
	case schema.TypeMediumText:
		return "mediumtext"
	case schema.TypeLongText:
		return "longtext"
	case schema.TypeBinary:
		return fmt.Sprintf("binary(%d)", nonZero(spec.Length, 1))
	case schema.TypeVarbinary:
		return fmt.Sprintf("varbinary(%d)", nonZero(spec.Length, 255))
	case schema.TypeBlob, schema.TypeBytea:
		return "blob"
	case schema.TypeTinyBlob:
		return "tinyblob"
	case schema.TypeMediumBlob:
		return "mediumblob"
	case schema.TypeLongBlob:
		return "longblob"
	case schema.TypeDate:
		return "date"
	case schema.TypeDateTime:
		return "datetime"
	case schema.TypeTimestamp:
		return "timestamp"
	case schema.TypeTime:
		return "time"
	case schema.TypeYear:
		return "year"
	case schema.TypeJSON, schema.TypeJSONB:
		return "json"
	case schema.TypeBoolean:
		return "tinyint(1)"
	case schema.TypeUUID:
		return "char(36)"
	default:
		if raw, ok := spec.Type.IsOther(); ok {
			return raw
		}
		return string(spec.Type)
	}
}

func nonZero(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
