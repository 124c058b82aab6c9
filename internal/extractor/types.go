package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dbmigrate/dbmigrate/internal/schema"
)

var parenArg = regexp.MustCompile(`\((\d+)(?:,(\d+))?\)`)

// mysqlType maps information_schema DATA_TYPE (+ the full COLUMN_TYPE,
// which carries "unsigned" and the enum/set value list) to the
// dialect-neutral Type, plus any length/precision/scale/enum values it
// implies.
func mysqlType(dataType, columnType string) (schema.Type, int, int, int, bool, []string) {
	unsigned := strings.Contains(columnType, "unsigned")
	length, precision, scale := parseDims(columnType)

	switch strings.ToLower(dataType) {
	case "tinyint":
		if columnType == "tinyint(1)" {
			return schema.TypeBoolean, 0, 0, 0, false, nil
		}
		return schema.TypeTinyInt, 0, 0, 0, unsigned, nil
	case "smallint":
		return schema.TypeSmallInt, 0, 0, 0, unsigned, nil
	case "mediumint":
		return schema.TypeMediumInt, 0, 0, 0, unsigned, nil
	case "int":
		return schema.TypeInt, 0, 0, 0, unsigned, nil
	case "bigint":
		return schema.TypeBigInt, 0, 0, 0, unsigned, nil
	case "decimal":
		return schema.TypeDecimal, 0, precision, scale, unsigned, nil
	case "float":
		return schema.TypeFloat, 0, 0, 0, unsigned, nil
	case "double":
		return schema.TypeDouble, 0, 0, 0, unsigned, nil
	case "char":
		return schema.TypeChar, length, 0, 0, false, nil
	case "varchar":
		return schema.TypeVarchar, length, 0, 0, false, nil
	case "tinytext":
		return schema.TypeTinyText, 0, 0, 0, false, nil
	case "text":
		return schema.TypeText, 0, 0, 0, false, nil
	case "mediumtext":
		return schema.TypeMediumText, 0, 0, 0, false, nil
	case "longtext":
		return schema.TypeLongText, 0, 0, 0, false, nil
	case "binary":
		return schema.TypeBinary, length, 0, 0, false, nil
	case "varbinary":
		return schema.TypeVarbinary, length, 0, 0, false, nil
	case "tinyblob":
		return schema.TypeTinyBlob, 0, 0, 0, false, nil
	case "blob":
		return schema.TypeBlob, 0, 0, 0, false, nil
	case "mediumblob":
		return schema.TypeMediumBlob, 0, 0, 0, false, nil
	case "longblob":
		return schema.TypeLongBlob, 0, 0, 0, false, nil
	case "date":
		return schema.TypeDate, 0, 0, 0, false, nil
	case "datetime":
		return schema.TypeDateTime, 0, 0, 0, false, nil
	case "timestamp":
		return schema.TypeTimestamp, 0, 0, 0, false, nil
	case "time":
		return schema.TypeTime, 0, 0, 0, false, nil
	case "year":
		return schema.TypeYear, 0, 0, 0, false, nil
	case "enum":
		return schema.TypeEnum, 0, 0, 0, false, parseEnumValues(columnType)
	case "set":
		return schema.TypeSet, 0, 0, 0, false, parseEnumValues(columnType)
	case "json":
		return schema.TypeJSON, 0, 0, 0, false, nil
	default:
		return schema.Other(dataType), 0, 0, 0, false, nil
	}
}

func parseDims(columnType string) (length, precision, scale int) {
	m := parenArg.FindStringSubmatch(columnType)
	if m == nil {
		return 0, 0, 0
	}
	a, _ := strconv.Atoi(m[1])
	if m[2] != "" {
		b, _ := strconv.Atoi(m[2])
		return 0, a, b
	}
	return a, 0, 0
}

// parseEnumValues extracts the quoted value list out of a COLUMN_TYPE
// like "enum('a','b','c')".
func parseEnumValues(columnType string) []string {
	start := strings.IndexByte(columnType, '(')
	end := strings.LastIndexByte(columnType, ')')
	if start < 0 || end <= start {
		return nil
	}
	inner := columnType[start+1 : end]
	var values []string
	for _, part := range strings.Split(inner, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "'")
		part = strings.TrimSuffix(part, "'")
		part = strings.ReplaceAll(part, "''", "'")
		values = append(values, part)
	}
	return values
}

// postgresType maps information_schema.columns.data_type (and udt_name
// for array/enum/domain edge cases) to the dialect-neutral Type.
func postgresType(dataType, udtName string, charMaxLen, numPrecision, numScale int) (schema.Type, int, int, int) {
	switch dataType {
	case "smallint":
		return schema.TypeSmallInt, 0, 0, 0
	case "integer":
		return schema.TypeInt, 0, 0, 0
	case "bigint":
		return schema.TypeBigInt, 0, 0, 0
	case "numeric":
		return schema.TypeNumeric, 0, numPrecision, numScale
	case "real":
		return schema.TypeFloat, 0, 0, 0
	case "double precision":
		return schema.TypeDouble, 0, 0, 0
	case "character":
		return schema.TypeChar, charMaxLen, 0, 0
	case "character varying":
		return schema.TypeVarchar, charMaxLen, 0, 0
	case "text":
		return schema.TypeText, 0, 0, 0
	case "bytea":
		return schema.TypeBytea, 0, 0, 0
	case "date":
		return schema.TypeDate, 0, 0, 0
	case "timestamp without time zone", "timestamp with time zone":
		return schema.TypeTimestamp, 0, 0, 0
	case "time without time zone", "time with time zone":
		return schema.TypeTime, 0, 0, 0
	case "boolean":
		return schema.TypeBoolean, 0, 0, 0
	case "json":
		return schema.TypeJSON, 0, 0, 0
	case "jsonb":
		return schema.TypeJSONB, 0, 0, 0
	case "uuid":
		return schema.TypeUUID, 0, 0, 0
	case "USER-DEFINED":
		return schema.Other(udtName), 0, 0, 0
	default:
		return schema.Other(dataType), 0, 0, 0
	}
}

// sqliteAffinity maps a PRAGMA table_info declared type string to the
// dialect-neutral Type via SQLite's type-affinity rules (it is free text
// set by whoever wrote the CREATE TABLE, not a closed catalog).
func sqliteAffinity(declared string) (schema.Type, int) {
	d := strings.ToUpper(declared)
	length, _, _ := parseDims(d)
	switch {
	case strings.Contains(d, "INT"):
		return schema.TypeInt, 0
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		if strings.Contains(d, "VARCHAR") {
			return schema.TypeVarchar, length
		}
		return schema.TypeText, 0
	case strings.Contains(d, "BLOB"), d == "":
		return schema.TypeBlob, 0
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"):
		return schema.TypeDouble, 0
	case strings.Contains(d, "BOOL"):
		return schema.TypeBoolean, 0
	default:
		return schema.TypeNumeric, 0
	}
}
