package transformer

// EnumConversion selects how ENUM/SET columns are rewritten for a
// non-MySQL target.
type EnumConversion string

const (
	EnumTextWithCheck EnumConversion = "text_with_check"
	EnumNativePG      EnumConversion = "native_pg_enum"
)

// FulltextStrategy selects how source FULLTEXT indexes are handled.
type FulltextStrategy string

const (
	FulltextConvert FulltextStrategy = "convert"
	FulltextRemove  FulltextStrategy = "remove"
)

// Options mirrors the relevant slice of the orchestrator's options map
// (spec §6) that the transformer consults.
type Options struct {
	EnumConversion           EnumConversion
	FulltextStrategy         FulltextStrategy
	PostgreSQLLanguage       string
	PostgreSQLWeights        []string
	SQLiteFTSVersion         string
	PostgreSQLGinIndexSuffix string
	SQLiteFTSTableSuffix     string
	GeneratedColumnSuffix    string
}

// DefaultOptions matches the normative defaults in spec §6.
func DefaultOptions() Options {
	return Options{
		EnumConversion:           EnumTextWithCheck,
		FulltextStrategy:         FulltextConvert,
		PostgreSQLLanguage:       "english",
		PostgreSQLWeights:        []string{"A", "B", "C", "D"},
		SQLiteFTSVersion:         "fts5",
		PostgreSQLGinIndexSuffix: "_gin",
		SQLiteFTSTableSuffix:     "_fts",
		GeneratedColumnSuffix:    "_search_vector",
	}
}
