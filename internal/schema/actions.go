package schema

// ActionType is the closed set of post-transform action kinds. Each is
// auxiliary DDL emitted by the transformer and executed after the main
// CREATE TABLE for its target table.
type ActionType string

const (
	ActionPGGinIndex        ActionType = "pg_gin_index"
	ActionPGGeneratedColumn ActionType = "pg_generated_column"
	ActionSQLiteFTSTable    ActionType = "sqlite_fts_table"
	ActionSQLiteFTSPopulate ActionType = "sqlite_fts_populate"
	ActionSQLiteFTSTriggers ActionType = "sqlite_fts_triggers"
	ActionPGEnumType        ActionType = "pg_enum_type"
	ActionTouchTrigger      ActionType = "touch_trigger"
)

// PostTransformAction is auxiliary DDL queued by the transformer.
type PostTransformAction struct {
	Type        ActionType
	SQL         string
	Description string
	TargetTable string
}
