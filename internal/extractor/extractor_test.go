package extractor_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbmigrate/dbmigrate/internal/connector"
	"github.com/dbmigrate/dbmigrate/internal/dialect"
	"github.com/dbmigrate/dbmigrate/internal/extractor"
	"github.com/dbmigrate/dbmigrate/internal/schema"
)

// fakeRows is an in-memory connector.Rows backed by a fixed row set,
// enough to drive the extractor's Scan-heavy parsing logic without a
// real database.
type fakeRows struct {
	cols []string
	data [][]any
	pos  int
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Columns() ([]string, error) { return r.cols, nil }
func (r *fakeRows) Err() error                  { return nil }
func (r *fakeRows) Close() error                { return nil }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("fakeRows: scan arity mismatch: got %d dest, row has %d", len(dest), len(row))
	}
	for i, d := range dest {
		if err := assignScan(d, row[i]); err != nil {
			return err
		}
	}
	return nil
}

func assignScan(dest, src any) error {
	switch d := dest.(type) {
	case *string:
		*d = src.(string)
	case *int:
		*d = src.(int)
	case *int64:
		*d = int64(src.(int))
	case *bool:
		*d = src.(bool)
	case *sql.NullString:
		if src == nil {
			*d = sql.NullString{}
		} else {
			*d = sql.NullString{String: src.(string), Valid: true}
		}
	case *sql.NullInt64:
		if src == nil {
			*d = sql.NullInt64{}
		} else {
			*d = sql.NullInt64{Int64: int64(src.(int)), Valid: true}
		}
	default:
		return fmt.Errorf("assignScan: unsupported dest type %T", dest)
	}
	return nil
}

// fakeConn dispatches canned row sets by matching a substring of the
// query text, mimicking just enough of connector.Connector to exercise
// the extractor's parsing.
type fakeConn struct {
	driver string
	routes []route
}

type route struct {
	match string
	rows  func() *fakeRows
}

func (c *fakeConn) DriverName() string { return c.driver }
func (c *fakeConn) Close() error       { return nil }
func (c *fakeConn) Exec(ctx context.Context, sqlStr string, args ...any) error { return nil }
func (c *fakeConn) Prepare(ctx context.Context, sqlStr string) (connector.Stmt, error) {
	return nil, fmt.Errorf("not implemented")
}
func (c *fakeConn) Begin(ctx context.Context) (connector.Tx, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *fakeConn) Query(ctx context.Context, sqlStr string, args ...any) (connector.Rows, error) {
	for _, r := range c.routes {
		if strings.Contains(sqlStr, r.match) {
			return r.rows(), nil
		}
	}
	return nil, fmt.Errorf("fakeConn: no route for query: %s", sqlStr)
}

func TestExtractMySQL(t *testing.T) {
	conn := &fakeConn{driver: "mysql", routes: []route{
		{"information_schema.COLUMNS", func() *fakeRows {
			return &fakeRows{data: [][]any{
				{"users", "id", "int", "int(11)", "NO", nil, "auto_increment", ""},
				{"users", "email", "varchar", "varchar(120)", "NO", nil, "", ""},
				{"users", "is_active", "tinyint", "tinyint(1)", "YES", "1", "", ""},
			}}
		}},
		{"information_schema.STATISTICS", func() *fakeRows {
			return &fakeRows{data: [][]any{
				{"users", "PRIMARY", 0, "id", 1, "BTREE"},
				{"users", "idx_email", 0, "email", 1, "BTREE"},
			}}
		}},
		{"information_schema.KEY_COLUMN_USAGE", func() *fakeRows {
			return &fakeRows{data: [][]any{}}
		}},
		{"COUNT(*)", func() *fakeRows {
			return &fakeRows{data: [][]any{{42}}}
		}},
	}}

	ex := extractor.New(conn, dialect.MySQL)
	tables, err := ex.Extract(context.Background(), "appdb")
	require.NoError(t, err)
	require.Contains(t, tables, "users")

	users := tables["users"]
	assert.Equal(t, int64(42), users.RowCount)

	id, ok := users.Column("id")
	require.True(t, ok)
	assert.Equal(t, schema.TypeInt, id.Type)
	assert.True(t, id.AutoIncrement)
	assert.False(t, id.Nullable)

	active, ok := users.Column("is_active")
	require.True(t, ok)
	assert.Equal(t, schema.TypeBoolean, active.Type)

	pk := users.PrimaryIndex()
	require.NotNil(t, pk)
	assert.Equal(t, []string{"id"}, pk.ColumnNames())

	idx, ok := users.Index("idx_email")
	require.True(t, ok)
	assert.True(t, idx.IsUnique())
}

func TestExtractSQLite(t *testing.T) {
	conn := &fakeConn{driver: "sqlite", routes: []route{
		{"sqlite_master", func() *fakeRows {
			return &fakeRows{data: [][]any{
				{"posts", "CREATE TABLE posts (id INTEGER PRIMARY KEY, title TEXT)"},
			}}
		}},
		{"PRAGMA table_info", func() *fakeRows {
			return &fakeRows{data: [][]any{
				{0, "id", "INTEGER", 0, nil, 1},
				{1, "title", "TEXT", 1, nil, 0},
			}}
		}},
		{"PRAGMA index_list", func() *fakeRows {
			return &fakeRows{data: [][]any{}}
		}},
		{"PRAGMA foreign_key_list", func() *fakeRows {
			return &fakeRows{data: [][]any{}}
		}},
		{"COUNT(*)", func() *fakeRows {
			return &fakeRows{data: [][]any{{7}}}
		}},
	}}

	ex := extractor.New(conn, dialect.SQLite)
	tables, err := ex.Extract(context.Background(), "")
	require.NoError(t, err)
	require.Contains(t, tables, "posts")

	posts := tables["posts"]
	assert.Equal(t, int64(7), posts.RowCount)
	assert.Contains(t, posts.OriginalDDL, "CREATE TABLE posts")

	id, ok := posts.Column("id")
	require.True(t, ok)
	assert.True(t, id.AutoIncrement)

	pk := posts.PrimaryIndex()
	require.NotNil(t, pk)
	assert.Equal(t, []string{"id"}, pk.ColumnNames())
}
