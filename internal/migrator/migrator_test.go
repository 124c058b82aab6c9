package migrator_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbmigrate/dbmigrate/internal/connector"
	"github.com/dbmigrate/dbmigrate/internal/dialect"
	"github.com/dbmigrate/dbmigrate/internal/errs"
	"github.com/dbmigrate/dbmigrate/internal/migrator"
	"github.com/dbmigrate/dbmigrate/internal/schema"
)

type fakeRows struct {
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
func (r *fakeRows) Columns() ([]string, error) { return nil, nil }
func (r *fakeRows) Err() error                  { return nil }
func (r *fakeRows) Close() error                { return nil }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *any:
			*p = row[i]
		case *int64:
			*p = row[i].(int64)
		default:
			return fmt.Errorf("fakeRows: unsupported dest %T", d)
		}
	}
	return nil
}

type execCall struct {
	sql  string
	args []any
}

type fakeTx struct {
	conn *fakeConn
}

func (tx *fakeTx) Exec(ctx context.Context, sqlStr string, args ...any) error {
	return tx.conn.doExec(sqlStr, args...)
}
func (tx *fakeTx) Commit() error   { return nil }
func (tx *fakeTx) Rollback() error { return nil }

// fakeConn plays both source and target roles in these tests: Query
// answers a COUNT(*) probe or a row scan, and Exec/Begin record every
// INSERT the migrator issues.
type fakeConn struct {
	driver       string
	rowCount     int64
	selectData   [][]any
	failOnSubstr string

	execCalls []execCall
}

func (c *fakeConn) DriverName() string { return c.driver }
func (c *fakeConn) Close() error       { return nil }

func (c *fakeConn) doExec(sqlStr string, args ...any) error {
	c.execCalls = append(c.execCalls, execCall{sql: sqlStr, args: args})
	if c.failOnSubstr != "" && strings.Contains(sqlStr, c.failOnSubstr) {
		return fmt.Errorf("forced failure")
	}
	return nil
}

func (c *fakeConn) Exec(ctx context.Context, sqlStr string, args ...any) error {
	return c.doExec(sqlStr, args...)
}
func (c *fakeConn) Prepare(ctx context.Context, sqlStr string) (connector.Stmt, error) {
	return nil, fmt.Errorf("not implemented")
}
func (c *fakeConn) Begin(ctx context.Context) (connector.Tx, error) {
	return &fakeTx{conn: c}, nil
}
func (c *fakeConn) Query(ctx context.Context, sqlStr string, args ...any) (connector.Rows, error) {
	if strings.Contains(sqlStr, "COUNT(*)") {
		return &fakeRows{data: [][]any{{c.rowCount}}}, nil
	}
	return &fakeRows{data: c.selectData}, nil
}

func accountsTable(t *testing.T) *schema.Table {
	t.Helper()
	tbl := schema.NewTable("accounts")
	id := schema.NewColumn("id", schema.TypeBigInt)
	id.Nullable = false
	require.NoError(t, tbl.AddColumn(id))
	name := schema.NewColumn("name", schema.TypeVarchar)
	name.Length = 80
	require.NoError(t, tbl.AddColumn(name))
	require.NoError(t, tbl.AddIndex(&schema.Index{
		Name: "pk_accounts", Kind: schema.IndexPrimary,
		Columns: []schema.IndexColumn{{Name: "id"}},
	}))
	return tbl
}

func TestCopyTableZeroRowsIsNoOp(t *testing.T) {
	src := &fakeConn{driver: "mysql", rowCount: 0}
	dst := &fakeConn{driver: "mysql"}
	tbl := accountsTable(t)

	m := migrator.New(src, dst, dialect.NewMySQL(), dialect.NewMySQL())
	res, err := m.CopyTable(context.Background(), tbl, tbl, migrator.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.RowsCopied)
	assert.Empty(t, dst.execCalls)
}

func TestCopyTableStreamsChunksAndNormalizesBooleans(t *testing.T) {
	tbl := schema.NewTable("flags")
	require.NoError(t, tbl.AddColumn(schema.NewColumn("id", schema.TypeBigInt)))
	active := schema.NewColumn("active", schema.TypeBoolean)
	require.NoError(t, tbl.AddColumn(active))
	require.NoError(t, tbl.AddIndex(&schema.Index{
		Name: "pk_flags", Kind: schema.IndexPrimary,
		Columns: []schema.IndexColumn{{Name: "id"}},
	}))

	src := &fakeConn{driver: "postgres", rowCount: 2, selectData: [][]any{
		{int64(1), true},
		{int64(2), false},
	}}
	dst := &fakeConn{driver: "sqlite"}

	m := migrator.New(src, dst, dialect.NewPostgreSQL(), dialect.NewSQLite())
	res, err := m.CopyTable(context.Background(), tbl, tbl, migrator.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsCopied)
	require.Len(t, dst.execCalls, 2)
	assert.Equal(t, 1, dst.execCalls[0].args[1])
	assert.Equal(t, 0, dst.execCalls[1].args[1])
}

func TestCopyTableMySQLConflictSkipUsesInsertIgnore(t *testing.T) {
	tbl := accountsTable(t)
	src := &fakeConn{driver: "mysql", rowCount: 1, selectData: [][]any{{int64(1), "alice"}}}
	dst := &fakeConn{driver: "mysql"}

	m := migrator.New(src, dst, dialect.NewMySQL(), dialect.NewMySQL())
	opts := migrator.DefaultOptions()
	opts.HandleConflicts = migrator.ConflictSkip
	_, err := m.CopyTable(context.Background(), tbl, tbl, opts)
	require.NoError(t, err)
	require.Len(t, dst.execCalls, 1)
	assert.True(t, strings.HasPrefix(dst.execCalls[0].sql, "INSERT IGNORE INTO"))
}

func TestCopyTablePostgresConflictUpdateBuildsExcludedClause(t *testing.T) {
	tbl := accountsTable(t)
	src := &fakeConn{driver: "postgres", rowCount: 1, selectData: [][]any{{int64(1), "alice"}}}
	dst := &fakeConn{driver: "postgres"}

	m := migrator.New(src, dst, dialect.NewPostgreSQL(), dialect.NewPostgreSQL())
	_, err := m.CopyTable(context.Background(), tbl, tbl, migrator.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, dst.execCalls, 1)
	assert.Contains(t, dst.execCalls[0].sql, `ON CONFLICT ("id") DO UPDATE SET "id"=EXCLUDED."id", "name"=EXCLUDED."name"`)
	assert.Contains(t, dst.execCalls[0].sql, "$1")
}

func TestCopyTableColumnMappingToMissingTargetColumnErrors(t *testing.T) {
	source := accountsTable(t)
	target := schema.NewTable("accounts")
	require.NoError(t, target.AddColumn(schema.NewColumn("id", schema.TypeBigInt)))

	src := &fakeConn{driver: "mysql", rowCount: 1}
	dst := &fakeConn{driver: "mysql"}

	m := migrator.New(src, dst, dialect.NewMySQL(), dialect.NewMySQL())
	opts := migrator.DefaultOptions()
	opts.ColumnMapping = map[string]string{"name": "full_name"}
	_, err := m.CopyTable(context.Background(), source, target, opts)
	require.Error(t, err)
	var de *errs.DataError
	require.ErrorAs(t, err, &de)
}

func TestCopyTableUnmappedMissingColumnIsDroppedWithWarning(t *testing.T) {
	source := accountsTable(t)
	target := schema.NewTable("accounts")
	idCol := schema.NewColumn("id", schema.TypeBigInt)
	require.NoError(t, target.AddColumn(idCol))
	require.NoError(t, target.AddIndex(&schema.Index{
		Name: "pk_accounts", Kind: schema.IndexPrimary,
		Columns: []schema.IndexColumn{{Name: "id"}},
	}))

	src := &fakeConn{driver: "mysql", rowCount: 1, selectData: [][]any{{int64(1)}}}
	dst := &fakeConn{driver: "mysql"}

	m := migrator.New(src, dst, dialect.NewMySQL(), dialect.NewMySQL())
	res, err := m.CopyTable(context.Background(), source, target, migrator.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsCopied)
	assert.NotEmpty(t, res.Warnings)
}

func TestCopyTableRowFailureIsWarningUnlessConflictError(t *testing.T) {
	tbl := accountsTable(t)
	src := &fakeConn{driver: "mysql", rowCount: 2, selectData: [][]any{
		{int64(1), "alice"},
		{int64(2), "bob"},
	}}
	dst := &fakeConn{driver: "mysql", failOnSubstr: "INSERT"}

	m := migrator.New(src, dst, dialect.NewMySQL(), dialect.NewMySQL())
	opts := migrator.DefaultOptions()
	opts.HandleConflicts = migrator.ConflictUpdate
	res, err := m.CopyTable(context.Background(), tbl, tbl, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.RowsCopied)
	assert.Len(t, res.Warnings, 2)
}

func TestCopyTableRowFailureAbortsChunkWhenConflictModeError(t *testing.T) {
	tbl := accountsTable(t)
	src := &fakeConn{driver: "mysql", rowCount: 2, selectData: [][]any{
		{int64(1), "alice"},
		{int64(2), "bob"},
	}}
	dst := &fakeConn{driver: "mysql", failOnSubstr: "INSERT"}

	m := migrator.New(src, dst, dialect.NewMySQL(), dialect.NewMySQL())
	opts := migrator.DefaultOptions()
	opts.HandleConflicts = migrator.ConflictError
	_, err := m.CopyTable(context.Background(), tbl, tbl, opts)
	require.Error(t, err)
	var de *errs.DataError
	require.ErrorAs(t, err, &de)
}
