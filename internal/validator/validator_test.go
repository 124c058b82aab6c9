package validator_test

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
	"github.com/dbmigrate/dbmigrate/internal/schema"
	"github.com/dbmigrate/dbmigrate/internal/validator"
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
		*(d.(*any)) = row[i]
	}
	return nil
}

type fakeConn struct {
	driver      string
	execFails   map[string]bool
	queryResult [][]any
}

func (c *fakeConn) DriverName() string { return c.driver }
func (c *fakeConn) Close() error       { return nil }
func (c *fakeConn) Exec(ctx context.Context, sqlStr string, args ...any) error {
	for substr, fail := range c.execFails {
		if fail && strings.Contains(sqlStr, substr) {
			return fmt.Errorf("denied: %s", substr)
		}
	}
	return nil
}
func (c *fakeConn) Prepare(ctx context.Context, sqlStr string) (connector.Stmt, error) {
	return nil, fmt.Errorf("not implemented")
}
func (c *fakeConn) Begin(ctx context.Context) (connector.Tx, error) {
	return nil, fmt.Errorf("not implemented")
}
func (c *fakeConn) Query(ctx context.Context, sqlStr string, args ...any) (connector.Rows, error) {
	return &fakeRows{data: c.queryResult}, nil
}

func TestCheckDialectPairRejectsSameToSame(t *testing.T) {
	err := validator.CheckDialectPair(dialect.MySQL, dialect.MySQL)
	require.Error(t, err)
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestCheckDialectPairAllowsSupportedCrossPair(t *testing.T) {
	require.NoError(t, validator.CheckDialectPair(dialect.MySQL, dialect.PostgreSQL))
}

func TestPreMigrationRejectsSameDialectBeforeProbing(t *testing.T) {
	src := &fakeConn{driver: "mysql"}
	dst := &fakeConn{driver: "mysql"}
	_, err := validator.PreMigration(context.Background(), src, dst, dialect.NewMySQL(), dialect.NewMySQL(), nil)
	require.Error(t, err)
}

func TestPreMigrationFlagsPermissionDenied(t *testing.T) {
	src := &fakeConn{driver: "mysql"}
	dst := &fakeConn{driver: "postgres", execFails: map[string]bool{"CREATE TABLE": true}}
	_, err := validator.PreMigration(context.Background(), src, dst, dialect.NewMySQL(), dialect.NewPostgreSQL(), nil)
	require.Error(t, err)
	var pe *errs.PermissionError
	require.ErrorAs(t, err, &pe)
}

func TestPreMigrationRejectsEmptySourceSchema(t *testing.T) {
	src := &fakeConn{driver: "mysql"}
	dst := &fakeConn{driver: "postgres"}
	_, err := validator.PreMigration(context.Background(), src, dst, dialect.NewMySQL(), dialect.NewPostgreSQL(), map[string]*schema.Table{})
	require.Error(t, err)
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
}

func tableWithReservedColumn(t *testing.T) *schema.Table {
	t.Helper()
	tbl := schema.NewTable("orders")
	require.NoError(t, tbl.AddColumn(schema.NewColumn("order", schema.TypeInt)))
	return tbl
}

func TestPreMigrationFlagsReservedWordColumnName(t *testing.T) {
	src := &fakeConn{driver: "mysql"}
	dst := &fakeConn{driver: "postgres"}
	tables := map[string]*schema.Table{"orders": tableWithReservedColumn(t)}

	report, err := validator.PreMigration(context.Background(), src, dst, dialect.NewMySQL(), dialect.NewPostgreSQL(), tables)
	require.NoError(t, err)

	var found bool
	for _, f := range report.Findings {
		if f.Column == "order" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPreMigrationFlagsOversizedTable(t *testing.T) {
	tbl := schema.NewTable("events")
	require.NoError(t, tbl.AddColumn(schema.NewColumn("id", schema.TypeBigInt)))
	tbl.RowCount = validator.RowCountThreshold + 1

	src := &fakeConn{driver: "mysql"}
	dst := &fakeConn{driver: "postgres"}
	report, err := validator.PreMigration(context.Background(), src, dst, dialect.NewMySQL(), dialect.NewPostgreSQL(), map[string]*schema.Table{"events": tbl})
	require.NoError(t, err)

	var found bool
	for _, f := range report.Findings {
		if strings.Contains(f.Message, "long time") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPostMigrationDetectsMissingTableAndColumn(t *testing.T) {
	src := schema.NewTable("accounts")
	require.NoError(t, src.AddColumn(schema.NewColumn("id", schema.TypeBigInt)))
	require.NoError(t, src.AddColumn(schema.NewColumn("name", schema.TypeVarchar)))
	src.RowCount = 3

	dst := schema.NewTable("accounts")
	require.NoError(t, dst.AddColumn(schema.NewColumn("id", schema.TypeBigInt)))
	dst.RowCount = 3

	report := validator.PostMigration(
		map[string]*schema.Table{"accounts": src, "sessions": schema.NewTable("sessions")},
		map[string]*schema.Table{"accounts": dst},
	)

	var missingTable, missingColumn bool
	for _, f := range report.Findings {
		if f.Table == "sessions" && f.Severity == validator.SeverityError {
			missingTable = true
		}
		if f.Table == "accounts" && f.Column == "name" && f.Severity == validator.SeverityError {
			missingColumn = true
		}
	}
	assert.True(t, missingTable)
	assert.True(t, missingColumn)
}

func TestPostMigrationDetectsRowCountMismatch(t *testing.T) {
	src := schema.NewTable("accounts")
	require.NoError(t, src.AddColumn(schema.NewColumn("id", schema.TypeBigInt)))
	src.RowCount = 10

	dst := schema.NewTable("accounts")
	require.NoError(t, dst.AddColumn(schema.NewColumn("id", schema.TypeBigInt)))
	dst.RowCount = 8

	report := validator.PostMigration(map[string]*schema.Table{"accounts": src}, map[string]*schema.Table{"accounts": dst})
	require.True(t, report.HasErrors())
}

func TestSampleProbeWarnsOnMissingRow(t *testing.T) {
	srcTbl := schema.NewTable("accounts")
	require.NoError(t, srcTbl.AddColumn(schema.NewColumn("id", schema.TypeBigInt)))
	dstTbl := schema.NewTable("accounts")
	require.NoError(t, dstTbl.AddColumn(schema.NewColumn("id", schema.TypeBigInt)))

	src := &fakeConn{driver: "mysql", queryResult: [][]any{{int64(1)}}}
	dst := &fakeConn{driver: "postgres", queryResult: [][]any{}}

	report, err := validator.SampleProbe(context.Background(), src, dst, dialect.NewMySQL(), dialect.NewPostgreSQL(), srcTbl, dstTbl)
	require.NoError(t, err)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, validator.SeverityWarning, report.Findings[0].Severity)
}
