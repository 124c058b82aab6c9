package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbmigrate/dbmigrate/internal/connector"
	"github.com/dbmigrate/dbmigrate/internal/dialect"
	"github.com/dbmigrate/dbmigrate/internal/orchestrator"
	"github.com/dbmigrate/dbmigrate/internal/rollback"
)

type fakeCollaborator struct {
	createCalls  []string
	restoreCalls []rollback.Handle
	createErr    error
	restoreErr   error
	restoreRes   rollback.Result
}

func (c *fakeCollaborator) Create(ctx context.Context, target string) (rollback.Handle, error) {
	c.createCalls = append(c.createCalls, target)
	if c.createErr != nil {
		return "", c.createErr
	}
	return rollback.Handle("handle-1"), nil
}

func (c *fakeCollaborator) Restore(ctx context.Context, handle rollback.Handle) (rollback.Result, error) {
	c.restoreCalls = append(c.restoreCalls, handle)
	if c.restoreErr != nil {
		return rollback.Result{}, c.restoreErr
	}
	return c.restoreRes, nil
}

type noopConn struct{ driver string }

func (c *noopConn) DriverName() string { return c.driver }
func (c *noopConn) Close() error       { return nil }
func (c *noopConn) Exec(ctx context.Context, sqlStr string, args ...any) error { return nil }
func (c *noopConn) Prepare(ctx context.Context, sqlStr string) (connector.Stmt, error) {
	return nil, nil
}
func (c *noopConn) Begin(ctx context.Context) (connector.Tx, error) { return nil, nil }
func (c *noopConn) Query(ctx context.Context, sqlStr string, args ...any) (connector.Rows, error) {
	return nil, nil
}

func newTestOrchestrator(t *testing.T, rb rollback.Collaborator) *orchestrator.Orchestrator {
	t.Helper()
	o, err := orchestrator.New(
		&noopConn{driver: "mysql"}, &noopConn{driver: "postgres"},
		dialect.MySQL, dialect.PostgreSQL,
		"appdb", "appdb",
		rb, nil,
	)
	require.NoError(t, err)
	return o
}

func TestNewRejectsUnknownDialect(t *testing.T) {
	_, err := orchestrator.New(
		&noopConn{driver: "mysql"}, &noopConn{driver: "mysql"},
		dialect.Name("oracle"), dialect.PostgreSQL,
		"db", "db", nil, nil,
	)
	require.Error(t, err)
}

func TestValidateCompatibilityRejectsSameDialect(t *testing.T) {
	o, err := orchestrator.New(
		&noopConn{driver: "mysql"}, &noopConn{driver: "mysql"},
		dialect.MySQL, dialect.MySQL,
		"db", "db", nil, nil,
	)
	require.NoError(t, err)
	require.Error(t, o.ValidateCompatibility())
}

func TestValidateCompatibilityAllowsSupportedPair(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	require.NoError(t, o.ValidateCompatibility())
}

func TestCreateRollbackPointDelegatesToCollaborator(t *testing.T) {
	rb := &fakeCollaborator{}
	o := newTestOrchestrator(t, rb)

	handle, err := o.CreateRollbackPoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rollback.Handle("handle-1"), handle)
	require.Len(t, rb.createCalls, 1)
	assert.Contains(t, rb.createCalls[0], "appdb")
}

func TestRollbackToDelegatesToCollaborator(t *testing.T) {
	rb := &fakeCollaborator{restoreRes: rollback.Result{Restored: true, Detail: "done"}}
	o := newTestOrchestrator(t, rb)

	res, err := o.RollbackTo(context.Background(), rollback.Handle("handle-1"))
	require.NoError(t, err)
	assert.True(t, res.Restored)
	require.Len(t, rb.restoreCalls, 1)
	assert.Equal(t, rollback.Handle("handle-1"), rb.restoreCalls[0])
}

func TestNewDefaultsToNoopCollaboratorWhenNilGiven(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	handle, err := o.CreateRollbackPoint(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, handle)
}

func TestDefaultOptionsMatchNormativeDefaults(t *testing.T) {
	opts := orchestrator.DefaultOptions()
	assert.True(t, opts.IncludeData)
	assert.True(t, opts.IncludeIndexes)
	assert.True(t, opts.IncludeConstraints)
	assert.False(t, opts.IncludeDropStatements)
	assert.Equal(t, 1000, opts.ChunkSize)
	assert.True(t, opts.ValidateBeforeMigration)
	assert.True(t, opts.ValidateAfterMigration)
	assert.True(t, opts.CreateRollbackPoint)
	assert.True(t, opts.StopOnError)
	assert.True(t, opts.ExecutePostTransformActions)
	assert.Empty(t, opts.ExcludeTables)
	assert.Empty(t, opts.IncludeTables)
}

func TestMigrateSchemaReturnsResultOnRejectedDialectPair(t *testing.T) {
	opts := orchestrator.DefaultOptions()
	opts.IncludeData = true
	// MigrateSchema is called with IncludeData set; the same-dialect
	// pair is rejected up front, before any connection is touched, and
	// a non-nil, unsuccessful result still comes back.
	o, err := orchestrator.New(
		&noopConn{driver: "mysql"}, &noopConn{driver: "mysql"},
		dialect.MySQL, dialect.MySQL,
		"db", "db", nil, nil,
	)
	require.NoError(t, err)
	result, err := o.MigrateSchema(context.Background(), opts)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
}

func TestMigrateReturnsNonNilResultOnEarlyFailure(t *testing.T) {
	o, err := orchestrator.New(
		&noopConn{driver: "mysql"}, &noopConn{driver: "mysql"},
		dialect.MySQL, dialect.MySQL,
		"db", "db", nil, nil,
	)
	require.NoError(t, err)

	result, err := o.Migrate(context.Background(), orchestrator.DefaultOptions())
	require.Error(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.MigrationID)
	assert.False(t, result.Success)
	assert.Equal(t, err, result.Err)
}
