package rollback_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbmigrate/dbmigrate/internal/rollback"
)

func TestFileCollaboratorCreateThenRestore(t *testing.T) {
	c := rollback.NewFileCollaborator(t.TempDir())

	handle, err := c.Create(context.Background(), "mysql://appdb")
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	res, err := c.Restore(context.Background(), handle)
	require.NoError(t, err)
	assert.False(t, res.Restored)
	assert.Contains(t, res.Detail, "appdb")
}

func TestFileCollaboratorRestoreUnknownHandleErrors(t *testing.T) {
	c := rollback.NewFileCollaborator(t.TempDir())
	_, err := c.Restore(context.Background(), rollback.Handle("does-not-exist"))
	require.Error(t, err)
}

func TestNoopCollaborator(t *testing.T) {
	var c rollback.Collaborator = rollback.NoopCollaborator{}
	handle, err := c.Create(context.Background(), "target")
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	res, err := c.Restore(context.Background(), handle)
	require.NoError(t, err)
	assert.False(t, res.Restored)
}
