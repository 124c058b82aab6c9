package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbmigrate/dbmigrate/internal/dialect"
	"github.com/dbmigrate/dbmigrate/internal/schema"
)

func TestQuoting(t *testing.T) {
	my, err := dialect.For(dialect.MySQL)
	require.NoError(t, err)
	assert.Equal(t, "`col``name`", my.Quote("col`name"))

	pg, err := dialect.For(dialect.PostgreSQL)
	require.NoError(t, err)
	assert.Equal(t, `"col""name"`, pg.Quote(`col"name`))

	lite, err := dialect.For(dialect.SQLite)
	require.NoError(t, err)
	assert.Equal(t, `"t"`, lite.Quote("t"))
}

func TestTypeNameVarchar(t *testing.T) {
	pg, _ := dialect.For(dialect.PostgreSQL)
	got := pg.TypeName(dialect.TypeSpec{Type: schema.TypeVarchar, Length: 200})
	assert.Equal(t, "varchar(200)", got)
}

func TestUnknownDialect(t *testing.T) {
	_, err := dialect.For("oracle")
	assert.Error(t, err)
}

func TestCapabilities(t *testing.T) {
	my, _ := dialect.For(dialect.MySQL)
	assert.True(t, my.Capabilities().Fulltext)

	lite, _ := dialect.For(dialect.SQLite)
	assert.False(t, lite.Capabilities().Fulltext)
	assert.False(t, lite.Capabilities().NativeEnum)
}
