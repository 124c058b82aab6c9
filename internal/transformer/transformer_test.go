package transformer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbmigrate/dbmigrate/internal/dialect"
	"github.com/dbmigrate/dbmigrate/internal/schema"
	"github.com/dbmigrate/dbmigrate/internal/transformer"
)

func articlesTable(t *testing.T) *schema.Table {
	t.Helper()
	tbl := schema.NewTable("articles")
	id := schema.NewColumn("id", schema.TypeInt)
	id.Nullable = false
	id.AutoIncrement = true
	require.NoError(t, tbl.AddColumn(id))

	title := schema.NewColumn("title", schema.TypeVarchar)
	title.Length = 200
	require.NoError(t, tbl.AddColumn(title))

	body := schema.NewColumn("body", schema.TypeText)
	require.NoError(t, tbl.AddColumn(body))

	require.NoError(t, tbl.AddIndex(&schema.Index{
		Name: "id", Kind: schema.IndexPrimary,
		Columns: []schema.IndexColumn{{Name: "id"}},
	}))
	require.NoError(t, tbl.AddIndex(&schema.Index{
		Name: "ft",
		Kind: schema.IndexFulltext,
		Columns: []schema.IndexColumn{
			{Name: "title"}, {Name: "body"},
		},
	}))
	return tbl
}

func TestFulltextToPostgresMultiColumn(t *testing.T) {
	tbl := articlesTable(t)
	res, err := transformer.Transform(tbl, dialect.MySQL, dialect.PostgreSQL, transformer.DefaultOptions())
	require.NoError(t, err)

	_, hasFT := res.Table.Index("ft")
	assert.False(t, hasFT)

	assert.Equal(t, 1, res.PGGinIndexes)
	assert.Equal(t, 1, res.PGGeneratedColumns)

	vecCol, ok := res.Table.Column("articles_search_vector")
	require.True(t, ok)
	assert.True(t, vecCol.Generated)
	assert.Contains(t, vecCol.GeneratedExpr, "setweight")
}

func TestFulltextToSQLite(t *testing.T) {
	tbl := articlesTable(t)
	res, err := transformer.Transform(tbl, dialect.MySQL, dialect.SQLite, transformer.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, res.SQLiteFTSTables)
	var kinds []schema.ActionType
	for _, a := range res.Actions {
		kinds = append(kinds, a.Type)
	}
	assert.Contains(t, kinds, schema.ActionSQLiteFTSTable)
	assert.Contains(t, kinds, schema.ActionSQLiteFTSPopulate)
	assert.Contains(t, kinds, schema.ActionSQLiteFTSTriggers)
}

func TestIdempotentSameDialect(t *testing.T) {
	tbl := articlesTable(t)
	res, err := transformer.Transform(tbl, dialect.MySQL, dialect.MySQL, transformer.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, tbl.Equal(res.Table))
	assert.Empty(t, res.Actions)
}

func TestUnsignedIntWidensOnPostgres(t *testing.T) {
	tbl := schema.NewTable("t")
	c := schema.NewColumn("n", schema.TypeInt)
	c.Unsigned = true
	require.NoError(t, tbl.AddColumn(c))

	res, err := transformer.Transform(tbl, dialect.MySQL, dialect.PostgreSQL, transformer.DefaultOptions())
	require.NoError(t, err)

	col, _ := res.Table.Column("n")
	assert.Equal(t, schema.TypeBigInt, col.Type)
	assert.False(t, col.Unsigned)
	assert.NotEmpty(t, res.Warnings)

	ck, ok := res.Table.Constraint("ck_t_n_unsigned")
	require.True(t, ok)
	assert.Equal(t, "n >= 0", ck.Predicate)
}

func TestEnumToTextWithCheck(t *testing.T) {
	tbl := schema.NewTable("t")
	c := schema.NewColumn("status", schema.TypeEnum)
	c.EnumValues = []string{"active", "inactive"}
	require.NoError(t, tbl.AddColumn(c))

	res, err := transformer.Transform(tbl, dialect.MySQL, dialect.SQLite, transformer.DefaultOptions())
	require.NoError(t, err)

	col, _ := res.Table.Column("status")
	assert.Equal(t, schema.TypeVarchar, col.Type)
	assert.Equal(t, 8, col.Length) // len("inactive")

	ck, ok := res.Table.Constraint("ck_t_status_enum")
	require.True(t, ok)
	assert.Contains(t, ck.Predicate, "IN (")
}

func TestTextRewrittenToMySQLLadderByLength(t *testing.T) {
	cases := []struct {
		length int
		want   schema.Type
	}{
		{0, schema.TypeText},
		{120, schema.TypeTinyText},
		{4000, schema.TypeText},
		{1 << 20, schema.TypeMediumText},
		{1 << 25, schema.TypeLongText},
	}

	for _, tc := range cases {
		tbl := schema.NewTable("t")
		c := schema.NewColumn("body", schema.TypeText)
		c.Length = tc.length
		require.NoError(t, tbl.AddColumn(c))

		res, err := transformer.Transform(tbl, dialect.PostgreSQL, dialect.MySQL, transformer.DefaultOptions())
		require.NoError(t, err)

		col, _ := res.Table.Column("body")
		assert.Equal(t, tc.want, col.Type, "length %d", tc.length)
	}
}

func TestLongIndexNameHashedOnSQLite(t *testing.T) {
	tbl := schema.NewTable("orders")
	require.NoError(t, tbl.AddColumn(schema.NewColumn("customer_reference_number", schema.TypeVarchar)))
	longName := "idx_this_is_a_very_long_index_name_that_will_exceed_the_sqlite_limit_for_sure"
	require.NoError(t, tbl.AddIndex(&schema.Index{
		Name: longName, Kind: schema.IndexBTree,
		Columns: []schema.IndexColumn{{Name: "customer_reference_number"}},
	}))

	res, err := transformer.Transform(tbl, dialect.MySQL, dialect.SQLite, transformer.DefaultOptions())
	require.NoError(t, err)

	for _, idx := range res.Table.Indexes() {
		assert.LessOrEqual(t, len(idx.Name), 64)
	}
}

func TestCompositeAutoIncrementDroppedOnSQLite(t *testing.T) {
	tbl := schema.NewTable("t")
	a := schema.NewColumn("a", schema.TypeInt)
	a.AutoIncrement = true
	require.NoError(t, tbl.AddColumn(a))
	require.NoError(t, tbl.AddColumn(schema.NewColumn("b", schema.TypeInt)))
	require.NoError(t, tbl.AddIndex(&schema.Index{
		Name: "pk", Kind: schema.IndexPrimary,
		Columns: []schema.IndexColumn{{Name: "a"}, {Name: "b"}},
	}))

	res, err := transformer.Transform(tbl, dialect.MySQL, dialect.SQLite, transformer.DefaultOptions())
	require.NoError(t, err)

	col, _ := res.Table.Column("a")
	assert.False(t, col.AutoIncrement)
	assert.NotEmpty(t, res.Warnings)
}

func TestPreservesAllColumnNames(t *testing.T) {
	tbl := articlesTable(t)
	res, err := transformer.Transform(tbl, dialect.MySQL, dialect.PostgreSQL, transformer.DefaultOptions())
	require.NoError(t, err)

	for _, c := range tbl.Columns() {
		_, ok := res.Table.Column(c.Name)
		assert.True(t, ok, "column %s missing after transform", c.Name)
	}
}
