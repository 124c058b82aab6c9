package renderer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbmigrate/dbmigrate/internal/dialect"
	"github.com/dbmigrate/dbmigrate/internal/renderer"
	"github.com/dbmigrate/dbmigrate/internal/schema"
)

func usersTable(t *testing.T) *schema.Table {
	t.Helper()
	tbl := schema.NewTable("users")

	id := schema.NewColumn("id", schema.TypeInt)
	id.Nullable = false
	id.AutoIncrement = true
	require.NoError(t, tbl.AddColumn(id))

	email := schema.NewColumn("email", schema.TypeVarchar)
	email.Length = 120
	email.Nullable = false
	require.NoError(t, tbl.AddColumn(email))

	active := schema.NewColumn("active", schema.TypeBoolean)
	active.Default = schema.LiteralDefault(true)
	require.NoError(t, tbl.AddColumn(active))

	require.NoError(t, tbl.AddIndex(&schema.Index{
		Name: "pk_users", Kind: schema.IndexPrimary,
		Columns: []schema.IndexColumn{{Name: "id"}},
	}))
	require.NoError(t, tbl.AddIndex(&schema.Index{
		Name: "idx_users_email", Kind: schema.IndexUnique,
		Columns: []schema.IndexColumn{{Name: "email"}},
	}))
	return tbl
}

func TestRenderMySQLCreateTable(t *testing.T) {
	tbl := usersTable(t)
	plat := dialect.NewMySQL()
	stmts, err := renderer.Render(tbl, plat, renderer.DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, stmts)

	assert.Contains(t, stmts[0], "CREATE TABLE `users`")
	assert.Contains(t, stmts[0], "`id` int NOT NULL AUTO_INCREMENT")
	assert.Contains(t, stmts[0], "PRIMARY KEY (`id`)")
	assert.Contains(t, stmts[0], "ENGINE=InnoDB")

	var hasIndex bool
	for _, s := range stmts[1:] {
		if s == "CREATE UNIQUE INDEX `idx_users_email` ON `users` (`email`)" {
			hasIndex = true
		}
	}
	assert.True(t, hasIndex)
}

func TestRenderPostgresBooleanDefault(t *testing.T) {
	tbl := usersTable(t)
	plat := dialect.NewPostgreSQL()
	stmts, err := renderer.Render(tbl, plat, renderer.DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, stmts[0], `"active" boolean DEFAULT true`)
}

func TestRenderSQLiteAutoIncrementInlinePK(t *testing.T) {
	tbl := usersTable(t)
	plat := dialect.NewSQLite()
	stmts, err := renderer.Render(tbl, plat, renderer.DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, stmts[0], `"id" integer PRIMARY KEY AUTOINCREMENT`)
	assert.NotContains(t, stmts[0], "PRIMARY KEY (\"id\")")
}

func TestRenderMySQLEnumInline(t *testing.T) {
	tbl := schema.NewTable("t")
	c := schema.NewColumn("status", schema.TypeEnum)
	c.EnumValues = []string{"a", "b"}
	require.NoError(t, tbl.AddColumn(c))

	stmts, err := renderer.Render(tbl, dialect.NewMySQL(), renderer.DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, stmts[0], "ENUM('a','b')")
}

func TestRenderForeignKeyConstraint(t *testing.T) {
	parent := schema.NewTable("accounts")
	require.NoError(t, parent.AddColumn(schema.NewColumn("id", schema.TypeBigInt)))

	child := schema.NewTable("orders")
	require.NoError(t, child.AddColumn(schema.NewColumn("id", schema.TypeBigInt)))
	require.NoError(t, child.AddColumn(schema.NewColumn("account_id", schema.TypeBigInt)))
	require.NoError(t, child.AddConstraint(&schema.Constraint{
		Name: "fk_orders_account", Kind: schema.ConstraintForeign,
		Columns: []string{"account_id"}, RefTable: "accounts", RefColumn: []string{"id"},
		OnDelete: schema.FKCascade,
	}))

	stmts, err := renderer.Render(child, dialect.NewPostgreSQL(), renderer.DefaultOptions())
	require.NoError(t, err)

	var found bool
	for _, s := range stmts {
		if s == `ALTER TABLE "orders" ADD CONSTRAINT "fk_orders_account" FOREIGN KEY ("account_id") REFERENCES "accounts" ("id") ON DELETE CASCADE` {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRenderCheckConstraintInline(t *testing.T) {
	tbl := schema.NewTable("t")
	require.NoError(t, tbl.AddColumn(schema.NewColumn("n", schema.TypeInt)))
	require.NoError(t, tbl.AddConstraint(&schema.Constraint{
		Name: "ck_t_n", Kind: schema.ConstraintCheck, Columns: []string{"n"}, Predicate: "n >= 0",
	}))

	stmts, err := renderer.Render(tbl, dialect.NewSQLite(), renderer.DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, stmts[0], `CONSTRAINT "ck_t_n" CHECK (n >= 0)`)
}

func TestRenderDropStatementOptional(t *testing.T) {
	tbl := usersTable(t)
	opts := renderer.DefaultOptions()
	opts.IncludeDropStatement = true
	stmts, err := renderer.Render(tbl, dialect.NewMySQL(), opts)
	require.NoError(t, err)
	assert.Equal(t, "DROP TABLE IF EXISTS `users`", stmts[0])
}
