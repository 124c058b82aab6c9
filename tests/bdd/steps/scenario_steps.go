//go:build bdd

package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	"github.com/dbmigrate/dbmigrate/internal/connector"
	"github.com/dbmigrate/dbmigrate/internal/dialect"
	"github.com/dbmigrate/dbmigrate/internal/migrator"
	"github.com/dbmigrate/dbmigrate/internal/schema"
	"github.com/dbmigrate/dbmigrate/internal/sorter"
	"github.com/dbmigrate/dbmigrate/internal/splitter"
	"github.com/dbmigrate/dbmigrate/internal/transformer"
)

// RegisterScenarioSteps registers every step used by the end-to-end
// migration feature file.
func RegisterScenarioSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Step(`^the standard "articles" table with a MySQL fulltext index over "([^"]*)" and "([^"]*)"$`,
		func(col1, col2 string) error {
			tbl, err := articlesTable(col1, col2)
			if err != nil {
				return err
			}
			tc.table = tbl
			return nil
		})

	ctx.Step(`^the table is transformed from "([^"]*)" to "([^"]*)" using default options$`,
		func(src, dst string) error {
			res, err := transformer.Transform(tc.table, dialect.Name(src), dialect.Name(dst), transformer.DefaultOptions())
			if err != nil {
				return err
			}
			tc.transformResult = res
			return nil
		})

	ctx.Step(`^the post-transform actions include a PostgreSQL GIN index and a generated tsvector column$`,
		func() error {
			var hasGin, hasGenCol bool
			for _, a := range tc.transformResult.Actions {
				switch a.Type {
				case schema.ActionPGGinIndex:
					hasGin = true
				case schema.ActionPGGeneratedColumn:
					hasGenCol = true
				}
			}
			if !hasGin || !hasGenCol {
				return fmt.Errorf("expected both a GIN index and a generated column action, got %+v", tc.transformResult.Actions)
			}
			return nil
		})

	ctx.Step(`^the fulltext conversion counters show (\d+) gin index and (\d+) generated column$`,
		func(gin, genCol int) error {
			if tc.transformResult.PGGinIndexes != gin || tc.transformResult.PGGeneratedColumns != genCol {
				return fmt.Errorf("got pg_gin_indexes=%d pg_generated_columns=%d",
					tc.transformResult.PGGinIndexes, tc.transformResult.PGGeneratedColumns)
			}
			return nil
		})

	ctx.Step(`^the post-transform actions include an FTS5 virtual table named "([^"]*)"$`,
		func(name string) error {
			for _, a := range tc.transformResult.Actions {
				if a.Type == schema.ActionSQLiteFTSTable && strings.Contains(a.SQL, name) && strings.Contains(a.SQL, "fts5") {
					return nil
				}
			}
			return fmt.Errorf("no fts5 virtual table action named %q found in %+v", name, tc.transformResult.Actions)
		})

	ctx.Step(`^the fulltext conversion counters show (\d+) sqlite fts table$`,
		func(n int) error {
			if tc.transformResult.SQLiteFTSTables != n {
				return fmt.Errorf("got sqlite_fts_tables=%d, want %d", tc.transformResult.SQLiteFTSTables, n)
			}
			return nil
		})

	ctx.Step(`^the "users", "orders" and "order_items" tables, orders referencing users and order_items referencing orders$`,
		func() error {
			tables, err := dependencyTables()
			if err != nil {
				return err
			}
			tc.tables = tables
			return nil
		})

	ctx.Step(`^the tables are sorted for creation$`,
		func() error {
			order, err := sorter.SortForCreate(tc.tables)
			if err != nil {
				return err
			}
			tc.createOrder = order
			return nil
		})

	ctx.Step(`^the creation order is "([^"]*)"$`,
		func(want string) error {
			return expectOrder(tc.createOrder, want)
		})

	ctx.Step(`^the tables are sorted for dropping$`,
		func() error {
			order, err := sorter.SortForDrop(tc.tables)
			if err != nil {
				return err
			}
			tc.dropOrder = order
			return nil
		})

	ctx.Step(`^the drop order is "([^"]*)"$`,
		func(want string) error {
			return expectOrder(tc.dropOrder, want)
		})

	ctx.Step(`^a PostgreSQL table "([^"]*)" with primary key "([^"]*)" and columns "([^"]*)", "([^"]*)" and "([^"]*)"$`,
		func(name, pk, c1, c2, c3 string) error {
			tbl, err := conflictTable(name, pk, c1, c2, c3)
			if err != nil {
				return err
			}
			tc.table = tbl
			return nil
		})

	ctx.Step(`^one staged source row with id (\d+), name "([^"]*)" and email "([^"]*)"$`,
		func(id int, name, email string) error {
			tc.stagedRow = []any{int64(id), name, email}
			return nil
		})

	ctx.Step(`^the row is copied with conflict handling "([^"]*)"$`,
		func(mode string) error {
			src := &captureConn{driver: "postgres", rowCount: 1, rows: [][]any{tc.stagedRow}}
			dst := &captureConn{driver: "postgres"}
			m := migrator.New(src, dst, dialect.NewPostgreSQL(), dialect.NewPostgreSQL())
			opts := migrator.DefaultOptions()
			opts.HandleConflicts = migrator.ConflictMode(mode)
			if _, err := m.CopyTable(context.Background(), tc.table, tc.table, opts); err != nil {
				return err
			}
			if len(dst.execCalls) != 1 {
				return fmt.Errorf("expected exactly one INSERT, got %d", len(dst.execCalls))
			}
			tc.insertSQL = dst.execCalls[0]
			return nil
		})

	ctx.Step(`^the generated insert statement is exactly:$`,
		func(want *godog.DocString) error {
			got := strings.TrimSpace(tc.insertSQL)
			expected := strings.TrimSpace(want.Content)
			if got != expected {
				return fmt.Errorf("insert statement mismatch:\n got: %s\nwant: %s", got, expected)
			}
			return nil
		})

	ctx.Step(`^the SQL text:$`,
		func(text *godog.DocString) error {
			tc.insertSQL = text.Content
			return nil
		})

	ctx.Step(`^the text is split with postgres dollar-quoting enabled$`,
		func() error {
			stmts, err := splitter.Split(tc.insertSQL, splitter.Options{PostgreSQLMode: true})
			if err != nil {
				return err
			}
			tc.splitStatements = stmts
			return nil
		})

	ctx.Step(`^the text is split with mysql delimiter handling enabled$`,
		func() error {
			stmts, err := splitter.Split(tc.insertSQL, splitter.Options{MySQLMode: true})
			if err != nil {
				return err
			}
			tc.splitStatements = stmts
			return nil
		})

	ctx.Step(`^it yields (\d+) statements$`,
		func(n int) error {
			if len(tc.splitStatements) != n {
				return fmt.Errorf("got %d statements, want %d: %+v", len(tc.splitStatements), n, tc.splitStatements)
			}
			return nil
		})

	ctx.Step(`^statement (\d+) contains "([^"]*)"$`,
		func(idx int, substr string) error {
			if idx < 1 || idx > len(tc.splitStatements) {
				return fmt.Errorf("no statement %d (have %d)", idx, len(tc.splitStatements))
			}
			if !strings.Contains(tc.splitStatements[idx-1], substr) {
				return fmt.Errorf("statement %d does not contain %q: %s", idx, substr, tc.splitStatements[idx-1])
			}
			return nil
		})
}

func expectOrder(got []string, want string) error {
	wantParts := strings.Split(want, ", ")
	if len(got) != len(wantParts) {
		return fmt.Errorf("got order %v, want %v", got, wantParts)
	}
	for i := range got {
		if got[i] != wantParts[i] {
			return fmt.Errorf("got order %v, want %v", got, wantParts)
		}
	}
	return nil
}

func articlesTable(col1, col2 string) (*schema.Table, error) {
	tbl := schema.NewTable("articles")

	id := schema.NewColumn("id", schema.TypeInt)
	id.Nullable = false
	if err := tbl.AddColumn(id); err != nil {
		return nil, err
	}

	title := schema.NewColumn(col1, schema.TypeVarchar)
	title.Length = 200
	if err := tbl.AddColumn(title); err != nil {
		return nil, err
	}

	body := schema.NewColumn(col2, schema.TypeText)
	if err := tbl.AddColumn(body); err != nil {
		return nil, err
	}

	if err := tbl.AddIndex(&schema.Index{
		Name: "id", Kind: schema.IndexPrimary,
		Columns: []schema.IndexColumn{{Name: "id"}},
	}); err != nil {
		return nil, err
	}
	if err := tbl.AddIndex(&schema.Index{
		Name: "ft",
		Kind: schema.IndexFulltext,
		Columns: []schema.IndexColumn{
			{Name: col1}, {Name: col2},
		},
	}); err != nil {
		return nil, err
	}
	return tbl, nil
}

func dependencyTables() (map[string]*schema.Table, error) {
	users := schema.NewTable("users")
	if err := users.AddColumn(schema.NewColumn("id", schema.TypeBigInt)); err != nil {
		return nil, err
	}
	if err := users.AddIndex(&schema.Index{Name: "pk_users", Kind: schema.IndexPrimary, Columns: []schema.IndexColumn{{Name: "id"}}}); err != nil {
		return nil, err
	}

	orders := schema.NewTable("orders")
	if err := orders.AddColumn(schema.NewColumn("id", schema.TypeBigInt)); err != nil {
		return nil, err
	}
	if err := orders.AddColumn(schema.NewColumn("user_id", schema.TypeBigInt)); err != nil {
		return nil, err
	}
	if err := orders.AddIndex(&schema.Index{Name: "pk_orders", Kind: schema.IndexPrimary, Columns: []schema.IndexColumn{{Name: "id"}}}); err != nil {
		return nil, err
	}
	if err := orders.AddConstraint(&schema.Constraint{
		Name: "fk_orders_users", Kind: schema.ConstraintForeign,
		Columns: []string{"user_id"}, RefTable: "users", RefColumn: []string{"id"},
	}); err != nil {
		return nil, err
	}

	orderItems := schema.NewTable("order_items")
	if err := orderItems.AddColumn(schema.NewColumn("id", schema.TypeBigInt)); err != nil {
		return nil, err
	}
	if err := orderItems.AddColumn(schema.NewColumn("order_id", schema.TypeBigInt)); err != nil {
		return nil, err
	}
	if err := orderItems.AddIndex(&schema.Index{Name: "pk_order_items", Kind: schema.IndexPrimary, Columns: []schema.IndexColumn{{Name: "id"}}}); err != nil {
		return nil, err
	}
	if err := orderItems.AddConstraint(&schema.Constraint{
		Name: "fk_order_items_orders", Kind: schema.ConstraintForeign,
		Columns: []string{"order_id"}, RefTable: "orders", RefColumn: []string{"id"},
	}); err != nil {
		return nil, err
	}

	return map[string]*schema.Table{
		"users":       users,
		"orders":      orders,
		"order_items": orderItems,
	}, nil
}

func conflictTable(name, pk, c1, c2, c3 string) (*schema.Table, error) {
	tbl := schema.NewTable(name)
	if err := tbl.AddColumn(schema.NewColumn(c1, schema.TypeBigInt)); err != nil {
		return nil, err
	}
	nameCol := schema.NewColumn(c2, schema.TypeVarchar)
	nameCol.Length = 80
	if err := tbl.AddColumn(nameCol); err != nil {
		return nil, err
	}
	emailCol := schema.NewColumn(c3, schema.TypeVarchar)
	emailCol.Length = 160
	if err := tbl.AddColumn(emailCol); err != nil {
		return nil, err
	}
	if err := tbl.AddIndex(&schema.Index{
		Name: "pk_" + name, Kind: schema.IndexPrimary,
		Columns: []schema.IndexColumn{{Name: pk}},
	}); err != nil {
		return nil, err
	}
	return tbl, nil
}

// captureTx relays Exec calls back to the owning captureConn so a
// transactional copy (the migrator's default) still lands in execCalls.
type captureTx struct {
	conn *captureConn
}

func (tx *captureTx) Exec(ctx context.Context, sqlStr string, args ...any) error {
	return tx.conn.doExec(sqlStr, args...)
}
func (tx *captureTx) Commit() error   { return nil }
func (tx *captureTx) Rollback() error { return nil }

// captureConn is a minimal connector.Connector fake: Query answers a
// COUNT(*) probe or a fixed row set, and Exec/Begin record every
// statement the migrator issues so a scenario can assert on the
// generated SQL.
type captureConn struct {
	driver    string
	rowCount  int64
	rows      [][]any
	execCalls []string
}

func (c *captureConn) DriverName() string { return c.driver }
func (c *captureConn) Close() error       { return nil }

func (c *captureConn) doExec(sqlStr string, args ...any) error {
	c.execCalls = append(c.execCalls, sqlStr)
	return nil
}

func (c *captureConn) Exec(ctx context.Context, sqlStr string, args ...any) error {
	return c.doExec(sqlStr, args...)
}

func (c *captureConn) Prepare(ctx context.Context, sqlStr string) (connector.Stmt, error) {
	return nil, fmt.Errorf("captureConn: Prepare not implemented")
}

func (c *captureConn) Begin(ctx context.Context) (connector.Tx, error) {
	return &captureTx{conn: c}, nil
}

func (c *captureConn) Query(ctx context.Context, sqlStr string, args ...any) (connector.Rows, error) {
	if strings.Contains(sqlStr, "COUNT(*)") {
		return &captureRows{data: [][]any{{c.rowCount}}}, nil
	}
	return &captureRows{data: c.rows}, nil
}

type captureRows struct {
	data [][]any
	pos  int
}

func (r *captureRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}
func (r *captureRows) Columns() ([]string, error) { return nil, nil }
func (r *captureRows) Err() error                  { return nil }
func (r *captureRows) Close() error                { return nil }

func (r *captureRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *any:
			*p = row[i]
		case *int64:
			*p = row[i].(int64)
		default:
			return fmt.Errorf("captureRows: unsupported dest %T", d)
		}
	}
	return nil
}
