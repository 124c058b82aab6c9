package sorter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbmigrate/dbmigrate/internal/schema"
	"github.com/dbmigrate/dbmigrate/internal/sorter"
)

func fkTable(name, refTable, refCol string) *schema.Table {
	t := schema.NewTable(name)
	_ = t.AddColumn(schema.NewColumn("id", schema.TypeBigInt))
	if refTable != "" {
		_ = t.AddColumn(schema.NewColumn(refTable+"_id", schema.TypeBigInt))
		_ = t.AddConstraint(&schema.Constraint{
			Name:      "fk_" + name + "_" + refTable,
			Kind:      schema.ConstraintForeign,
			Columns:   []string{refTable + "_id"},
			RefTable:  refTable,
			RefColumn: []string{refCol},
		})
	}
	return t
}

func TestSortForCreateOrdersParentsFirst(t *testing.T) {
	tables := map[string]*schema.Table{
		"users":        fkTable("users", "", ""),
		"orders":       fkTable("orders", "users", "id"),
		"order_items":  fkTable("order_items", "orders", "id"),
	}

	order, err := sorter.SortForCreate(tables)
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "orders", "order_items"}, order)
}

func TestSortForDropIsReverseOfCreate(t *testing.T) {
	tables := map[string]*schema.Table{
		"users":       fkTable("users", "", ""),
		"orders":      fkTable("orders", "users", "id"),
		"order_items": fkTable("order_items", "orders", "id"),
	}

	create, err := sorter.SortForCreate(tables)
	require.NoError(t, err)
	drop, err := sorter.SortForDrop(tables)
	require.NoError(t, err)

	reversed := make([]string, len(create))
	for i, n := range create {
		reversed[len(create)-1-i] = n
	}
	assert.Equal(t, reversed, drop)
}

func TestSortForCreateDetectsCycle(t *testing.T) {
	a := fkTable("a", "b", "id")
	b := fkTable("b", "a", "id")
	tables := map[string]*schema.Table{"a": a, "b": b}

	order, err := sorter.SortForCreate(tables)
	require.Error(t, err)
	var cycle *sorter.CycleWarning
	require.ErrorAs(t, err, &cycle)
	assert.ElementsMatch(t, []string{"a", "b"}, cycle.Tables)
	assert.Len(t, order, 2)
}

func TestSelfReferenceIsNotACycle(t *testing.T) {
	t1 := schema.NewTable("employees")
	_ = t1.AddColumn(schema.NewColumn("id", schema.TypeBigInt))
	_ = t1.AddColumn(schema.NewColumn("manager_id", schema.TypeBigInt))
	_ = t1.AddConstraint(&schema.Constraint{
		Name:      "fk_employees_manager",
		Kind:      schema.ConstraintForeign,
		Columns:   []string{"manager_id"},
		RefTable:  "employees",
		RefColumn: []string{"id"},
	})

	tables := map[string]*schema.Table{"employees": t1}
	order, err := sorter.SortForCreate(tables)
	require.NoError(t, err)
	assert.Equal(t, []string{"employees"}, order)
}
