// Package sorter implements the dependency-aware topological ordering
// of tables for DDL emission (spec §4.D). It never mutates its input.
package sorter

import (
	"sort"

	"github.com/dbmigrate/dbmigrate/internal/schema"
)

// CycleWarning names the tables participating in a detected FK cycle.
type CycleWarning struct {
	Tables []string
}

func (w *CycleWarning) Error() string {
	return "sorter: cycle detected among tables " + joinNames(w.Tables)
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

// edges returns, for each table, the set of distinct parent tables it
// has a foreign key to (child -> parent), excluding self-references.
func edges(tables map[string]*schema.Table) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(tables))
	for name := range tables {
		out[name] = map[string]struct{}{}
	}
	for name, t := range tables {
		for _, fk := range t.ForeignKeys() {
			if fk.RefTable == "" || fk.RefTable == name {
				continue
			}
			if _, ok := tables[fk.RefTable]; !ok {
				continue // referent outside the migrated set; ignore for ordering
			}
			out[name][fk.RefTable] = struct{}{}
		}
	}
	return out
}

// SortForCreate orders tables so every FK referent precedes its
// dependents, using Kahn's algorithm with a deterministic ascending
// name tiebreak. On a cycle, it returns a best-effort order (tables
// with no remaining satisfiable dependency go first, ties broken by
// name) plus a *CycleWarning naming the participants; the caller
// decides whether to continue.
func SortForCreate(tables map[string]*schema.Table) ([]string, error) {
	dep := edges(tables) // child -> parents
	indegree := map[string]int{}
	for name := range tables {
		indegree[name] = len(dep[name])
	}

	// children[parent] = set of children depending on it, for decrement.
	children := map[string][]string{}
	for child, parents := range dep {
		for parent := range parents {
			children[parent] = append(children[parent], child)
		}
	}
	for parent := range children {
		sort.Strings(children[parent])
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var order []string
	remaining := map[string]int{}
	for k, v := range indegree {
		remaining[k] = v
	}

	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, child := range children[name] {
			remaining[child]--
			if remaining[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	if len(order) == len(tables) {
		return order, nil
	}

	// Cycle: append the unresolved tables in name order as a best-effort
	// tail, and report which ones were involved.
	var stuck []string
	for name, deg := range remaining {
		if deg > 0 {
			stuck = append(stuck, name)
		}
	}
	sort.Strings(stuck)
	order = append(order, stuck...)
	return order, &CycleWarning{Tables: stuck}
}

// SortForDrop returns the reverse of SortForCreate: for acyclic input,
// sortForDrop(S) == reverse(sortForCreate(S)).
func SortForDrop(tables map[string]*schema.Table) ([]string, error) {
	order, err := SortForCreate(tables)
	reversed := make([]string, len(order))
	for i, n := range order {
		reversed[len(order)-1-i] = n
	}
	return reversed, err
}
