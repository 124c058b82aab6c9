//go:build bdd

// Package steps holds the godog step definitions for the end-to-end
// migration scenarios, each one driving the real schema/transformer/
// renderer/sorter/splitter/migrator packages directly rather than
// through a running server.
package steps

import (
	"github.com/dbmigrate/dbmigrate/internal/schema"
	"github.com/dbmigrate/dbmigrate/internal/transformer"
)

// TestContext carries scenario-local state between Given/When/Then
// steps. A fresh one is built for every scenario.
type TestContext struct {
	table           *schema.Table
	transformResult *transformer.Result

	tables      map[string]*schema.Table
	createOrder []string
	dropOrder   []string

	insertSQL string
	stagedRow []any

	splitStatements []string
}

// NewTestContext returns an empty scenario context.
func NewTestContext() *TestContext {
	return &TestContext{}
}
