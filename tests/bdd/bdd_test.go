//go:build bdd

// Package bdd drives the end-to-end migration scenarios with godog
// (Cucumber for Go).
//
//	go test -tags bdd -v ./tests/bdd/...
package bdd

import (
	"os"
	"testing"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"

	"github.com/dbmigrate/dbmigrate/tests/bdd/steps"
)

func TestFeatures(t *testing.T) {
	opts := godog.Options{
		Format:   "pretty",
		Output:   colors.Colored(os.Stdout),
		Paths:    []string{"features"},
		TestingT: t,
	}

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			tc := steps.NewTestContext()
			steps.RegisterScenarioSteps(ctx, tc)
		},
		Options: &opts,
	}

	if suite.Run() != 0 {
		t.Fatal("BDD tests failed")
	}
}
