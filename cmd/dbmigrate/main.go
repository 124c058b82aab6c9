// Command dbmigrate copies schema and data between MySQL, PostgreSQL,
// and SQLite databases.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:     "dbmigrate",
		Short:   "Migrate relational schemas and data across MySQL, PostgreSQL, and SQLite",
		Version: fmt.Sprintf("%s (%s)", version, commit),
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")

	rootCmd.AddCommand(
		migrateCmd(),
		migrateSchemaCmd(),
		validateCmd(),
		rollbackCmd(),
		splitCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
