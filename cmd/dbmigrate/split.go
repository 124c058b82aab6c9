package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbmigrate/dbmigrate/internal/splitter"
)

func splitCmd() *cobra.Command {
	var mysqlMode, postgresMode bool

	cmd := &cobra.Command{
		Use:   "split <file.sql>",
		Short: "Split a SQL file into individual statements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			stmts, err := splitter.Split(string(data), splitter.Options{
				MySQLMode:      mysqlMode,
				PostgreSQLMode: postgresMode,
			})
			if err != nil {
				return err
			}
			for i, s := range stmts {
				fmt.Fprintf(cmd.OutOrStdout(), "-- statement %d --\n%s\n", i+1, s)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&mysqlMode, "mysql", false, "enable MySQL DELIMITER handling")
	cmd.Flags().BoolVar(&postgresMode, "postgres", false, "enable PostgreSQL dollar-quoting")
	return cmd
}
