package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbmigrate/dbmigrate/internal/config"
	"github.com/dbmigrate/dbmigrate/internal/dialect"
	"github.com/dbmigrate/dbmigrate/internal/extractor"
	"github.com/dbmigrate/dbmigrate/internal/validator"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check dialect compatibility and scan the source schema for migration hazards",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if err := validator.CheckDialectPair(dialect.Name(cfg.Source.Dialect), dialect.Name(cfg.Target.Dialect)); err != nil {
				return err
			}

			ctx := context.Background()

			srcConn, srcDialect, err := openConnector(cfg.Source)
			if err != nil {
				return fmt.Errorf("opening source: %w", err)
			}
			defer srcConn.Close()

			dstConn, dstDialect, err := openConnector(cfg.Target)
			if err != nil {
				return fmt.Errorf("opening target: %w", err)
			}
			defer dstConn.Close()

			srcPlat, err := dialect.For(srcDialect)
			if err != nil {
				return err
			}
			dstPlat, err := dialect.For(dstDialect)
			if err != nil {
				return err
			}

			tables, err := extractor.New(srcConn, srcDialect).Extract(ctx, cfg.Source.Database)
			if err != nil {
				return fmt.Errorf("extracting source schema: %w", err)
			}

			report, err := validator.PreMigration(ctx, srcConn, dstConn, srcPlat, dstPlat, tables)
			if err != nil {
				return err
			}

			for _, f := range report.Findings {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s.%s: %s\n", f.Severity, f.Table, f.Column, f.Message)
			}
			if report.HasErrors() {
				return fmt.Errorf("validation found %d blocking issue(s)", len(report.Errors()))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "validation passed: %d table(s), %d warning(s)\n", len(tables), len(report.Findings))
			return nil
		},
	}
}
