package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbmigrate/dbmigrate/internal/config"
	"github.com/dbmigrate/dbmigrate/internal/logging"
	"github.com/dbmigrate/dbmigrate/internal/metrics"
	"github.com/dbmigrate/dbmigrate/internal/migrator"
	"github.com/dbmigrate/dbmigrate/internal/orchestrator"
	"github.com/dbmigrate/dbmigrate/internal/rollback"
	"github.com/dbmigrate/dbmigrate/internal/transformer"
)

var (
	flagChunkSize       int
	flagHandleConflicts string
	flagDryRun          bool
	flagJSONReport      bool
	flagStopOnError     bool
	flagExcludeTables   []string
	flagIncludeTables   []string
	flagRollbackDir     string
)

func bindMigrationFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&flagChunkSize, "chunk-size", 1000, "rows copied per chunk")
	cmd.Flags().StringVar(&flagHandleConflicts, "handle-conflicts", "update", "skip, update, or error")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "compute the plan without writing to the target")
	cmd.Flags().BoolVar(&flagJSONReport, "json", false, "print the migration report as JSON")
	cmd.Flags().BoolVar(&flagStopOnError, "stop-on-error", true, "abort on the first table-level error")
	cmd.Flags().StringSliceVar(&flagExcludeTables, "exclude-table", nil, "table to exclude, repeatable")
	cmd.Flags().StringSliceVar(&flagIncludeTables, "include-table", nil, "table to include exclusively, repeatable")
	cmd.Flags().StringVar(&flagRollbackDir, "rollback-dir", ".dbmigrate/rollback", "directory for rollback-point markers")
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate schema and data from source to target",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, false)
		},
	}
	bindMigrationFlags(cmd)
	return cmd
}

func migrateSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate-schema",
		Short: "Migrate schema only, skipping data copy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, true)
		},
	}
	bindMigrationFlags(cmd)
	return cmd
}

func runMigration(cmd *cobra.Command, schemaOnly bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	cfg.Migration.ChunkSize = flagChunkSize
	cfg.Migration.HandleConflicts = flagHandleConflicts
	cfg.Migration.DryRun = flagDryRun
	cfg.Migration.StopOnError = flagStopOnError
	cfg.Migration.ExcludeTables = flagExcludeTables
	cfg.Migration.IncludeTables = flagIncludeTables
	if schemaOnly {
		cfg.Migration.IncludeData = false
	}

	logger := logging.New(cfg.Logging)
	m := metrics.New()
	if cfg.Metrics.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port)
		srv := &http.Server{Addr: addr, Handler: m.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", "error", err.Error())
			}
		}()
		defer srv.Close()
		logger.Info("metrics endpoint listening", "addr", addr)
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

	rb := rollback.NewFileCollaborator(flagRollbackDir)

	o, err := orchestrator.New(srcConn, dstConn, srcDialect, dstDialect, cfg.Source.Database, cfg.Target.Database, rb, logger)
	if err != nil {
		return err
	}
	o.Metrics = m

	opts := migrationOptionsFromConfig(cfg.Migration)
	result, err := o.Migrate(ctx, opts)
	if result != nil {
		printReport(cmd, result)
	}
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("migration %s did not complete successfully", result.MigrationID)
	}
	return nil
}

func migrationOptionsFromConfig(mc config.MigrationConfig) orchestrator.Options {
	opts := orchestrator.DefaultOptions()
	opts.IncludeData = mc.IncludeData
	opts.IncludeIndexes = mc.IncludeIndexes
	opts.IncludeConstraints = mc.IncludeConstraints
	opts.IncludeDropStatements = mc.IncludeDropStatements
	opts.ChunkSize = mc.ChunkSize
	opts.HandleConflicts = migrator.ConflictMode(mc.HandleConflicts)
	opts.ValidateBeforeMigration = mc.ValidateBeforeMigration
	opts.ValidateAfterMigration = mc.ValidateAfterMigration
	opts.CreateRollbackPoint = mc.CreateRollbackPoint
	opts.StopOnError = mc.StopOnError
	opts.ExcludeTables = mc.ExcludeTables
	opts.IncludeTables = mc.IncludeTables
	opts.ColumnMapping = mc.ColumnMapping
	opts.FulltextStrategy = transformer.FulltextStrategy(mc.FulltextStrategy)
	opts.PostgreSQLLanguage = mc.PostgreSQLLanguage
	opts.PostgreSQLWeights = mc.PostgreSQLWeights
	opts.SQLiteFTSVersion = mc.SQLiteFTSVersion
	opts.ExecutePostTransformActions = mc.ExecutePostTransformActions
	opts.PostgreSQLGinIndexSuffix = mc.PostgreSQLGinIndexSuffix
	opts.SQLiteFTSTableSuffix = mc.SQLiteFTSTableSuffix
	opts.GeneratedColumnSuffix = mc.GeneratedColumnSuffix
	opts.EnumConversion = transformer.EnumConversion(mc.EnumConversion)
	opts.DryRun = mc.DryRun
	return opts
}

func printReport(cmd *cobra.Command, result *orchestrator.MigrationResult) {
	if flagJSONReport {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintf(w, "migration\t%s\n", result.MigrationID)
	fmt.Fprintf(w, "success\t%v\n", result.Success)
	if result.DryRun {
		fmt.Fprintf(w, "dry run\tyes\n")
	}
	fmt.Fprintln(w, "table\trows\tddl\twarnings\tduration\terror")
	for _, t := range result.Tables {
		errStr := ""
		if t.Err != nil {
			errStr = t.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\n", t.Table, t.RowsCopied, t.DDLStatements, len(t.Warnings), t.Duration.Round(time.Millisecond), errStr)
	}
	if result.RollbackHandle != "" {
		fmt.Fprintf(w, "rollback handle\t%s\n", result.RollbackHandle)
	}
	if result.RolledBack {
		fmt.Fprintf(w, "rolled back\tyes\n")
	}
	_ = w.Flush()

	if !flagJSONReport {
		fmt.Fprintln(os.Stderr, "pass --json for the full machine-readable report")
	}
}
