// Package orchestrator sequences a full migration run: pre-validate,
// rollback point, extract, per-table transform/render/execute, data
// copy, post-validate (spec §4.I). It owns the source and target
// connections for the lifetime of one run and is the only component
// that touches all the others.
package orchestrator

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/dbmigrate/dbmigrate/internal/connector"
	"github.com/dbmigrate/dbmigrate/internal/dialect"
	"github.com/dbmigrate/dbmigrate/internal/errs"
	"github.com/dbmigrate/dbmigrate/internal/extractor"
	"github.com/dbmigrate/dbmigrate/internal/metrics"
	"github.com/dbmigrate/dbmigrate/internal/migrator"
	"github.com/dbmigrate/dbmigrate/internal/renderer"
	"github.com/dbmigrate/dbmigrate/internal/rollback"
	"github.com/dbmigrate/dbmigrate/internal/schema"
	"github.com/dbmigrate/dbmigrate/internal/sorter"
	"github.com/dbmigrate/dbmigrate/internal/splitter"
	"github.com/dbmigrate/dbmigrate/internal/transformer"
	"github.com/dbmigrate/dbmigrate/internal/validator"
)

// gcInterval is how many tables' worth of DDL/data work pass before the
// orchestrator hints the garbage collector (spec: every 10 tables).
const gcInterval = 10

// Options is the normative options map (spec §6), one struct per run.
type Options struct {
	IncludeData            bool
	IncludeIndexes          bool
	IncludeConstraints      bool
	IncludeDropStatements   bool
	ChunkSize               int
	HandleConflicts         migrator.ConflictMode
	ValidateBeforeMigration bool
	ValidateAfterMigration  bool
	CreateRollbackPoint     bool
	StopOnError             bool
	ExcludeTables           []string
	IncludeTables           []string

	// ColumnMapping is per-table: table name -> (source column -> target column).
	ColumnMapping map[string]map[string]string

	FulltextStrategy             transformer.FulltextStrategy
	PostgreSQLLanguage           string
	PostgreSQLWeights            []string
	SQLiteFTSVersion             string
	ExecutePostTransformActions bool
	PostgreSQLGinIndexSuffix     string
	SQLiteFTSTableSuffix         string
	GeneratedColumnSuffix        string
	EnumConversion               transformer.EnumConversion

	DryRun bool
}

// DefaultOptions matches the normative defaults in spec §6.
func DefaultOptions() Options {
	to := transformer.DefaultOptions()
	return Options{
		IncludeData:                  true,
		IncludeIndexes:               true,
		IncludeConstraints:           true,
		IncludeDropStatements:        false,
		ChunkSize:                    1000,
		HandleConflicts:              migrator.ConflictUpdate,
		ValidateBeforeMigration:      true,
		ValidateAfterMigration:       true,
		CreateRollbackPoint:          true,
		StopOnError:                  true,
		FulltextStrategy:             to.FulltextStrategy,
		PostgreSQLLanguage:           to.PostgreSQLLanguage,
		PostgreSQLWeights:            to.PostgreSQLWeights,
		SQLiteFTSVersion:             to.SQLiteFTSVersion,
		ExecutePostTransformActions: true,
		PostgreSQLGinIndexSuffix:     to.PostgreSQLGinIndexSuffix,
		SQLiteFTSTableSuffix:         to.SQLiteFTSTableSuffix,
		GeneratedColumnSuffix:        to.GeneratedColumnSuffix,
		EnumConversion:               to.EnumConversion,
	}
}

func (o Options) transformerOptions() transformer.Options {
	return transformer.Options{
		EnumConversion:           o.EnumConversion,
		FulltextStrategy:         o.FulltextStrategy,
		PostgreSQLLanguage:       o.PostgreSQLLanguage,
		PostgreSQLWeights:        o.PostgreSQLWeights,
		SQLiteFTSVersion:         o.SQLiteFTSVersion,
		PostgreSQLGinIndexSuffix: o.PostgreSQLGinIndexSuffix,
		SQLiteFTSTableSuffix:     o.SQLiteFTSTableSuffix,
		GeneratedColumnSuffix:    o.GeneratedColumnSuffix,
	}
}

func (o Options) rendererOptions() renderer.Options {
	return renderer.Options{
		IncludeIndexes:       o.IncludeIndexes,
		IncludeConstraints:   o.IncludeConstraints,
		IncludeDropStatement: o.IncludeDropStatements,
	}
}

func (o Options) migratorOptions(mapping map[string]string) migrator.Options {
	return migrator.Options{
		ChunkSize:       o.ChunkSize,
		HandleConflicts: o.HandleConflicts,
		UseTransaction:  true,
		ColumnMapping:   mapping,
	}
}

// TableResult is the per-table outcome the orchestrator aggregates.
type TableResult struct {
	Table              string
	Warnings           []string
	DDLStatements      int
	IndexesConverted   int
	PGGinIndexes       int
	PGGeneratedColumns int
	SQLiteFTSTables    int
	RowsCopied         int64
	Duration           time.Duration
	Err                error
}

// MigrationResult is the full outcome of one orchestrator run.
type MigrationResult struct {
	MigrationID    string
	Success        bool
	DryRun         bool
	Tables         []TableResult
	PreValidation  validator.Report
	PostValidation validator.Report
	PhaseDurations map[string]time.Duration

	RollbackHandle rollback.Handle
	RolledBack     bool
	RollbackError  string

	Err error
}

// Orchestrator owns one source/target connection pair for the
// duration of a run.
type Orchestrator struct {
	Src         connector.Connector
	Dst         connector.Connector
	SrcDialect  dialect.Name
	DstDialect  dialect.Name
	SrcDatabase string
	DstDatabase string
	Rollback    rollback.Collaborator
	Logger      *slog.Logger
	Metrics     *metrics.Metrics

	srcPlat dialect.Platform
	dstPlat dialect.Platform
}

func New(src, dst connector.Connector, srcDialect, dstDialect dialect.Name, srcDatabase, dstDatabase string, rb rollback.Collaborator, logger *slog.Logger) (*Orchestrator, error) {
	srcPlat, err := dialect.For(srcDialect)
	if err != nil {
		return nil, &errs.ConfigError{Reason: err.Error()}
	}
	dstPlat, err := dialect.For(dstDialect)
	if err != nil {
		return nil, &errs.ConfigError{Reason: err.Error()}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if rb == nil {
		rb = rollback.NoopCollaborator{}
	}
	return &Orchestrator{
		Src: src, Dst: dst,
		SrcDialect: srcDialect, DstDialect: dstDialect,
		SrcDatabase: srcDatabase, DstDatabase: dstDatabase,
		Rollback: rb, Logger: logger,
		srcPlat: srcPlat, dstPlat: dstPlat,
	}, nil
}

// ValidateCompatibility checks whether the dialect pair is supported at
// all, without touching either connection.
func (o *Orchestrator) ValidateCompatibility() error {
	return validator.CheckDialectPair(o.SrcDialect, o.DstDialect)
}

// CreateRollbackPoint delegates to the configured collaborator.
func (o *Orchestrator) CreateRollbackPoint(ctx context.Context) (rollback.Handle, error) {
	return o.Rollback.Create(ctx, string(o.DstDialect)+":"+o.DstDatabase)
}

// RollbackTo restores a previously created rollback point.
func (o *Orchestrator) RollbackTo(ctx context.Context, handle rollback.Handle) (rollback.Result, error) {
	return o.Rollback.Restore(ctx, handle)
}

// MigrateSchema runs the full pipeline with data copy disabled.
func (o *Orchestrator) MigrateSchema(ctx context.Context, opts Options) (*MigrationResult, error) {
	opts.IncludeData = false
	return o.Migrate(ctx, opts)
}

// Migrate runs the full phase sequence and returns an aggregate result.
// It never returns a nil *MigrationResult, even on error, so callers
// can always inspect what happened before the failure.
func (o *Orchestrator) Migrate(ctx context.Context, opts Options) (*MigrationResult, error) {
	result := &MigrationResult{
		MigrationID:    uuid.NewString(),
		DryRun:         opts.DryRun,
		PhaseDurations: map[string]time.Duration{},
	}
	log := o.Logger.With(slog.String("migration_id", result.MigrationID))

	if err := o.ValidateCompatibility(); err != nil {
		result.Err = err
		return result, err
	}

	sourceTables, err := o.timedExtract(ctx, result, "extract_source", o.Src, o.SrcDialect, o.SrcDatabase)
	if err != nil {
		result.Err = err
		return result, err
	}
	sourceTables = filterTables(sourceTables, opts.IncludeTables, opts.ExcludeTables)

	if opts.ValidateBeforeMigration {
		start := time.Now()
		report, verr := validator.PreMigration(ctx, o.Src, o.Dst, o.srcPlat, o.dstPlat, sourceTables)
		result.PhaseDurations["pre_validate"] = time.Since(start)
		result.PreValidation = report
		if verr != nil {
			result.Err = verr
			return result, verr
		}
		if report.HasErrors() {
			err := &errs.ValidationError{Reason: "pre-migration validation failed"}
			result.Err = err
			return result, err
		}
	}

	if opts.CreateRollbackPoint && !opts.DryRun {
		handle, rerr := o.CreateRollbackPoint(ctx)
		if rerr != nil {
			result.Err = rerr
			return result, rerr
		}
		result.RollbackHandle = handle
		log.Info("rollback point created", slog.String("handle", string(handle)))
	}

	order, sortErr := sorter.SortForCreate(sourceTables)
	var cycleWarning *sorter.CycleWarning
	if sortErr != nil {
		if cw, ok := sortErr.(*sorter.CycleWarning); ok {
			cycleWarning = cw
			log.Warn("dependency cycle detected", slog.Any("tables", cw.Tables))
		} else {
			result.Err = sortErr
			o.maybeRollback(ctx, result, log)
			return result, sortErr
		}
	}

	transformed := make(map[string]*schema.Table, len(sourceTables))
	var tableResults []TableResult
	fatal := func(err error) (*MigrationResult, error) {
		result.Err = err
		o.maybeRollback(ctx, result, log)
		return result, err
	}

	start := time.Now()
	recordSchemaResult := func(tr TableResult) {
		tableResults = append(tableResults, tr)
		if o.Metrics != nil {
			o.Metrics.ObserveTable("schema", tr.Duration, tr.Err != nil)
		}
	}
	for i, name := range order {
		tr := TableResult{Table: name}
		tStart := time.Now()

		src := sourceTables[name]
		tres, terr := transformer.Transform(src, o.SrcDialect, o.DstDialect, opts.transformerOptions())
		if terr != nil {
			tr.Err = terr
			tr.Duration = time.Since(tStart)
			recordSchemaResult(tr)
			if opts.StopOnError {
				return fatal(terr)
			}
			continue
		}
		tr.Warnings = append(tr.Warnings, tres.Warnings...)
		tr.IndexesConverted = tres.IndexesConverted
		tr.PGGinIndexes = tres.PGGinIndexes
		tr.PGGeneratedColumns = tres.PGGeneratedColumns
		tr.SQLiteFTSTables = tres.SQLiteFTSTables
		transformed[name] = tres.Table

		if !opts.DryRun {
			stmts, rerr := renderer.Render(tres.Table, o.dstPlat, opts.rendererOptions())
			if rerr != nil {
				tr.Err = rerr
				tr.Duration = time.Since(tStart)
				recordSchemaResult(tr)
				if opts.StopOnError {
					return fatal(rerr)
				}
				continue
			}
			tr.DDLStatements = len(stmts)

			if err := o.executeDDL(ctx, stmts, name); err != nil {
				tr.Err = err
				tr.Duration = time.Since(tStart)
				recordSchemaResult(tr)
				if opts.StopOnError {
					return fatal(err)
				}
				continue
			}

			if opts.ExecutePostTransformActions {
				if err := o.executeActions(ctx, tres.Actions, name); err != nil {
					tr.Err = err
					tr.Duration = time.Since(tStart)
					recordSchemaResult(tr)
					if opts.StopOnError {
						return fatal(err)
					}
					continue
				}
			}
		}

		tr.Duration = time.Since(tStart)
		recordSchemaResult(tr)

		if ctxErr := ctx.Err(); ctxErr != nil {
			result.Err = &errs.CancelledError{}
			o.maybeRollback(ctx, result, log)
			return result, result.Err
		}
		if (i+1)%gcInterval == 0 {
			runtime.GC()
		}
	}
	result.PhaseDurations["schema"] = time.Since(start)

	if opts.IncludeData && !opts.DryRun {
		start := time.Now()
		mig := migrator.New(o.Src, o.Dst, o.srcPlat, o.dstPlat)
		for i, name := range order {
			target, ok := transformed[name]
			if !ok {
				continue
			}
			tableStart := time.Now()
			mres, merr := mig.CopyTable(ctx, sourceTables[name], target, opts.migratorOptions(opts.ColumnMapping[name]))
			if o.Metrics != nil {
				o.Metrics.ObserveChunk(name, mres.RowsCopied, time.Since(tableStart), merr != nil)
			}
			idx := resultIndex(tableResults, name)
			if idx >= 0 {
				tableResults[idx].RowsCopied = mres.RowsCopied
				tableResults[idx].Warnings = append(tableResults[idx].Warnings, mres.Warnings...)
				if merr != nil {
					tableResults[idx].Err = merr
				}
			}
			if merr != nil && opts.StopOnError {
				return fatal(merr)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				result.Err = &errs.CancelledError{}
				o.maybeRollback(ctx, result, log)
				return result, result.Err
			}
			if (i+1)%gcInterval == 0 {
				runtime.GC()
			}
		}
		result.PhaseDurations["data"] = time.Since(start)
	}

	result.Tables = tableResults

	if opts.ValidateAfterMigration && !opts.DryRun {
		start := time.Now()
		targetTables, terr := o.timedExtract(ctx, result, "extract_target", o.Dst, o.DstDialect, o.DstDatabase)
		if terr != nil {
			result.Err = terr
			return result, terr
		}
		result.PostValidation = validator.PostMigration(sourceTables, targetTables)
		result.PhaseDurations["post_validate"] = time.Since(start)
		if result.PostValidation.HasErrors() {
			err := &errs.ValidationError{Reason: "post-migration validation failed"}
			return fatal(err)
		}
	}

	if cycleWarning != nil {
		log.Warn("migration completed with an unresolved dependency cycle", slog.Any("tables", cycleWarning.Tables))
	}

	result.Success = true
	return result, nil
}

func (o *Orchestrator) timedExtract(ctx context.Context, result *MigrationResult, phase string, conn connector.Connector, name dialect.Name, database string) (map[string]*schema.Table, error) {
	start := time.Now()
	tables, err := extractor.New(conn, name).Extract(ctx, database)
	result.PhaseDurations[phase] = time.Since(start)
	return tables, err
}

func (o *Orchestrator) maybeRollback(ctx context.Context, result *MigrationResult, log *slog.Logger) {
	if result.RollbackHandle == "" {
		return
	}
	res, err := o.Rollback.Restore(ctx, result.RollbackHandle)
	if err != nil {
		result.RollbackError = err.Error()
		log.Error("rollback failed", slog.String("error", err.Error()))
		return
	}
	result.RolledBack = res.Restored
	log.Warn("rollback invoked after fatal error", slog.String("detail", res.Detail))
}

func (o *Orchestrator) executeDDL(ctx context.Context, stmts []string, tableName string) error {
	tx, err := o.Dst.Begin(ctx)
	if err != nil {
		return &errs.DDLExecError{Table: tableName, Err: err}
	}
	for _, s := range stmts {
		if err := tx.Exec(ctx, s); err != nil {
			tx.Rollback()
			return &errs.DDLExecError{Table: tableName, SQL: s, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &errs.DDLExecError{Table: tableName, Err: err}
	}
	return nil
}

// executeActions runs post-transform actions after the main table DDL.
// Trigger-bearing actions may bundle multiple CREATE TRIGGER statements
// in one string and must be split before execution.
func (o *Orchestrator) executeActions(ctx context.Context, actions []schema.PostTransformAction, tableName string) error {
	for _, a := range actions {
		stmts := []string{a.SQL}
		if a.Type == schema.ActionSQLiteFTSTriggers {
			split, err := splitter.Split(a.SQL, splitter.Options{})
			if err != nil {
				return &errs.DDLExecError{Table: tableName, Err: err}
			}
			stmts = split
		}
		for _, s := range stmts {
			if err := o.Dst.Exec(ctx, s); err != nil {
				return &errs.DDLExecError{Table: tableName, SQL: s, Err: err}
			}
		}
	}
	return nil
}

func resultIndex(results []TableResult, name string) int {
	for i, r := range results {
		if r.Table == name {
			return i
		}
	}
	return -1
}

func filterTables(tables map[string]*schema.Table, include, exclude []string) map[string]*schema.Table {
	if len(include) == 0 && len(exclude) == 0 {
		return tables
	}
	excludeSet := make(map[string]struct{}, len(exclude))
	for _, n := range exclude {
		excludeSet[n] = struct{}{}
	}
	includeSet := make(map[string]struct{}, len(include))
	for _, n := range include {
		includeSet[n] = struct{}{}
	}

	out := make(map[string]*schema.Table, len(tables))
	for name, t := range tables {
		if len(includeSet) > 0 {
			if _, ok := includeSet[name]; !ok {
				continue
			}
		}
		if _, ok := excludeSet[name]; ok {
			continue
		}
		out[name] = t
	}
	return out
}
