package migrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/stokaro/ferry/config"
	"github.com/stokaro/ferry/core/migspec"
	"github.com/stokaro/ferry/core/targetschema"
	"github.com/stokaro/ferry/core/transform"
	"github.com/stokaro/ferry/dbschema/types"
	"github.com/stokaro/ferry/migration/pipeline"
	"github.com/stokaro/ferry/migration/resolver"
	"github.com/stokaro/ferry/migration/schemaplan"
	"github.com/stokaro/ferry/migration/verifier"
)

// Migrator runs a migration from a source store into a target store in four phases:
// schema creation, record migration, link resolution, and verification with cleanup.
type Migrator struct {
	migration *migspec.Migration
	schema    *targetschema.Schema
	source    types.RecordReader
	target    types.Target
	opts      *config.Options

	database string
	dbOpts   types.DatabaseOptions
	clock    clockwork.Clock
	mapper   resolver.IDMapper
	logger   *slog.Logger
}

// NewMigrator transforms the migration into its target schema and returns a migrator for it.
// A misconfigured migration fails here, before the source or the target is touched.
func NewMigrator(m *migspec.Migration, source types.RecordReader, target types.Target, opts *config.Options) (*Migrator, error) {
	schema, err := transform.Transform(m)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = config.DefaultOptions()
	}
	return &Migrator{
		migration: m,
		schema:    schema,
		source:    source,
		target:    target,
		opts:      opts.Normalize(),
		database:  target.Info().Name,
		logger:    slog.Default(),
	}, nil
}

// WithLogger sets the logger for the migrator
func (m *Migrator) WithLogger(l *slog.Logger) *Migrator {
	tmp := *m
	tmp.logger = l
	return &tmp
}

// WithDatabase sets the name and options of the target database created in the first phase
func (m *Migrator) WithDatabase(name string, opts types.DatabaseOptions) *Migrator {
	tmp := *m
	tmp.database = name
	tmp.dbOpts = opts
	return &tmp
}

// WithClock sets the clock the resolver uses to space its requests
func (m *Migrator) WithClock(c clockwork.Clock) *Migrator {
	tmp := *m
	tmp.clock = c
	return &tmp
}

// WithIDMapper sets the mapping from source ids to target ids used when resolving links
func (m *Migrator) WithIDMapper(mapper resolver.IDMapper) *Migrator {
	tmp := *m
	tmp.mapper = mapper
	return &tmp
}

// Schema returns the target schema derived from the migration.
func (m *Migrator) Schema() *targetschema.Schema {
	return m.schema
}

// Run executes every phase that is not skipped and returns the report of the run.
//
// Table failures of the record and resolve phases do not stop the run: the other tables
// go on, and the failures are joined in the returned error. Any other failure stops the
// run and is returned along with the partial report.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	skip := m.migration.Skip
	report := newReport(m.schema)
	var tableErrs []error

	if skip.CreateTargetDatabase {
		m.logger.Info("Skipping target database creation")
	} else if err := m.CreateSchema(ctx); err != nil {
		return report, err
	}

	var migrated *pipeline.Result
	if skip.MigrateRecords {
		m.logger.Info("Skipping record migration")
	} else {
		res, err := m.MigrateRecords(ctx)
		if res != nil {
			report.addMigrated(res)
		}
		if err != nil {
			if ctx.Err() != nil {
				return report, err
			}
			tableErrs = append(tableErrs, err)
		}
		migrated = res
	}

	if skip.ResolveLinks {
		m.logger.Info("Skipping link resolution")
	} else {
		res, err := m.ResolveLinks(ctx)
		if res != nil {
			report.addResolved(res)
		}
		if err != nil {
			return report, err
		}
		for _, name := range m.schema.Names() {
			if err, ok := res.TableErrors[name]; ok {
				tableErrs = append(tableErrs, err)
			}
		}
	}

	if skip.CheckAndClean {
		m.logger.Info("Skipping verification and cleanup")
	} else {
		res, plan, err := m.CheckAndClean(ctx, migrated)
		if err != nil {
			return report, err
		}
		report.addVerified(res, plan)
	}

	for _, name := range report.Unresolved() {
		m.logger.Warn("Links left unresolved, staging columns kept", "table", name)
	}
	return report, errors.Join(tableErrs...)
}

// CreateSchema creates the target database and every table of the schema.
func (m *Migrator) CreateSchema(ctx context.Context) error {
	m.logger.Info("Creating target database", "database", m.database)
	if err := m.target.CreateDatabase(ctx, m.database, m.dbOpts); err != nil {
		return fmt.Errorf("failed to create database %s: %w", m.database, err)
	}

	plan := schemaplan.Initial(m.schema)
	m.logger.Info("Applying schema plan", "version", plan.Version, "tables", len(plan.TablesAdded))
	if err := m.target.ApplyPlan(ctx, plan); err != nil {
		return fmt.Errorf("failed to apply schema plan %d: %w", plan.Version, err)
	}
	return nil
}

// MigrateRecords copies every source record into the target.
func (m *Migrator) MigrateRecords(ctx context.Context) (*pipeline.Result, error) {
	m.logger.Info("Migrating records", "tables", len(m.migration.Tables))
	res, err := pipeline.New(m.migration, m.schema, m.source, m.target, m.opts).
		WithLogger(m.logger).
		Run(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to migrate records: %w", err)
	}
	return res, nil
}

// ResolveLinks turns the staging values written by MigrateRecords into links.
func (m *Migrator) ResolveLinks(ctx context.Context) (*resolver.Result, error) {
	r := resolver.New(m.schema, m.target, m.target, m.opts).WithLogger(m.logger)
	if m.clock != nil {
		r = r.WithClock(m.clock)
	}
	if m.mapper != nil {
		r = r.WithIDMapper(m.mapper)
	}
	res, err := r.Resolve(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to resolve links: %w", err)
	}
	return res, nil
}

// Verify checks which tables still have unresolved links without changing the target.
func (m *Migrator) Verify(ctx context.Context) (*verifier.Result, error) {
	res, err := verifier.New(m.schema, m.target).
		WithLogger(m.logger).
		WithConcurrency(m.opts.VerifyConcurrency).
		Verify(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify links: %w", err)
	}
	return res, nil
}

// CheckAndClean verifies the links and applies the cleanup plan: staging columns of fully
// resolved tables are dropped, and error tables that received no rows are removed. Error
// tables are only removed when migrated, the result of the record phase of this run, is given.
func (m *Migrator) CheckAndClean(ctx context.Context, migrated *pipeline.Result) (*verifier.Result, *schemaplan.Plan, error) {
	res, err := m.Verify(ctx)
	if err != nil {
		return nil, nil, err
	}

	plan := schemaplan.Cleanup(res.ResolvedTableMigrations, m.emptyErrorTables(migrated))
	if !plan.HasChanges() {
		m.logger.Info("Nothing to clean up")
		return res, plan, nil
	}

	m.logger.Info("Applying schema plan", "version", plan.Version, "modified", len(plan.TablesModified), "removed", len(plan.TablesRemoved))
	if err := m.target.ApplyPlan(ctx, plan); err != nil {
		return res, plan, fmt.Errorf("failed to apply schema plan %d: %w", plan.Version, err)
	}
	return res, plan, nil
}

func (m *Migrator) emptyErrorTables(migrated *pipeline.Result) []string {
	if migrated == nil {
		return nil
	}
	var names []string
	for i := range m.migration.Tables {
		name := m.migration.TargetTableName(&m.migration.Tables[i])
		if _, failed := migrated.Failed[name]; failed {
			continue
		}
		errTable := m.migration.ErrorTableNameOf(name)
		if migrated.Written[errTable] == 0 {
			names = append(names, errTable)
		}
	}
	return names
}
