package main

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// loadEngine orchestrates the full migration: discovery → schema creation →
// paginated extraction → transformation → idempotent upsert, then a second
// pass to backfill relation arrays once every identifier is known.
// Databases are processed sequentially; all outbound API calls funnel
// through one shared rate limiter.
type loadEngine struct {
	cfg      *MigrationConfig
	src      sourceAPI
	exec     dbExecutor
	rl       *rateLimiter
	resolver *identityResolver

	// confirm, when set and cfg.Yes is false, is asked before any DDL runs.
	confirm func() bool
}

func newLoadEngine(cfg *MigrationConfig, src sourceAPI, exec dbExecutor) *loadEngine {
	return &loadEngine{
		cfg:      cfg,
		src:      src,
		exec:     exec,
		rl:       newRateLimiter(cfg.RequestsPerSecond),
		resolver: newIdentityResolver(),
	}
}

// Run executes the migration. The returned error is reserved for
// unrecoverable failures (source or storage unreachable, cancellation); a
// single misbehaving database is recorded in the summary and the run
// continues with the rest.
func (e *loadEngine) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{}

	log.Printf("discovering databases...")
	all, err := collectPages(ctx, e.rl, e.cfg.MaxRetries, e.src.SearchDatabases)
	if err != nil {
		return nil, fmt.Errorf("discover databases: %w", err)
	}

	dbs := make([]SourceDatabase, 0, len(all))
	for _, db := range all {
		if e.cfg.databaseIncluded(db.Title) {
			dbs = append(dbs, db)
		}
	}
	log.Printf("found %d databases (%d after include filter)", len(all), len(dbs))
	if len(dbs) == 0 {
		log.Printf("nothing to migrate")
		return summary, nil
	}

	mapper := newSchemaMapper(e.cfg.ExtractContent)
	schemas := make([]*TableSchema, len(dbs))
	for i := range dbs {
		schemas[i] = mapper.deriveSchema(&dbs[i])
		logPlan(&dbs[i], schemas[i])
	}

	if !e.cfg.Yes && e.confirm != nil && !e.confirm() {
		log.Printf("migration cancelled by user")
		return summary, nil
	}

	log.Printf("preparing schema %q...", e.cfg.Schema)
	if err := prepareTargetSchema(ctx, e.exec, e.cfg.Schema, e.cfg.OnSchemaExists); err != nil {
		return nil, err
	}

	if err := loadAndExecSQLFiles(ctx, e.exec, e.cfg, e.cfg.Hooks.BeforeData, "before_data"); err != nil {
		return nil, fmt.Errorf("before_data hooks: %w", err)
	}

	for i := range dbs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		outcome := e.migrateDatabase(ctx, &dbs[i], schemas[i])
		summary.Outcomes = append(summary.Outcomes, outcome)
		if errors.Is(outcome.Err, context.Canceled) || errors.Is(outcome.Err, context.DeadlineExceeded) {
			return summary, outcome.Err
		}
		if outcome.Err != nil {
			log.Printf("  ERROR migrating %q: %v (continuing with remaining databases)", outcome.Database, outcome.Err)
		}
	}

	if err := loadAndExecSQLFiles(ctx, e.exec, e.cfg, e.cfg.Hooks.AfterData, "after_data"); err != nil {
		return summary, fmt.Errorf("after_data hooks: %w", err)
	}

	log.Printf("backfilling relation arrays (%d pending)...", len(e.resolver.pending))
	updated, err := e.backfillRelations(ctx)
	summary.Backfill = updated
	if err != nil {
		return summary, fmt.Errorf("relation backfill: %w", err)
	}

	if err := loadAndExecSQLFiles(ctx, e.exec, e.cfg, e.cfg.Hooks.AfterAll, "after_all"); err != nil {
		return summary, fmt.Errorf("after_all hooks: %w", err)
	}

	return summary, nil
}

// logPlan prints what one database will become before anything is created.
func logPlan(db *SourceDatabase, schema *TableSchema) {
	relations := 0
	for _, col := range schema.Columns {
		if col.Kind == KindRelation {
			relations++
		}
	}
	log.Printf("  %s → %s (%d cols, %d option tables, %d relations, %d skipped)",
		db.Title, schema.Name, len(schema.Columns), len(schema.OptionTables), relations, len(schema.Skipped))
	for _, skip := range schema.Skipped {
		log.Printf("    skipping %q (%s: %s)", skip.Name, skip.Kind, skip.Reason)
	}
}

// migrateDatabase runs schema creation and streaming for one database. Any
// error aborts only this database; the returned outcome carries it.
func (e *loadEngine) migrateDatabase(ctx context.Context, db *SourceDatabase, schema *TableSchema) DatabaseOutcome {
	outcome := DatabaseOutcome{Database: db.Title, Table: schema.Name}

	if err := applySchema(ctx, e.exec, schema, e.cfg.Schema); err != nil {
		outcome.Err = err
		return outcome
	}
	if err := e.seedOptions(ctx, schema); err != nil {
		outcome.Err = err
		return outcome
	}

	upsert := upsertSQL(schema, e.cfg.Schema)
	transformer := newRecordTransformer(schema, e.resolver)
	bar := newProgressBar(e.cfg.Verbose, -1, schema.Name)
	defer bar.Finish()

	fetch := func(ctx context.Context, cursor string) ([]SourceRecord, string, error) {
		return e.src.QueryRecords(ctx, db.ID, cursor)
	}
	for rec, err := range paginate(ctx, e.rl, e.cfg.MaxRetries, fetch) {
		if err != nil {
			outcome.Err = fmt.Errorf("stream records: %w", err)
			return outcome
		}
		if err := e.loadRecord(ctx, schema, transformer, upsert, &rec, &outcome); err != nil {
			outcome.Err = err
			return outcome
		}
		bar.Add(1)
	}

	log.Printf("  %s: %d records", schema.Name, outcome.Records)
	return outcome
}

// loadRecord upserts one record. New option values are inserted before the
// row that references them so option tables always cover the data.
func (e *loadEngine) loadRecord(ctx context.Context, schema *TableSchema, transformer *recordTransformer, upsert string, rec *SourceRecord, outcome *DatabaseOutcome) error {
	row := transformer.toRow(rec)
	outcome.Warnings = append(outcome.Warnings, row.warnings...)

	for optTable, opts := range row.newOptions {
		stmt := optionInsertSQL(optTable, e.cfg.Schema)
		for _, opt := range opts {
			if _, err := e.exec.Exec(ctx, stmt, opt.Value, opt.ID, opt.Color); err != nil {
				return fmt.Errorf("insert option %q into %s: %w", opt.Value, optTable, err)
			}
		}
	}

	if _, err := e.exec.Exec(ctx, upsert, row.args...); err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ID, err)
	}
	e.resolver.recordKnown(rec.ID, schema.Name)
	outcome.Records++

	if e.cfg.ExtractContent {
		text, err := extractContent(ctx, e.src, e.rl, e.cfg.MaxRetries, rec.ID)
		if err != nil {
			// content is an optional enrichment; a failed extraction keeps the row
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("record %s: content extraction: %v", rec.ID, err))
			return nil
		}
		stmt := columnUpdateSQL(schema.Name, contentColumn, e.cfg.Schema)
		if _, err := e.exec.Exec(ctx, stmt, text, rec.ID); err != nil {
			return fmt.Errorf("store content for %s: %w", rec.ID, err)
		}
	}
	return nil
}

// seedOptions inserts the discovery-time option sets before any rows, so
// select FK constraints hold from the first upsert.
func (e *loadEngine) seedOptions(ctx context.Context, schema *TableSchema) error {
	for _, opt := range schema.OptionTables {
		stmt := optionInsertSQL(opt.Name, e.cfg.Schema)
		for _, o := range opt.Options {
			if _, err := e.exec.Exec(ctx, stmt, o.Value, o.ID, o.Color); err != nil {
				return fmt.Errorf("seed option table %s: %w", opt.Name, err)
			}
		}
	}
	return nil
}

// backfillRelations re-resolves every relation reference parked during
// streaming and rewrites the affected columns. References that still do not
// resolve (pages outside the integration's scope) stay dropped.
func (e *loadEngine) backfillRelations(ctx context.Context) (int, error) {
	updated := 0
	for _, p := range e.resolver.pending {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		resolved := e.resolver.resolveAll(p.Refs)
		stmt := columnUpdateSQL(p.Table, p.Column, e.cfg.Schema)
		if _, err := e.exec.Exec(ctx, stmt, resolved, p.RowID); err != nil {
			return updated, fmt.Errorf("update %s.%s for %s: %w", p.Table, p.Column, p.RowID, err)
		}
		updated++
	}
	return updated, nil
}
