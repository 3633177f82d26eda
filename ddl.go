package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbExecutor is the subset of pgxpool.Pool the engine needs, kept narrow so
// tests can substitute a fake target.
type dbExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// prepareTargetSchema creates the target schema according to the configured
// conflict behavior. "keep" treats a pre-existing schema as authoritative:
// re-running against it is the resume mechanism.
func prepareTargetSchema(ctx context.Context, exec dbExecutor, schema, onSchemaExists string) error {
	switch onSchemaExists {
	case "keep":
		if _, err := exec.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgIdent(schema))); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	case "recreate":
		if _, err := exec.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pgIdent(schema))); err != nil {
			return fmt.Errorf("drop schema: %w", err)
		}
		if _, err := exec.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", pgIdent(schema))); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	case "error":
		var exists bool
		if err := exec.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)", schema).Scan(&exists); err != nil {
			return fmt.Errorf("check schema existence: %w", err)
		}
		if exists {
			return fmt.Errorf("schema %q already exists in target database (on_schema_exists=error)", schema)
		}
		if _, err := exec.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", pgIdent(schema))); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	default:
		return fmt.Errorf("unsupported on_schema_exists value %q", onSchemaExists)
	}
	return nil
}

// applySchema creates a derived table, its option tables, constraints, and
// comments. Every statement is idempotent so a partial prior run converges.
func applySchema(ctx context.Context, exec dbExecutor, schema *TableSchema, pgSchema string) error {
	// option tables first: the main table's select FKs reference them
	for _, opt := range schema.OptionTables {
		if _, err := exec.Exec(ctx, generateOptionTable(opt, pgSchema)); err != nil {
			return fmt.Errorf("create option table %s: %w", opt.Name, err)
		}
	}

	log.Printf("  creating %s.%s", pgSchema, schema.Name)
	if _, err := exec.Exec(ctx, generateCreateTable(schema, pgSchema)); err != nil {
		return fmt.Errorf("create table %s: %w", schema.Name, err)
	}

	for _, col := range schema.Columns {
		if col.Kind != KindSelect || col.OptionTable == "" {
			continue
		}
		for _, stmt := range generateSelectConstraint(schema.Name, col, pgSchema) {
			if _, err := exec.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("constrain %s.%s: %w", schema.Name, col.Name, err)
			}
		}
	}

	for _, stmt := range generateComments(schema, pgSchema) {
		if _, err := exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("comment on %s: %w", schema.Name, err)
		}
	}
	return nil
}

// generateCreateTable produces the CREATE TABLE IF NOT EXISTS statement for
// a derived table. Every property column is nullable: source properties are
// optional on every record.
func generateCreateTable(schema *TableSchema, pgSchema string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s.%s (\n", pgIdent(pgSchema), pgIdent(schema.Name))
	fmt.Fprintf(&b, "  %s varchar(36) PRIMARY KEY", pgIdent(idColumn))
	for _, col := range schema.Columns {
		fmt.Fprintf(&b, ",\n  %s %s", pgIdent(col.Name), col.PGType)
	}
	b.WriteString("\n)")
	return b.String()
}

// generateOptionTable produces the lookup table owned by one select or
// multi_select column. The legal value is the primary key so data columns
// can reference it directly; the source option id and color ride along.
func generateOptionTable(opt OptionTableSpec, pgSchema string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s.%s (\n", pgIdent(pgSchema), pgIdent(opt.Name))
	b.WriteString("  value text PRIMARY KEY,\n")
	b.WriteString("  option_id varchar(100),\n")
	b.WriteString("  color varchar(50)\n)")
	return b.String()
}

// generateSelectConstraint restricts a select column to its option table.
// The constraint is dropped and re-added under a deterministic name so
// re-runs converge. multi_select columns get no SQL constraint: PostgreSQL
// cannot CHECK array membership against a table, so the load order (options
// before rows) carries that invariant.
func generateSelectConstraint(table string, col ColumnSpec, pgSchema string) []string {
	name := fmt.Sprintf("fk_%s_%s", table, col.Name)
	if len(name) > 63 {
		name = strings.TrimRight(name[:63], "_")
	}
	qualified := fmt.Sprintf("%s.%s", pgIdent(pgSchema), pgIdent(table))
	return []string{
		fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", qualified, pgIdent(name)),
		fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s.%s(value)",
			qualified, pgIdent(name), pgIdent(col.Name), pgIdent(pgSchema), pgIdent(col.OptionTable)),
	}
}

// generateComments persists database and property descriptions as table and
// column comments.
func generateComments(schema *TableSchema, pgSchema string) []string {
	var stmts []string
	qualified := fmt.Sprintf("%s.%s", pgIdent(pgSchema), pgIdent(schema.Name))
	if schema.Comment != "" {
		stmts = append(stmts, fmt.Sprintf("COMMENT ON TABLE %s IS %s", qualified, pgQuoteLiteral(schema.Comment)))
	}
	for _, col := range schema.Columns {
		if col.Comment == "" {
			continue
		}
		stmts = append(stmts, fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s",
			qualified, pgIdent(col.Name), pgQuoteLiteral(col.Comment)))
	}
	return stmts
}

// upsertSQL builds the insert-or-update statement for a derived table,
// keyed by the source identifier.
func upsertSQL(schema *TableSchema, pgSchema string) string {
	cols := []string{pgIdent(idColumn)}
	var updates []string
	for _, col := range schema.Columns {
		quoted := pgIdent(col.Name)
		cols = append(cols, quoted)
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", quoted, quoted))
	}

	params := make([]string, len(cols))
	for i := range params {
		params[i] = fmt.Sprintf("$%d", i+1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s.%s (%s) VALUES (%s)",
		pgIdent(pgSchema), pgIdent(schema.Name),
		strings.Join(cols, ", "), strings.Join(params, ", "))
	if len(updates) > 0 {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", pgIdent(idColumn), strings.Join(updates, ", "))
	} else {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO NOTHING", pgIdent(idColumn))
	}
	return b.String()
}

// optionInsertSQL builds the insert-if-absent statement for an option
// table. Inserting an already-known value is a no-op, which makes both
// re-runs and mid-stream option discovery idempotent.
func optionInsertSQL(optTable, pgSchema string) string {
	return fmt.Sprintf(
		"INSERT INTO %s.%s (value, option_id, color) VALUES ($1, $2, $3) ON CONFLICT (value) DO NOTHING",
		pgIdent(pgSchema), pgIdent(optTable))
}

// columnUpdateSQL builds a single-column update keyed by source identifier,
// used by relation backfill and content extraction.
func columnUpdateSQL(table, column, pgSchema string) string {
	return fmt.Sprintf("UPDATE %s.%s SET %s = $1 WHERE %s = $2",
		pgIdent(pgSchema), pgIdent(table), pgIdent(column), pgIdent(idColumn))
}
