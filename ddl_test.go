package main

import (
	"context"
	"strings"
	"testing"
)

func testTableSchema() *TableSchema {
	return &TableSchema{
		SourceID: "db-1",
		Name:     "tasks",
		Comment:  "Task tracker",
		Columns: []ColumnSpec{
			{Name: "name", Property: "Name", Kind: KindTitle, PGType: "text"},
			{Name: "status", Property: "Status", Kind: KindSelect, PGType: "text", OptionTable: "tasks__status", Comment: "Lifecycle state"},
			{Name: "tags", Property: "Tags", Kind: KindMultiSelect, PGType: "text[]", OptionTable: "tasks__tags"},
			{Name: "owner", Property: "Owner", Kind: KindRelation, PGType: "text[]", RelationTo: "db-2"},
		},
		OptionTables: []OptionTableSpec{
			{Name: "tasks__status", Column: "status", Options: []Option{{ID: "o1", Value: "Todo", Color: "red"}}},
			{Name: "tasks__tags", Column: "tags"},
		},
	}
}

func TestGenerateCreateTable(t *testing.T) {
	ddl := generateCreateTable(testTableSchema(), "notion")

	if !strings.HasPrefix(ddl, "CREATE TABLE IF NOT EXISTS notion.tasks (") {
		t.Fatalf("unexpected DDL prefix:\n%s", ddl)
	}
	if !strings.Contains(ddl, "notion_id varchar(36) PRIMARY KEY") {
		t.Errorf("DDL should have the notion_id primary key, got:\n%s", ddl)
	}
	// every property column is nullable
	if strings.Contains(ddl, "NOT NULL") {
		t.Errorf("property columns must be nullable, got:\n%s", ddl)
	}
	if !strings.Contains(ddl, "tags text[]") {
		t.Errorf("multi_select should be text[], got:\n%s", ddl)
	}
}

func TestGenerateCreateTableReservedWords(t *testing.T) {
	schema := &TableSchema{Name: "user", Columns: []ColumnSpec{{Name: "order", PGType: "text"}}}
	ddl := generateCreateTable(schema, "notion")
	if !strings.Contains(ddl, `notion."user"`) || !strings.Contains(ddl, `"order" text`) {
		t.Errorf("reserved words should be quoted, got:\n%s", ddl)
	}
}

func TestGenerateOptionTable(t *testing.T) {
	ddl := generateOptionTable(OptionTableSpec{Name: "tasks__status"}, "notion")
	if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS notion.tasks__status") {
		t.Errorf("unexpected option DDL:\n%s", ddl)
	}
	if !strings.Contains(ddl, "value text PRIMARY KEY") {
		t.Errorf("option value should be the primary key, got:\n%s", ddl)
	}
}

func TestGenerateSelectConstraint(t *testing.T) {
	col := ColumnSpec{Name: "status", Kind: KindSelect, OptionTable: "tasks__status"}
	stmts := generateSelectConstraint("tasks", col, "notion")
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(stmts))
	}
	if !strings.Contains(stmts[0], "DROP CONSTRAINT IF EXISTS fk_tasks_status") {
		t.Errorf("first statement should drop the constraint, got %q", stmts[0])
	}
	if !strings.Contains(stmts[1], "FOREIGN KEY (status) REFERENCES notion.tasks__status(value)") {
		t.Errorf("second statement should add the FK, got %q", stmts[1])
	}
}

func TestGenerateComments(t *testing.T) {
	stmts := generateComments(testTableSchema(), "notion")
	want := []string{
		"COMMENT ON TABLE notion.tasks IS 'Task tracker'",
		"COMMENT ON COLUMN notion.tasks.status IS 'Lifecycle state'",
	}
	if len(stmts) != len(want) {
		t.Fatalf("got %d statements, want %d: %v", len(stmts), len(want), stmts)
	}
	for i := range want {
		if stmts[i] != want[i] {
			t.Errorf("statement %d = %q, want %q", i, stmts[i], want[i])
		}
	}
}

func TestUpsertSQL(t *testing.T) {
	sql := upsertSQL(testTableSchema(), "notion")

	if !strings.HasPrefix(sql, "INSERT INTO notion.tasks (notion_id, name, status, tags, owner) VALUES ($1, $2, $3, $4, $5)") {
		t.Fatalf("unexpected upsert:\n%s", sql)
	}
	if !strings.Contains(sql, "ON CONFLICT (notion_id) DO UPDATE SET name = EXCLUDED.name") {
		t.Errorf("upsert should update on conflict, got:\n%s", sql)
	}
}

func TestUpsertSQLNoColumns(t *testing.T) {
	sql := upsertSQL(&TableSchema{Name: "empty"}, "notion")
	if !strings.Contains(sql, "ON CONFLICT (notion_id) DO NOTHING") {
		t.Errorf("id-only table should DO NOTHING on conflict, got:\n%s", sql)
	}
}

func TestOptionInsertSQL(t *testing.T) {
	sql := optionInsertSQL("tasks__status", "notion")
	if sql != "INSERT INTO notion.tasks__status (value, option_id, color) VALUES ($1, $2, $3) ON CONFLICT (value) DO NOTHING" {
		t.Errorf("unexpected option insert: %q", sql)
	}
}

func TestColumnUpdateSQL(t *testing.T) {
	sql := columnUpdateSQL("tasks", "owner", "notion")
	if sql != "UPDATE notion.tasks SET owner = $1 WHERE notion_id = $2" {
		t.Errorf("unexpected update: %q", sql)
	}
}

func TestPrepareTargetSchema(t *testing.T) {
	t.Run("keep", func(t *testing.T) {
		db := newFakeDB()
		if err := prepareTargetSchema(context.Background(), db, "notion", "keep"); err != nil {
			t.Fatal(err)
		}
		if got := db.execLog[0]; got != "CREATE SCHEMA IF NOT EXISTS notion" {
			t.Errorf("exec = %q", got)
		}
	})

	t.Run("recreate", func(t *testing.T) {
		db := newFakeDB()
		if err := prepareTargetSchema(context.Background(), db, "notion", "recreate"); err != nil {
			t.Fatal(err)
		}
		if len(db.execLog) != 2 || !strings.HasPrefix(db.execLog[0], "DROP SCHEMA IF EXISTS") {
			t.Errorf("execs = %v", db.execLog)
		}
	})

	t.Run("error on existing", func(t *testing.T) {
		db := newFakeDB()
		db.schemaExists = true
		if err := prepareTargetSchema(context.Background(), db, "notion", "error"); err == nil {
			t.Fatal("expected error for pre-existing schema")
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		if err := prepareTargetSchema(context.Background(), newFakeDB(), "notion", "merge"); err == nil {
			t.Fatal("expected error for unsupported mode")
		}
	})
}

func TestApplySchemaOrdering(t *testing.T) {
	db := newFakeDB()
	if err := applySchema(context.Background(), db, testTableSchema(), "notion"); err != nil {
		t.Fatal(err)
	}

	// option tables must exist before the main table's FK references them
	var optIdx, tableIdx int = -1, -1
	for i, stmt := range db.execLog {
		if strings.Contains(stmt, "notion.tasks__status") && strings.HasPrefix(stmt, "CREATE TABLE") && optIdx < 0 {
			optIdx = i
		}
		if strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS notion.tasks (") {
			tableIdx = i
		}
	}
	if optIdx < 0 || tableIdx < 0 || optIdx > tableIdx {
		t.Errorf("option tables should be created before the main table: %v", db.execLog)
	}
}
