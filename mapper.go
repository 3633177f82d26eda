package main

import (
	"fmt"
	"log"
	"strings"
)

// propertyTypes is the deterministic PropertyKind → PostgreSQL type table.
// Formula and rollup are absent on purpose: they are non-enumerable computed
// properties and are skipped with a diagnostic, not silently dropped.
var propertyTypes = map[PropertyKind]string{
	KindTitle:          "text",
	KindRichText:       "text",
	KindURL:            "text",
	KindEmail:          "text",
	KindPhone:          "text",
	KindSelect:         "text",
	KindCreatedBy:      "text",
	KindLastEditedBy:   "text",
	KindMultiSelect:    "text[]",
	KindRelation:       "text[]",
	KindPeople:         "text[]",
	KindFiles:          "text[]",
	KindNumber:         "numeric",
	KindDate:           "timestamptz",
	KindCreatedTime:    "timestamptz",
	KindLastEditedTime: "timestamptz",
	KindCheckbox:       "boolean",
}

// idColumn is the primary key of every derived table: the 36-character
// Notion page UUID. Upserts and identity resolution key on it.
const idColumn = "notion_id"

// contentColumn receives extracted page content when extraction is enabled.
const contentColumn = "page_content"

// schemaMapper derives relational table schemas from source database
// definitions. One instance spans a run so table names stay unique across
// databases whose titles collapse to the same identifier.
type schemaMapper struct {
	tables      *uniquifier
	withContent bool
}

func newSchemaMapper(withContent bool) *schemaMapper {
	return &schemaMapper{tables: newUniquifier(), withContent: withContent}
}

// deriveSchema maps one source database to a table schema. The mapping is
// deterministic: the same database definition always yields the same schema
// (subject to first-seen collision suffixes on the shared table namespace).
func (m *schemaMapper) deriveSchema(db *SourceDatabase) *TableSchema {
	schema := &TableSchema{
		SourceID: db.ID,
		Name:     m.tables.take(cleanName(db.Title)),
		Comment:  db.Description,
	}

	cols := newUniquifier()
	cols.take(idColumn)
	if m.withContent {
		cols.take(contentColumn)
	}

	for _, prop := range db.Properties {
		if prop.Kind == KindFormula || prop.Kind == KindRollup {
			schema.Skipped = append(schema.Skipped, SkippedProperty{
				Name:   prop.Name,
				Kind:   prop.Kind,
				Reason: "computed property, not enumerable",
			})
			continue
		}

		kind := prop.Kind
		pgType, ok := propertyTypes[kind]
		if !ok {
			// The property taxonomy grows over time; treat unknown kinds as
			// rich text rather than failing the whole database.
			log.Printf("  WARN: property %q has unrecognized kind %q, storing as text", prop.Name, kind)
			kind = KindRichText
			pgType = "text"
		}

		col := ColumnSpec{
			Name:       cols.take(cleanName(prop.Name)),
			Property:   prop.Name,
			Kind:       kind,
			PGType:     pgType,
			Comment:    prop.Description,
			RelationTo: prop.RelationTo,
		}

		if kind == KindSelect || kind == KindMultiSelect {
			opt := OptionTableSpec{
				Name:    optionTableName(schema.Name, col.Name),
				Column:  col.Name,
				Options: append([]Option(nil), prop.Options...),
			}
			col.OptionTable = opt.Name
			schema.OptionTables = append(schema.OptionTables, opt)
		}

		schema.Columns = append(schema.Columns, col)
	}

	if m.withContent {
		schema.Columns = append(schema.Columns, ColumnSpec{
			Name:    contentColumn,
			Kind:    KindRichText,
			PGType:  "text",
			Comment: "plain-text page content extracted from blocks",
		})
	}

	return schema
}

// optionTableName builds the {table}__{property} lookup table name, trimmed
// to PostgreSQL's identifier limit.
func optionTableName(table, column string) string {
	name := fmt.Sprintf("%s__%s", table, column)
	if len(name) > 63 {
		name = strings.TrimRight(name[:63], "_")
	}
	return name
}
