package main

import (
	"fmt"
	"strconv"
	"time"
)

// transformedRow is one record coerced into the shape of its table's upsert
// statement, plus whatever must happen before the row insert commits.
type transformedRow struct {
	// args are the upsert bind parameters: notion_id first, then one value
	// per schema column in order.
	args []any
	// newOptions holds option values first observed in this record, keyed by
	// option table. They must be inserted before the row so data never
	// references an option absent from its lookup table.
	newOptions map[string][]Option
	warnings   []string
}

// recordTransformer converts source records into rows for one table. It
// tracks the known option value sets so options discovered mid-stream are
// surfaced exactly once.
type recordTransformer struct {
	schema   *TableSchema
	resolver *identityResolver
	options  map[string]map[string]bool // option table → known values
}

func newRecordTransformer(schema *TableSchema, resolver *identityResolver) *recordTransformer {
	options := make(map[string]map[string]bool, len(schema.OptionTables))
	for _, opt := range schema.OptionTables {
		set := make(map[string]bool, len(opt.Options))
		for _, o := range opt.Options {
			set[o.Value] = true
		}
		options[opt.Name] = set
	}
	return &recordTransformer{schema: schema, resolver: resolver, options: options}
}

// toRow coerces one record. Field-level failures (unparseable numbers or
// timestamps) become a null plus a warning; a migration never aborts over
// one malformed field.
func (t *recordTransformer) toRow(rec *SourceRecord) *transformedRow {
	row := &transformedRow{args: make([]any, 0, len(t.schema.Columns)+1)}
	row.args = append(row.args, rec.ID)

	for _, col := range t.schema.Columns {
		val, ok := rec.Properties[col.Property]
		if col.Property == "" || !ok {
			row.args = append(row.args, nil)
			continue
		}
		row.args = append(row.args, t.coerce(rec.ID, col, val, row))
	}
	return row
}

func (t *recordTransformer) coerce(recID string, col ColumnSpec, val PropertyValue, row *transformedRow) any {
	switch col.Kind {
	case KindNumber:
		if val.Number == nil {
			return nil
		}
		n, err := strconv.ParseFloat(*val.Number, 64)
		if err != nil {
			row.warn("record %s: property %q: unparseable number %q", recID, col.Property, *val.Number)
			return nil
		}
		return n

	case KindDate, KindCreatedTime, KindLastEditedTime:
		if val.Time == nil {
			return nil
		}
		ts, err := parseTimestamp(*val.Time)
		if err != nil {
			row.warn("record %s: property %q: unparseable timestamp %q", recID, col.Property, *val.Time)
			return nil
		}
		return ts

	case KindCheckbox:
		if val.Bool == nil {
			return nil
		}
		return *val.Bool

	case KindSelect:
		if val.Text == nil || *val.Text == "" {
			return nil
		}
		t.noteOption(col.OptionTable, *val.Text, row)
		return *val.Text

	case KindMultiSelect:
		values := make([]string, 0, len(val.List))
		for _, v := range val.List {
			t.noteOption(col.OptionTable, v, row)
			values = append(values, v)
		}
		return values

	case KindRelation:
		resolved := t.resolver.resolveAll(val.List)
		if len(resolved) < len(val.List) {
			// targets may live in a database streamed later; park the full
			// reference list for the backfill pass
			t.resolver.addPending(t.schema.Name, recID, col.Name, val.List)
		}
		return resolved

	case KindPeople, KindFiles:
		if val.List == nil {
			return []string{}
		}
		return val.List

	default:
		// text-backed kinds, including the unknown-kind fallback
		if val.Text == nil {
			return nil
		}
		return *val.Text
	}
}

// noteOption records an option value, queueing it for insertion when it was
// not part of the discovery-time option set.
func (t *recordTransformer) noteOption(optTable, value string, row *transformedRow) {
	if optTable == "" {
		return
	}
	set := t.options[optTable]
	if set == nil {
		set = make(map[string]bool)
		t.options[optTable] = set
	}
	if set[value] {
		return
	}
	set[value] = true
	if row.newOptions == nil {
		row.newOptions = make(map[string][]Option)
	}
	row.newOptions[optTable] = append(row.newOptions[optTable], Option{Value: value, Color: "default"})
}

func (row *transformedRow) warn(format string, args ...any) {
	row.warnings = append(row.warnings, fmt.Sprintf(format, args...))
}

// timestampLayouts covers the API's two date shapes: full RFC 3339 and
// date-only.
var timestampLayouts = []string{time.RFC3339, "2006-01-02"}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
