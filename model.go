package main

// PropertyKind is the typed category of a single Notion database property.
// Values match the `type` discriminator in the Notion API.
type PropertyKind string

const (
	KindTitle          PropertyKind = "title"
	KindRichText       PropertyKind = "rich_text"
	KindNumber         PropertyKind = "number"
	KindSelect         PropertyKind = "select"
	KindMultiSelect    PropertyKind = "multi_select"
	KindDate           PropertyKind = "date"
	KindCheckbox       PropertyKind = "checkbox"
	KindURL            PropertyKind = "url"
	KindEmail          PropertyKind = "email"
	KindPhone          PropertyKind = "phone_number"
	KindRelation       PropertyKind = "relation"
	KindPeople         PropertyKind = "people"
	KindFiles          PropertyKind = "files"
	KindCreatedTime    PropertyKind = "created_time"
	KindCreatedBy      PropertyKind = "created_by"
	KindLastEditedTime PropertyKind = "last_edited_time"
	KindLastEditedBy   PropertyKind = "last_edited_by"
	KindFormula        PropertyKind = "formula"
	KindRollup         PropertyKind = "rollup"
)

// Option is one enumerated legal value of a select or multi_select property.
type Option struct {
	ID    string
	Value string
	Color string
}

// PropertyDefinition describes one typed property of a source database.
type PropertyDefinition struct {
	Name        string
	Kind        PropertyKind
	Description string
	Options     []Option // select / multi_select only
	RelationTo  string   // relation only: source id of the referenced database
}

// SourceDatabase is one structured collection in the Notion workspace,
// as returned by discovery. Immutable during a run.
type SourceDatabase struct {
	ID          string
	Title       string
	Description string
	// Properties preserves the API's ordering so derived schemas are stable.
	Properties []PropertyDefinition
}

// PropertyValue is the tagged-variant value of one property on one record.
// Number and Time carry the raw API text so parsing (and parse failure
// recovery) happens in the transformer, not in the HTTP client.
type PropertyValue struct {
	Kind   PropertyKind
	Text   *string
	Number *string
	Time   *string
	Bool   *bool
	List   []string
}

// SourceRecord is one page of a source database listing. Transient; exists
// only while streaming.
type SourceRecord struct {
	ID         string
	Properties map[string]PropertyValue
}

// ColumnSpec is one column of a derived table.
type ColumnSpec struct {
	Name        string // sanitized PG column name
	Property    string // source property name
	Kind        PropertyKind
	PGType      string
	Comment     string
	OptionTable string // select / multi_select: owning option table name
	RelationTo  string // relation: source id of the referenced database
}

// OptionTableSpec is the auxiliary lookup table owned by one select or
// multi_select column.
type OptionTableSpec struct {
	Name    string // {table}__{property}
	Column  string // owning column name in the main table
	Options []Option
}

// SkippedProperty records a property deliberately excluded from the schema.
type SkippedProperty struct {
	Name   string
	Kind   PropertyKind
	Reason string
}

// TableSchema is the relational schema derived from one SourceDatabase.
// Derived deterministically; never mutated after creation.
type TableSchema struct {
	SourceID     string
	Name         string
	Comment      string
	Columns      []ColumnSpec
	OptionTables []OptionTableSpec
	Skipped      []SkippedProperty
}

// optionTableFor returns the option table owned by the named column, or nil.
func (s *TableSchema) optionTableFor(column string) *OptionTableSpec {
	for i := range s.OptionTables {
		if s.OptionTables[i].Column == column {
			return &s.OptionTables[i]
		}
	}
	return nil
}

// DatabaseOutcome is the per-database result of a run.
type DatabaseOutcome struct {
	Database string
	Table    string
	Records  int
	Warnings []string
	Err      error
}

// Status reports success, partial, or failed for summary output.
func (o DatabaseOutcome) Status() string {
	switch {
	case o.Err != nil:
		return "failed"
	case len(o.Warnings) > 0:
		return "partial"
	default:
		return "success"
	}
}

// RunSummary aggregates per-database outcomes for the whole run.
type RunSummary struct {
	Outcomes []DatabaseOutcome
	Backfill int // rows updated during relation backfill
}

// Failed reports whether every attempted database failed.
func (s *RunSummary) Failed() bool {
	if len(s.Outcomes) == 0 {
		return false // nothing to migrate is a valid terminal success
	}
	for _, o := range s.Outcomes {
		if o.Err == nil {
			return false
		}
	}
	return true
}
