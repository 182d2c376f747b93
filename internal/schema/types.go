// Package schema holds the in-memory snapshot of a database's structure and
// the aggregator that builds it from raw catalog rows.
package schema

// Snapshot is everything one audit run discovered about a database. It is
// built once by Aggregate and read-only afterwards.
type Snapshot struct {
	ProductVersion string
	DatabaseName   string
	TotalSize      string

	Tables   []Table
	Views    []View
	Routines []Routine
	Triggers []Trigger

	// MissingCategories lists metadata categories whose catalog queries
	// failed; the report surfaces them explicitly.
	MissingCategories []string
}

// Table represents a database table
type Table struct {
	Schema      string
	Name        string
	Columns     []Column
	RowEstimate int64
	Size        string
	Indexes     []Index
	Constraints []Constraint
	ForeignKeys []ForeignKey
	Samples     SampleData
}

// ID returns the schema-qualified identifier, the table's unique key.
func (t *Table) ID() string { return QualifiedID(t.Schema, t.Name) }

// PrimaryKey returns the column names of the primary key constraint, if any.
func (t *Table) PrimaryKey() []string {
	for _, c := range t.Constraints {
		if c.Type == "PRIMARY KEY" {
			return c.Columns
		}
	}
	return nil
}

// View represents a view or materialized view
type View struct {
	Schema       string
	Name         string
	Materialized bool
	Definition   string
	Description  string
	Columns      []Column
	Dependencies []string // IDs of relations the view reads from
	RowEstimate  int64
	Size         string
	Samples      SampleData
}

// ID returns the schema-qualified identifier, the view's unique key.
func (v *View) ID() string { return QualifiedID(v.Schema, v.Name) }

// Column represents a table or view column
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Ordinal  int
	Default  *string
}

// Index represents a database index
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Constraint represents a primary key, unique, or check constraint
type Constraint struct {
	Name       string
	Type       string
	Columns    []string
	Definition string
}

// ForeignKey represents one foreign key constraint. Columns and
// TargetColumns are pairwise, in key column order.
type ForeignKey struct {
	Name          string
	Columns       []string
	TargetID      string
	TargetColumns []string
}

// SampleData holds the sampled rows of one table or view. Rows are aligned
// with Columns. Unavailable means the sampling query failed for this object.
type SampleData struct {
	Columns     []string
	Rows        [][]any
	Unavailable bool
}

// Routine represents a stored function or procedure
type Routine struct {
	Schema     string
	Name       string
	Arguments  string
	ReturnType string
	Language   string
	Definition string // empty when the engine could not produce source text
}

// ID returns the schema-qualified identifier.
func (r *Routine) ID() string { return QualifiedID(r.Schema, r.Name) }

// Trigger represents a trigger bound to one table
type Trigger struct {
	Schema    string
	Name      string
	TableID   string
	Timing    string
	Event     string
	Statement string
}

// ID returns the schema-qualified identifier.
func (t *Trigger) ID() string { return QualifiedID(t.Schema, t.Name) }

// QualifiedID derives the stable identifier for a schema-qualified object.
func QualifiedID(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}
