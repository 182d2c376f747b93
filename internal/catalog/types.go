// Package catalog reads raw schema metadata from a live database.
//
// Each engine (PostgreSQL, MySQL, SQLite) implements Provider by running
// catalog queries and returning the results as plain row sets, one set per
// metadata category. No grouping or cross-referencing happens here; that is
// the aggregator's job. A category query that fails does not fail the fetch:
// the category comes back empty and the failure is recorded on the row sets.
package catalog

import (
	"context"
	"fmt"
)

// Category identifies one class of catalog metadata.
type Category string

const (
	CategoryInfo        Category = "database info"
	CategoryTables      Category = "tables"
	CategoryColumns     Category = "columns"
	CategoryIndexes     Category = "indexes"
	CategoryConstraints Category = "constraints"
	CategoryForeignKeys Category = "foreign keys"
	CategoryViews       Category = "views"
	CategoryViewDeps    Category = "view dependencies"
	CategoryRoutines    Category = "routines"
	CategoryTriggers    Category = "triggers"
	CategorySamples     Category = "sample rows"
)

// TableRow describes one base table with its size and row-count estimates.
type TableRow struct {
	Schema      string
	Name        string
	RowEstimate int64
	Size        string
}

// ColumnRow describes one column of a table or view.
type ColumnRow struct {
	Schema   string
	Table    string
	Name     string
	DataType string
	Nullable bool
	Ordinal  int
	Default  *string
}

// IndexRow describes one index, excluding the primary key index.
type IndexRow struct {
	Schema  string
	Table   string
	Name    string
	Columns []string
	Unique  bool
}

// ConstraintRow describes one primary key, unique, or check constraint.
type ConstraintRow struct {
	Schema     string
	Table      string
	Name       string
	Type       string // PRIMARY KEY, UNIQUE, CHECK
	Columns    []string
	Definition string
}

// ForeignKeyRow describes one column pair of a foreign key constraint.
// Multi-column constraints produce one row per pair, in key column order.
type ForeignKeyRow struct {
	Schema       string
	Table        string
	Constraint   string
	Column       string
	TargetSchema string
	TargetTable  string
	TargetColumn string
}

// ViewRow describes one view or materialized view.
type ViewRow struct {
	Schema       string
	Name         string
	Materialized bool
	Definition   string
	Description  *string
	RowEstimate  int64
	Size         string
}

// ViewDependencyRow records that a view reads from another relation.
type ViewDependencyRow struct {
	Schema    string
	View      string
	RefSchema string
	RefName   string
}

// RoutineRow describes one stored function or procedure. Definition is nil
// when the engine cannot produce source text for the routine.
type RoutineRow struct {
	Schema     string
	Name       string
	Arguments  string
	ReturnType string
	Language   string
	Definition *string
}

// TriggerRow describes one trigger and the statement it executes.
type TriggerRow struct {
	Schema      string
	Name        string
	TableSchema string
	TableName   string
	Timing      string // BEFORE, AFTER, INSTEAD OF
	Event       string // INSERT, UPDATE, DELETE, ...
	Statement   string
}

// SampleSet holds sample rows fetched from one table or view. Columns
// preserves the select-list order so rendering is deterministic even though
// each row is a map. Unavailable is set when the sampling query failed for
// this object (for example on a permission error).
type SampleSet struct {
	Schema      string
	Table       string
	Columns     []string
	Rows        []map[string]any
	Unavailable bool
}

// DatabaseInfo carries the identity block for the report summary.
type DatabaseInfo struct {
	ProductVersion string
	DatabaseName   string
	TotalSize      string
}

// RowSets is everything one Fetch call could read from the catalog.
// Categories whose queries failed are empty and listed in Failures.
type RowSets struct {
	Info             DatabaseInfo
	Tables           []TableRow
	Columns          []ColumnRow
	Indexes          []IndexRow
	Constraints      []ConstraintRow
	ForeignKeys      []ForeignKeyRow
	Views            []ViewRow
	ViewDependencies []ViewDependencyRow
	Routines         []RoutineRow
	Triggers         []TriggerRow
	Samples          []SampleSet
	Failures         []CategoryError
}

// CategoryError records a failed catalog query for one metadata category.
type CategoryError struct {
	Category Category
	Err      error
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("catalog query for %s failed: %v", e.Category, e.Err)
}

func (e *CategoryError) Unwrap() error {
	return e.Err
}

// FetchOptions controls what a Provider reads.
type FetchOptions struct {
	// SampleLimit caps the number of sample rows fetched per table or view.
	SampleLimit int

	// Tables restricts extraction to the named tables (unqualified names).
	// Empty means all tables.
	Tables []string
}

// Provider reads raw catalog metadata from one database engine.
//
// Fetch returns an error only when the database cannot be queried at all.
// Individual category failures are recorded in RowSets.Failures and the
// remaining categories are still returned.
type Provider interface {
	Fetch(ctx context.Context, opts FetchOptions) (*RowSets, error)
}

func (o FetchOptions) wantsTable(name string) bool {
	if len(o.Tables) == 0 {
		return true
	}
	for _, t := range o.Tables {
		if t == name {
			return true
		}
	}
	return false
}
