package schema

import (
	"log/slog"
	"sort"

	"github.com/t6891/pgxray/internal/catalog"
)

// Config carries the settings the aggregator needs. No package-level state.
type Config struct {
	// SampleLimit caps sampled rows per object even if the provider
	// returned more. Zero or negative disables samples entirely.
	SampleLimit int

	Logger *slog.Logger
}

type relKind int

const (
	relUnknown relKind = iota
	relTable
	relView
)

// relationBuilder accumulates metadata for one table or view as rows arrive.
// Rows may arrive in any category order, so a builder starts as a placeholder
// the first time anything references its identifier and is filled in as the
// remaining categories are consumed.
type relationBuilder struct {
	schema string
	name   string
	kind   relKind

	rowEstimate int64
	size        string

	columns []Column
	colSeen map[string]bool

	indexes     []Index
	constraints []Constraint

	fks     map[string]*ForeignKey
	fkOrder []string

	samples    catalog.SampleSet
	hasSamples bool

	materialized bool
	definition   string
	description  string
	deps         map[string]bool
}

// Aggregate assembles raw catalog row sets into an immutable Snapshot.
// Columns without a resolvable owner are discarded with a warning; duplicate
// (object, column) pairs keep the first occurrence and log a conflict.
func Aggregate(rows *catalog.RowSets, cfg Config) *Snapshot {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &aggregator{
		arena:  map[string]*relationBuilder{},
		logger: logger,
		cfg:    cfg,
	}

	a.consumeTables(rows.Tables)
	a.consumeViews(rows.Views)
	a.consumeColumns(rows.Columns)
	a.consumeIndexes(rows.Indexes)
	a.consumeConstraints(rows.Constraints)
	a.consumeForeignKeys(rows.ForeignKeys)
	a.consumeViewDependencies(rows.ViewDependencies)
	a.consumeSamples(rows.Samples)

	return a.finalize(rows)
}

type aggregator struct {
	arena  map[string]*relationBuilder
	logger *slog.Logger
	cfg    Config
}

// builder returns the builder for an identifier, creating a placeholder if
// this is the first row to reference it.
func (a *aggregator) builder(schema, name string) *relationBuilder {
	id := QualifiedID(schema, name)
	b, ok := a.arena[id]
	if !ok {
		b = &relationBuilder{
			schema:      schema,
			name:        name,
			rowEstimate: -1,
			colSeen:     map[string]bool{},
			fks:         map[string]*ForeignKey{},
			deps:        map[string]bool{},
		}
		a.arena[id] = b
	}
	return b
}

func (a *aggregator) consumeTables(rows []catalog.TableRow) {
	for _, r := range rows {
		b := a.builder(r.Schema, r.Name)
		b.kind = relTable
		b.rowEstimate = r.RowEstimate
		b.size = r.Size
	}
}

func (a *aggregator) consumeViews(rows []catalog.ViewRow) {
	for _, r := range rows {
		b := a.builder(r.Schema, r.Name)
		b.kind = relView
		b.materialized = r.Materialized
		b.definition = r.Definition
		if r.Description != nil {
			b.description = *r.Description
		}
		b.rowEstimate = r.RowEstimate
		b.size = r.Size
	}
}

func (a *aggregator) consumeColumns(rows []catalog.ColumnRow) {
	for _, r := range rows {
		if r.Table == "" {
			a.logger.Warn("discarding column without an owner", "column", r.Name)
			continue
		}
		b := a.builder(r.Schema, r.Table)
		if b.colSeen[r.Name] {
			a.logger.Warn("duplicate column definition, keeping first",
				"object", QualifiedID(r.Schema, r.Table), "column", r.Name)
			continue
		}
		b.colSeen[r.Name] = true
		b.columns = append(b.columns, Column{
			Name:     r.Name,
			Type:     r.DataType,
			Nullable: r.Nullable,
			Ordinal:  r.Ordinal,
			Default:  r.Default,
		})
	}
}

func (a *aggregator) consumeIndexes(rows []catalog.IndexRow) {
	for _, r := range rows {
		b := a.builder(r.Schema, r.Table)
		b.indexes = append(b.indexes, Index{
			Name:    r.Name,
			Columns: r.Columns,
			Unique:  r.Unique,
		})
	}
}

func (a *aggregator) consumeConstraints(rows []catalog.ConstraintRow) {
	for _, r := range rows {
		b := a.builder(r.Schema, r.Table)
		b.constraints = append(b.constraints, Constraint{
			Name:       r.Name,
			Type:       r.Type,
			Columns:    r.Columns,
			Definition: r.Definition,
		})
	}
}

// consumeForeignKeys folds the per-column-pair rows of each constraint into
// one ForeignKey, keyed by constraint name, columns in arrival order.
func (a *aggregator) consumeForeignKeys(rows []catalog.ForeignKeyRow) {
	for _, r := range rows {
		b := a.builder(r.Schema, r.Table)
		fk, ok := b.fks[r.Constraint]
		if !ok {
			fk = &ForeignKey{
				Name:     r.Constraint,
				TargetID: QualifiedID(r.TargetSchema, r.TargetTable),
			}
			b.fks[r.Constraint] = fk
			b.fkOrder = append(b.fkOrder, r.Constraint)
		}
		fk.Columns = append(fk.Columns, r.Column)
		fk.TargetColumns = append(fk.TargetColumns, r.TargetColumn)
	}
}

func (a *aggregator) consumeViewDependencies(rows []catalog.ViewDependencyRow) {
	for _, r := range rows {
		b := a.builder(r.Schema, r.View)
		b.deps[QualifiedID(r.RefSchema, r.RefName)] = true
	}
}

func (a *aggregator) consumeSamples(sets []catalog.SampleSet) {
	for _, s := range sets {
		b := a.builder(s.Schema, s.Table)
		b.samples = s
		b.hasSamples = true
	}
}

// finalize freezes the arena into the immutable snapshot, sorting every
// group by identifier so repeated runs produce identical output.
func (a *aggregator) finalize(rows *catalog.RowSets) *Snapshot {
	snap := &Snapshot{
		ProductVersion: rows.Info.ProductVersion,
		DatabaseName:   rows.Info.DatabaseName,
		TotalSize:      rows.Info.TotalSize,
	}

	ids := make([]string, 0, len(a.arena))
	for id := range a.arena {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		b := a.arena[id]
		switch b.kind {
		case relView:
			snap.Views = append(snap.Views, b.finalizeView(a.cfg))
		default:
			// Placeholders that never saw a tables row (for example when
			// that category failed) are reported as tables rather than lost.
			snap.Tables = append(snap.Tables, b.finalizeTable(a.cfg))
		}
	}

	snap.Routines = finalizeRoutines(rows.Routines)
	snap.Triggers = finalizeTriggers(rows.Triggers)
	snap.MissingCategories = finalizeFailures(rows.Failures)

	return snap
}

func (b *relationBuilder) finalizeTable(cfg Config) Table {
	return Table{
		Schema:      b.schema,
		Name:        b.name,
		Columns:     b.sortedColumns(),
		RowEstimate: b.rowEstimate,
		Size:        b.size,
		Indexes:     b.indexes,
		Constraints: b.constraints,
		ForeignKeys: b.orderedFKs(),
		Samples:     b.finalizeSamples(cfg),
	}
}

func (b *relationBuilder) finalizeView(cfg Config) View {
	deps := make([]string, 0, len(b.deps))
	for dep := range b.deps {
		deps = append(deps, dep)
	}
	sort.Strings(deps)

	return View{
		Schema:       b.schema,
		Name:         b.name,
		Materialized: b.materialized,
		Definition:   b.definition,
		Description:  b.description,
		Columns:      b.sortedColumns(),
		Dependencies: deps,
		RowEstimate:  b.rowEstimate,
		Size:         b.size,
		Samples:      b.finalizeSamples(cfg),
	}
}

func (b *relationBuilder) sortedColumns() []Column {
	cols := make([]Column, len(b.columns))
	copy(cols, b.columns)
	sort.SliceStable(cols, func(i, j int) bool {
		return cols[i].Ordinal < cols[j].Ordinal
	})
	return cols
}

func (b *relationBuilder) orderedFKs() []ForeignKey {
	fks := make([]ForeignKey, 0, len(b.fkOrder))
	for _, name := range b.fkOrder {
		fks = append(fks, *b.fks[name])
	}
	sort.SliceStable(fks, func(i, j int) bool {
		return fks[i].Name < fks[j].Name
	})
	return fks
}

func (b *relationBuilder) finalizeSamples(cfg Config) SampleData {
	if !b.hasSamples {
		return SampleData{}
	}
	if b.samples.Unavailable {
		return SampleData{Unavailable: true}
	}

	data := SampleData{Columns: b.samples.Columns}
	for _, row := range b.samples.Rows {
		if cfg.SampleLimit > 0 && len(data.Rows) >= cfg.SampleLimit {
			break
		}
		values := make([]any, len(data.Columns))
		for i, col := range data.Columns {
			values[i] = row[col]
		}
		data.Rows = append(data.Rows, values)
	}
	return data
}

func finalizeRoutines(rows []catalog.RoutineRow) []Routine {
	routines := make([]Routine, 0, len(rows))
	for _, r := range rows {
		routine := Routine{
			Schema:     r.Schema,
			Name:       r.Name,
			Arguments:  r.Arguments,
			ReturnType: r.ReturnType,
			Language:   r.Language,
		}
		if r.Definition != nil {
			routine.Definition = *r.Definition
		}
		routines = append(routines, routine)
	}
	sort.SliceStable(routines, func(i, j int) bool {
		return routines[i].ID() < routines[j].ID()
	})
	return routines
}

// finalizeTriggers folds the catalog's one-row-per-event shape (a trigger on
// INSERT OR UPDATE arrives as two rows) into one Trigger per (name, table),
// events joined in arrival order.
func finalizeTriggers(rows []catalog.TriggerRow) []Trigger {
	merged := map[string]*Trigger{}
	seenEvent := map[string]bool{}
	var order []string

	for _, r := range rows {
		tableID := QualifiedID(r.TableSchema, r.TableName)
		key := QualifiedID(r.Schema, r.Name) + "\x00" + tableID
		t, ok := merged[key]
		if !ok {
			t = &Trigger{
				Schema:    r.Schema,
				Name:      r.Name,
				TableID:   tableID,
				Timing:    r.Timing,
				Event:     r.Event,
				Statement: r.Statement,
			}
			merged[key] = t
			seenEvent[key+"\x00"+r.Event] = true
			order = append(order, key)
			continue
		}
		if r.Event != "" && !seenEvent[key+"\x00"+r.Event] {
			seenEvent[key+"\x00"+r.Event] = true
			t.Event += " OR " + r.Event
		}
	}

	triggers := make([]Trigger, 0, len(order))
	for _, key := range order {
		triggers = append(triggers, *merged[key])
	}
	sort.SliceStable(triggers, func(i, j int) bool {
		if triggers[i].ID() != triggers[j].ID() {
			return triggers[i].ID() < triggers[j].ID()
		}
		return triggers[i].TableID < triggers[j].TableID
	})
	return triggers
}

func finalizeFailures(failures []catalog.CategoryError) []string {
	seen := map[string]bool{}
	var missing []string
	for _, f := range failures {
		cat := string(f.Category)
		if !seen[cat] {
			seen[cat] = true
			missing = append(missing, cat)
		}
	}
	sort.Strings(missing)
	return missing
}
