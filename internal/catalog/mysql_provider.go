package catalog

import (
	"context"
	"log/slog"
	"sort"
)

// MySQLProvider reads catalog metadata for one MySQL database through
// information_schema. MySQL has no materialized views and no view dependency
// tracking, so those categories are always empty.
type MySQLProvider struct {
	client *MySQLClient
	schema string
	logger *slog.Logger
}

// NewMySQLProvider creates a catalog provider for the named MySQL database.
func NewMySQLProvider(client *MySQLClient, schemaName string, logger *slog.Logger) *MySQLProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &MySQLProvider{client: client, schema: schemaName, logger: logger}
}

// Fetch reads all metadata categories, recording per-category failures.
func (p *MySQLProvider) Fetch(ctx context.Context, opts FetchOptions) (*RowSets, error) {
	rs := &RowSets{}

	p.fetchInfo(ctx, rs)
	p.fetchTables(ctx, rs, opts)
	p.fetchColumns(ctx, rs)
	p.fetchIndexes(ctx, rs)
	p.fetchConstraints(ctx, rs)
	p.fetchForeignKeys(ctx, rs)
	p.fetchViews(ctx, rs)
	p.fetchRoutines(ctx, rs)
	p.fetchTriggers(ctx, rs)
	p.fetchSamples(ctx, rs, opts)

	return rs, nil
}

func (p *MySQLProvider) fail(rs *RowSets, cat Category, err error) {
	p.logger.Warn("catalog query failed", "category", string(cat), "error", err)
	rs.Failures = append(rs.Failures, CategoryError{Category: cat, Err: err})
}

func (p *MySQLProvider) fetchInfo(ctx context.Context, rs *RowSets) {
	db := p.client.GetDB()

	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&rs.Info.ProductVersion); err != nil {
		p.fail(rs, CategoryInfo, err)
		return
	}
	rs.Info.DatabaseName = p.schema

	var total int64
	err := db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(data_length + index_length), 0)
		FROM information_schema.tables
		WHERE table_schema = ?
	`, p.schema).Scan(&total)
	if err != nil {
		p.fail(rs, CategoryInfo, err)
		return
	}
	rs.Info.TotalSize = prettySize(total)
}

func (p *MySQLProvider) fetchTables(ctx context.Context, rs *RowSets, opts FetchOptions) {
	query := `
		SELECT table_name,
		       COALESCE(table_rows, 0),
		       COALESCE(data_length + index_length, 0)
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := p.client.GetDB().QueryContext(ctx, query, p.schema)
	if err != nil {
		p.fail(rs, CategoryTables, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var t TableRow
		var sizeBytes int64
		if err := rows.Scan(&t.Name, &t.RowEstimate, &sizeBytes); err != nil {
			p.fail(rs, CategoryTables, err)
			return
		}
		t.Schema = p.schema
		t.Size = prettySize(sizeBytes)
		if opts.wantsTable(t.Name) {
			rs.Tables = append(rs.Tables, t)
		}
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryTables, err)
	}
}

func (p *MySQLProvider) fetchColumns(ctx context.Context, rs *RowSets) {
	query := `
		SELECT table_name, column_name, column_type, is_nullable,
		       ordinal_position, column_default
		FROM information_schema.columns
		WHERE table_schema = ?
		ORDER BY table_name, ordinal_position
	`

	rows, err := p.client.GetDB().QueryContext(ctx, query, p.schema)
	if err != nil {
		p.fail(rs, CategoryColumns, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var c ColumnRow
		var nullable string
		if err := rows.Scan(&c.Table, &c.Name, &c.DataType, &nullable,
			&c.Ordinal, &c.Default); err != nil {
			p.fail(rs, CategoryColumns, err)
			return
		}
		c.Schema = p.schema
		c.Nullable = nullable == "YES"
		rs.Columns = append(rs.Columns, c)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryColumns, err)
	}
}

func (p *MySQLProvider) fetchIndexes(ctx context.Context, rs *RowSets) {
	query := `
		SELECT table_name, index_name, non_unique, column_name, seq_in_index
		FROM information_schema.statistics
		WHERE table_schema = ? AND index_name != 'PRIMARY'
		ORDER BY table_name, index_name, seq_in_index
	`

	rows, err := p.client.GetDB().QueryContext(ctx, query, p.schema)
	if err != nil {
		p.fail(rs, CategoryIndexes, err)
		return
	}
	defer rows.Close()

	// One row per indexed column; fold into one IndexRow per index.
	byKey := map[string]*IndexRow{}
	var order []string
	for rows.Next() {
		var table, index, column string
		var nonUnique, seq int
		if err := rows.Scan(&table, &index, &nonUnique, &column, &seq); err != nil {
			p.fail(rs, CategoryIndexes, err)
			return
		}
		key := table + "\x00" + index
		ix, ok := byKey[key]
		if !ok {
			ix = &IndexRow{Schema: p.schema, Table: table, Name: index, Unique: nonUnique == 0}
			byKey[key] = ix
			order = append(order, key)
		}
		ix.Columns = append(ix.Columns, column)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryIndexes, err)
		return
	}

	sort.Strings(order)
	for _, key := range order {
		rs.Indexes = append(rs.Indexes, *byKey[key])
	}
}

func (p *MySQLProvider) fetchConstraints(ctx context.Context, rs *RowSets) {
	query := `
		SELECT tc.table_name, tc.constraint_name, tc.constraint_type,
		       kcu.column_name, kcu.ordinal_position
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		  AND tc.table_name = kcu.table_name
		WHERE tc.table_schema = ?
		  AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
		ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position
	`

	rows, err := p.client.GetDB().QueryContext(ctx, query, p.schema)
	if err != nil {
		p.fail(rs, CategoryConstraints, err)
		return
	}
	defer rows.Close()

	byKey := map[string]*ConstraintRow{}
	var order []string
	for rows.Next() {
		var table, name, ctype, column string
		var ord int
		if err := rows.Scan(&table, &name, &ctype, &column, &ord); err != nil {
			p.fail(rs, CategoryConstraints, err)
			return
		}
		key := table + "\x00" + name
		c, ok := byKey[key]
		if !ok {
			c = &ConstraintRow{Schema: p.schema, Table: table, Name: name, Type: ctype}
			byKey[key] = c
			order = append(order, key)
		}
		c.Columns = append(c.Columns, column)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryConstraints, err)
		return
	}

	sort.Strings(order)
	for _, key := range order {
		rs.Constraints = append(rs.Constraints, *byKey[key])
	}
}

func (p *MySQLProvider) fetchForeignKeys(ctx context.Context, rs *RowSets) {
	query := `
		SELECT table_name, constraint_name, column_name,
		       referenced_table_schema, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND referenced_table_name IS NOT NULL
		ORDER BY table_name, constraint_name, ordinal_position
	`

	rows, err := p.client.GetDB().QueryContext(ctx, query, p.schema)
	if err != nil {
		p.fail(rs, CategoryForeignKeys, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var fk ForeignKeyRow
		if err := rows.Scan(&fk.Table, &fk.Constraint, &fk.Column,
			&fk.TargetSchema, &fk.TargetTable, &fk.TargetColumn); err != nil {
			p.fail(rs, CategoryForeignKeys, err)
			return
		}
		fk.Schema = p.schema
		rs.ForeignKeys = append(rs.ForeignKeys, fk)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryForeignKeys, err)
	}
}

func (p *MySQLProvider) fetchViews(ctx context.Context, rs *RowSets) {
	query := `
		SELECT table_name, view_definition
		FROM information_schema.views
		WHERE table_schema = ?
		ORDER BY table_name
	`

	rows, err := p.client.GetDB().QueryContext(ctx, query, p.schema)
	if err != nil {
		p.fail(rs, CategoryViews, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var v ViewRow
		if err := rows.Scan(&v.Name, &v.Definition); err != nil {
			p.fail(rs, CategoryViews, err)
			return
		}
		v.Schema = p.schema
		rs.Views = append(rs.Views, v)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryViews, err)
	}
}

func (p *MySQLProvider) fetchRoutines(ctx context.Context, rs *RowSets) {
	args, err := p.fetchRoutineArgs(ctx)
	if err != nil {
		p.fail(rs, CategoryRoutines, err)
		return
	}

	query := `
		SELECT routine_name, specific_name, routine_type,
		       COALESCE(dtd_identifier, ''), routine_definition
		FROM information_schema.routines
		WHERE routine_schema = ?
		ORDER BY routine_name
	`

	rows, err := p.client.GetDB().QueryContext(ctx, query, p.schema)
	if err != nil {
		p.fail(rs, CategoryRoutines, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var r RoutineRow
		var specific, routineType string
		if err := rows.Scan(&r.Name, &specific, &routineType, &r.ReturnType, &r.Definition); err != nil {
			p.fail(rs, CategoryRoutines, err)
			return
		}
		r.Schema = p.schema
		r.Language = "SQL"
		r.Arguments = args[specific]
		if routineType == "PROCEDURE" {
			r.ReturnType = ""
		}
		rs.Routines = append(rs.Routines, r)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryRoutines, err)
	}
}

func (p *MySQLProvider) fetchRoutineArgs(ctx context.Context) (map[string]string, error) {
	query := `
		SELECT specific_name,
		       GROUP_CONCAT(CONCAT(parameter_name, ' ', dtd_identifier)
		                    ORDER BY ordinal_position SEPARATOR ', ')
		FROM information_schema.parameters
		WHERE specific_schema = ? AND parameter_name IS NOT NULL
		GROUP BY specific_name
	`

	rows, err := p.client.GetDB().QueryContext(ctx, query, p.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	args := map[string]string{}
	for rows.Next() {
		var name, list string
		if err := rows.Scan(&name, &list); err != nil {
			return nil, err
		}
		args[name] = list
	}
	return args, rows.Err()
}

func (p *MySQLProvider) fetchTriggers(ctx context.Context, rs *RowSets) {
	query := `
		SELECT trigger_name, event_object_schema, event_object_table,
		       action_timing, event_manipulation, action_statement
		FROM information_schema.triggers
		WHERE trigger_schema = ?
		ORDER BY trigger_name, event_manipulation
	`

	rows, err := p.client.GetDB().QueryContext(ctx, query, p.schema)
	if err != nil {
		p.fail(rs, CategoryTriggers, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var t TriggerRow
		if err := rows.Scan(&t.Name, &t.TableSchema, &t.TableName,
			&t.Timing, &t.Event, &t.Statement); err != nil {
			p.fail(rs, CategoryTriggers, err)
			return
		}
		t.Schema = p.schema
		rs.Triggers = append(rs.Triggers, t)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryTriggers, err)
	}
}

func (p *MySQLProvider) fetchSamples(ctx context.Context, rs *RowSets, opts FetchOptions) {
	limit := opts.SampleLimit
	if limit <= 0 {
		return
	}

	type target struct{ schema, name string }
	var targets []target
	for _, t := range rs.Tables {
		targets = append(targets, target{t.Schema, t.Name})
	}
	for _, v := range rs.Views {
		targets = append(targets, target{v.Schema, v.Name})
	}

	for _, tgt := range targets {
		set, err := sampleSQL(ctx, p.client.GetDB(), tgt.schema, tgt.name,
			"`"+tgt.schema+"`.`"+tgt.name+"`", limit)
		if err != nil {
			p.logger.Warn("sampling failed",
				"object", tgt.schema+"."+tgt.name, "error", err)
			set = &SampleSet{Schema: tgt.schema, Table: tgt.name, Unavailable: true}
		}
		rs.Samples = append(rs.Samples, *set)
	}
}
