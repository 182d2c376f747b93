package catalog

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// PostgresProvider reads catalog metadata through a PostgresClient.
// User schemas only; pg_catalog and information_schema are skipped.
type PostgresProvider struct {
	client *PostgresClient
	logger *slog.Logger
}

// NewPostgresProvider creates a catalog provider for PostgreSQL.
func NewPostgresProvider(client *PostgresClient, logger *slog.Logger) *PostgresProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProvider{client: client, logger: logger}
}

// Fetch reads all metadata categories. Category failures are recorded on the
// returned row sets; only the caller's context or connection state can make
// Fetch itself fail, and connection loss surfaces as all categories failing.
func (p *PostgresProvider) Fetch(ctx context.Context, opts FetchOptions) (*RowSets, error) {
	rs := &RowSets{}

	p.fetchInfo(ctx, rs)
	p.fetchTables(ctx, rs, opts)
	p.fetchColumns(ctx, rs)
	p.fetchViewColumns(ctx, rs)
	p.fetchIndexes(ctx, rs)
	p.fetchConstraints(ctx, rs)
	p.fetchForeignKeys(ctx, rs)
	p.fetchViews(ctx, rs)
	p.fetchViewDependencies(ctx, rs)
	p.fetchRoutines(ctx, rs)
	p.fetchTriggers(ctx, rs)
	p.fetchSamples(ctx, rs, opts)

	return rs, nil
}

func (p *PostgresProvider) fail(rs *RowSets, cat Category, err error) {
	p.logger.Warn("catalog query failed", "category", string(cat), "error", err)
	rs.Failures = append(rs.Failures, CategoryError{Category: cat, Err: err})
}

func (p *PostgresProvider) fetchInfo(ctx context.Context, rs *RowSets) {
	query := `
		SELECT current_setting('server_version'),
		       current_database(),
		       pg_size_pretty(pg_database_size(current_database()))
	`
	err := p.client.QueryRow(ctx, query).Scan(
		&rs.Info.ProductVersion, &rs.Info.DatabaseName, &rs.Info.TotalSize)
	if err != nil {
		p.fail(rs, CategoryInfo, err)
	}
}

func (p *PostgresProvider) fetchTables(ctx context.Context, rs *RowSets, opts FetchOptions) {
	query := `
		SELECT t.schemaname, t.tablename,
		       c.reltuples::bigint,
		       pg_size_pretty(pg_total_relation_size(c.oid))
		FROM pg_catalog.pg_tables t
		JOIN pg_catalog.pg_namespace n ON n.nspname = t.schemaname
		JOIN pg_catalog.pg_class c ON c.relname = t.tablename AND c.relnamespace = n.oid
		WHERE t.schemaname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY t.schemaname, t.tablename
	`

	rows, err := p.client.Query(ctx, query)
	if err != nil {
		p.fail(rs, CategoryTables, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var t TableRow
		if err := rows.Scan(&t.Schema, &t.Name, &t.RowEstimate, &t.Size); err != nil {
			p.fail(rs, CategoryTables, err)
			return
		}
		if opts.wantsTable(t.Name) {
			rs.Tables = append(rs.Tables, t)
		}
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryTables, err)
	}
}

func (p *PostgresProvider) fetchColumns(ctx context.Context, rs *RowSets) {
	query := `
		SELECT table_schema, table_name, column_name, data_type,
		       is_nullable, ordinal_position, column_default
		FROM information_schema.columns
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name, ordinal_position
	`

	rows, err := p.client.Query(ctx, query)
	if err != nil {
		p.fail(rs, CategoryColumns, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var c ColumnRow
		var nullable string
		if err := rows.Scan(&c.Schema, &c.Table, &c.Name, &c.DataType,
			&nullable, &c.Ordinal, &c.Default); err != nil {
			p.fail(rs, CategoryColumns, err)
			return
		}
		c.Nullable = nullable == "YES"
		rs.Columns = append(rs.Columns, c)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryColumns, err)
	}
}

// fetchViewColumns covers materialized views, which information_schema.columns
// does not report. Plain view columns arrive from fetchColumns.
func (p *PostgresProvider) fetchViewColumns(ctx context.Context, rs *RowSets) {
	query := `
		SELECT n.nspname, c.relname, a.attname,
		       pg_catalog.format_type(a.atttypid, a.atttypmod),
		       NOT a.attnotnull, a.attnum::int
		FROM pg_catalog.pg_attribute a
		JOIN pg_catalog.pg_class c ON a.attrelid = c.oid
		JOIN pg_catalog.pg_namespace n ON c.relnamespace = n.oid
		WHERE a.attnum > 0
		  AND NOT a.attisdropped
		  AND c.relkind = 'm'
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY n.nspname, c.relname, a.attnum
	`

	rows, err := p.client.Query(ctx, query)
	if err != nil {
		p.fail(rs, CategoryColumns, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var c ColumnRow
		if err := rows.Scan(&c.Schema, &c.Table, &c.Name, &c.DataType,
			&c.Nullable, &c.Ordinal); err != nil {
			p.fail(rs, CategoryColumns, err)
			return
		}
		rs.Columns = append(rs.Columns, c)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryColumns, err)
	}
}

func (p *PostgresProvider) fetchIndexes(ctx context.Context, rs *RowSets) {
	query := `
		SELECT n.nspname, t.relname, i.relname,
		       ix.indisunique,
		       array_agg(a.attname ORDER BY array_position(ix.indkey, a.attnum))
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE t.relkind IN ('r', 'm')
		  AND NOT ix.indisprimary
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		GROUP BY n.nspname, t.relname, i.relname, ix.indisunique
		ORDER BY n.nspname, t.relname, i.relname
	`

	rows, err := p.client.Query(ctx, query)
	if err != nil {
		p.fail(rs, CategoryIndexes, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var ix IndexRow
		if err := rows.Scan(&ix.Schema, &ix.Table, &ix.Name, &ix.Unique, &ix.Columns); err != nil {
			p.fail(rs, CategoryIndexes, err)
			return
		}
		rs.Indexes = append(rs.Indexes, ix)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryIndexes, err)
	}
}

func (p *PostgresProvider) fetchConstraints(ctx context.Context, rs *RowSets) {
	query := `
		SELECT n.nspname, rel.relname, con.conname,
		       CASE con.contype
		           WHEN 'p' THEN 'PRIMARY KEY'
		           WHEN 'u' THEN 'UNIQUE'
		           ELSE 'CHECK'
		       END,
		       COALESCE(array_agg(a.attname ORDER BY k.ord)
		                FILTER (WHERE a.attname IS NOT NULL), '{}'),
		       pg_get_constraintdef(con.oid)
		FROM pg_constraint con
		JOIN pg_class rel ON rel.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = rel.relnamespace
		LEFT JOIN LATERAL unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord) ON true
		LEFT JOIN pg_attribute a ON a.attrelid = rel.oid AND a.attnum = k.attnum
		WHERE con.contype IN ('p', 'u', 'c')
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		GROUP BY n.nspname, rel.relname, con.conname, con.contype, con.oid
		ORDER BY n.nspname, rel.relname, con.conname
	`

	rows, err := p.client.Query(ctx, query)
	if err != nil {
		p.fail(rs, CategoryConstraints, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var c ConstraintRow
		if err := rows.Scan(&c.Schema, &c.Table, &c.Name, &c.Type, &c.Columns, &c.Definition); err != nil {
			p.fail(rs, CategoryConstraints, err)
			return
		}
		rs.Constraints = append(rs.Constraints, c)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryConstraints, err)
	}
}

// fetchForeignKeys emits one row per source/target column pair, in key
// position order. conkey and confkey are unnested together so composite
// foreign keys keep their columns pairwise aligned.
func (p *PostgresProvider) fetchForeignKeys(ctx context.Context, rs *RowSets) {
	query := `
		SELECT n.nspname, rel.relname, con.conname,
		       sa.attname,
		       fn.nspname AS foreign_schema,
		       frel.relname AS foreign_table,
		       fa.attname AS foreign_column
		FROM pg_constraint con
		JOIN pg_class rel ON rel.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = rel.relnamespace
		JOIN pg_class frel ON frel.oid = con.confrelid
		JOIN pg_namespace fn ON fn.oid = frel.relnamespace
		JOIN LATERAL unnest(con.conkey, con.confkey)
		     WITH ORDINALITY AS k(attnum, fattnum, ord) ON true
		JOIN pg_attribute sa ON sa.attrelid = con.conrelid AND sa.attnum = k.attnum
		JOIN pg_attribute fa ON fa.attrelid = con.confrelid AND fa.attnum = k.fattnum
		WHERE con.contype = 'f'
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY n.nspname, rel.relname, con.conname, k.ord
	`

	rows, err := p.client.Query(ctx, query)
	if err != nil {
		p.fail(rs, CategoryForeignKeys, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var fk ForeignKeyRow
		if err := rows.Scan(&fk.Schema, &fk.Table, &fk.Constraint,
			&fk.Column, &fk.TargetSchema, &fk.TargetTable, &fk.TargetColumn); err != nil {
			p.fail(rs, CategoryForeignKeys, err)
			return
		}
		rs.ForeignKeys = append(rs.ForeignKeys, fk)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryForeignKeys, err)
	}
}

func (p *PostgresProvider) fetchViews(ctx context.Context, rs *RowSets) {
	query := `
		SELECT n.nspname, c.relname,
		       c.relkind = 'm',
		       pg_get_viewdef(c.oid),
		       obj_description(c.oid, 'pg_class'),
		       c.reltuples::bigint,
		       pg_size_pretty(pg_relation_size(c.oid))
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('v', 'm')
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY n.nspname, c.relname
	`

	rows, err := p.client.Query(ctx, query)
	if err != nil {
		p.fail(rs, CategoryViews, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var v ViewRow
		if err := rows.Scan(&v.Schema, &v.Name, &v.Materialized, &v.Definition,
			&v.Description, &v.RowEstimate, &v.Size); err != nil {
			p.fail(rs, CategoryViews, err)
			return
		}
		rs.Views = append(rs.Views, v)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryViews, err)
	}
}

func (p *PostgresProvider) fetchViewDependencies(ctx context.Context, rs *RowSets) {
	query := `
		SELECT DISTINCT ns.nspname, cl.relname, ref_ns.nspname, ref.relname
		FROM pg_class cl
		JOIN pg_namespace ns ON cl.relnamespace = ns.oid
		JOIN pg_rewrite rw ON rw.ev_class = cl.oid
		JOIN pg_depend dep ON dep.objid = rw.oid AND dep.refobjid <> cl.oid
		JOIN pg_class ref ON ref.oid = dep.refobjid
		JOIN pg_namespace ref_ns ON ref_ns.oid = ref.relnamespace
		WHERE cl.relkind IN ('v', 'm')
		  AND ref.relkind IN ('r', 'v', 'm')
		  AND ns.nspname NOT IN ('pg_catalog', 'information_schema')
		  AND ref_ns.nspname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY 1, 2, 3, 4
	`

	rows, err := p.client.Query(ctx, query)
	if err != nil {
		p.fail(rs, CategoryViewDeps, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var d ViewDependencyRow
		if err := rows.Scan(&d.Schema, &d.View, &d.RefSchema, &d.RefName); err != nil {
			p.fail(rs, CategoryViewDeps, err)
			return
		}
		rs.ViewDependencies = append(rs.ViewDependencies, d)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryViewDeps, err)
	}
}

func (p *PostgresProvider) fetchRoutines(ctx context.Context, rs *RowSets) {
	// prokind filter keeps aggregates and window functions out, where
	// pg_get_functiondef would raise an error.
	query := `
		SELECT n.nspname, p.proname,
		       pg_get_function_arguments(p.oid),
		       pg_get_function_result(p.oid),
		       l.lanname,
		       pg_get_functiondef(p.oid)
		FROM pg_proc p
		JOIN pg_namespace n ON p.pronamespace = n.oid
		JOIN pg_language l ON l.oid = p.prolang
		WHERE p.prokind IN ('f', 'p')
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY n.nspname, p.proname
	`

	rows, err := p.client.Query(ctx, query)
	if err != nil {
		p.fail(rs, CategoryRoutines, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var r RoutineRow
		if err := rows.Scan(&r.Schema, &r.Name, &r.Arguments, &r.ReturnType,
			&r.Language, &r.Definition); err != nil {
			p.fail(rs, CategoryRoutines, err)
			return
		}
		rs.Routines = append(rs.Routines, r)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryRoutines, err)
	}
}

func (p *PostgresProvider) fetchTriggers(ctx context.Context, rs *RowSets) {
	query := `
		SELECT trigger_name, trigger_schema,
		       event_object_schema, event_object_table,
		       action_timing, event_manipulation, action_statement
		FROM information_schema.triggers
		WHERE trigger_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY trigger_schema, trigger_name, event_manipulation
	`

	rows, err := p.client.Query(ctx, query)
	if err != nil {
		p.fail(rs, CategoryTriggers, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var t TriggerRow
		if err := rows.Scan(&t.Name, &t.Schema, &t.TableSchema, &t.TableName,
			&t.Timing, &t.Event, &t.Statement); err != nil {
			p.fail(rs, CategoryTriggers, err)
			return
		}
		rs.Triggers = append(rs.Triggers, t)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryTriggers, err)
	}
}

// fetchSamples pulls up to SampleLimit rows from every table and view already
// present in rs. Failures are per-object: a table the user cannot read gets an
// unavailable sample set and the rest still sample normally.
func (p *PostgresProvider) fetchSamples(ctx context.Context, rs *RowSets, opts FetchOptions) {
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
		set, err := p.sampleOne(ctx, tgt.schema, tgt.name, limit)
		if err != nil {
			p.logger.Warn("sampling failed",
				"object", tgt.schema+"."+tgt.name, "error", err)
			set = &SampleSet{Schema: tgt.schema, Table: tgt.name, Unavailable: true}
		}
		rs.Samples = append(rs.Samples, *set)
	}
}

func (p *PostgresProvider) sampleOne(ctx context.Context, schema, name string, limit int) (*SampleSet, error) {
	ident := pgx.Identifier{schema, name}.Sanitize()
	rows, err := p.client.Query(ctx,
		"SELECT * FROM "+ident+" LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := &SampleSet{Schema: schema, Table: name}
	for _, fd := range rows.FieldDescriptions() {
		set.Columns = append(set.Columns, string(fd.Name))
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(values))
		for i, col := range set.Columns {
			if i < len(values) {
				row[col] = values[i]
			}
		}
		set.Rows = append(set.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return set, nil
}
