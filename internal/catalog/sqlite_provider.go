package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// sqliteSchema is the implicit schema name for every object in a single
// SQLite database file.
const sqliteSchema = "main"

// SQLiteProvider reads catalog metadata from a SQLite file through
// sqlite_master and the PRAGMA interface. SQLite has no stored routines and
// no materialized views; those categories are empty without being failures.
type SQLiteProvider struct {
	client *SQLiteClient
	logger *slog.Logger
}

// NewSQLiteProvider creates a catalog provider for SQLite.
func NewSQLiteProvider(client *SQLiteClient, logger *slog.Logger) *SQLiteProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteProvider{client: client, logger: logger}
}

// Fetch reads all metadata categories, recording per-category failures.
func (p *SQLiteProvider) Fetch(ctx context.Context, opts FetchOptions) (*RowSets, error) {
	rs := &RowSets{}

	p.fetchInfo(ctx, rs)
	p.fetchTables(ctx, rs, opts)
	for _, t := range rs.Tables {
		p.fetchTableDetails(ctx, rs, t.Name)
	}
	p.fetchViews(ctx, rs)
	p.fetchTriggers(ctx, rs)
	p.fetchSamples(ctx, rs, opts)

	return rs, nil
}

func (p *SQLiteProvider) fail(rs *RowSets, cat Category, err error) {
	p.logger.Warn("catalog query failed", "category", string(cat), "error", err)
	rs.Failures = append(rs.Failures, CategoryError{Category: cat, Err: err})
}

func (p *SQLiteProvider) fetchInfo(ctx context.Context, rs *RowSets) {
	db := p.client.GetDB()

	if err := db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&rs.Info.ProductVersion); err != nil {
		p.fail(rs, CategoryInfo, err)
		return
	}
	rs.Info.DatabaseName = filepath.Base(p.client.Path())

	var pageCount, pageSize int64
	if err := db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		p.fail(rs, CategoryInfo, err)
		return
	}
	if err := db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		p.fail(rs, CategoryInfo, err)
		return
	}
	rs.Info.TotalSize = prettySize(pageCount * pageSize)
}

func (p *SQLiteProvider) fetchTables(ctx context.Context, rs *RowSets, opts FetchOptions) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := p.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		p.fail(rs, CategoryTables, err)
		return
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			p.fail(rs, CategoryTables, err)
			return
		}
		if opts.wantsTable(name) {
			names = append(names, name)
		}
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryTables, err)
		return
	}

	for _, name := range names {
		t := TableRow{Schema: sqliteSchema, Name: name, RowEstimate: -1}
		// SQLite keeps no row-count statistics; count directly and treat a
		// failure as an unknown estimate, not a lost table.
		var count int64
		err := p.client.GetDB().QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+quoteSQLite(name)).Scan(&count)
		if err != nil {
			p.logger.Warn("row count failed", "table", name, "error", err)
		} else {
			t.RowEstimate = count
		}
		rs.Tables = append(rs.Tables, t)
	}
}

// fetchTableDetails reads columns, the primary key, foreign keys, and indexes
// for one table through the PRAGMA interface.
func (p *SQLiteProvider) fetchTableDetails(ctx context.Context, rs *RowSets, table string) {
	p.fetchColumns(ctx, rs, table)
	p.fetchForeignKeys(ctx, rs, table)
	p.fetchIndexes(ctx, rs, table)
}

func (p *SQLiteProvider) fetchColumns(ctx context.Context, rs *RowSets, table string) {
	rows, err := p.client.GetDB().QueryContext(ctx,
		fmt.Sprintf("PRAGMA table_info(%s)", quoteSQLite(table)))
	if err != nil {
		p.fail(rs, CategoryColumns, err)
		return
	}
	defer rows.Close()

	var pkCols []string
	for rows.Next() {
		var cid, notNull, pk int
		var name string
		var colType string
		var dflt *string
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			p.fail(rs, CategoryColumns, err)
			return
		}
		rs.Columns = append(rs.Columns, ColumnRow{
			Schema:   sqliteSchema,
			Table:    table,
			Name:     name,
			DataType: colType,
			Nullable: notNull == 0,
			Ordinal:  cid + 1,
			Default:  dflt,
		})
		if pk > 0 {
			pkCols = append(pkCols, name)
		}
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryColumns, err)
		return
	}

	if len(pkCols) > 0 {
		rs.Constraints = append(rs.Constraints, ConstraintRow{
			Schema:  sqliteSchema,
			Table:   table,
			Name:    table + "_pkey",
			Type:    "PRIMARY KEY",
			Columns: pkCols,
		})
	}
}

func (p *SQLiteProvider) fetchForeignKeys(ctx context.Context, rs *RowSets, table string) {
	rows, err := p.client.GetDB().QueryContext(ctx,
		fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteSQLite(table)))
	if err != nil {
		p.fail(rs, CategoryForeignKeys, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var id, seq int
		var target, from string
		var to *string
		var onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &target, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			p.fail(rs, CategoryForeignKeys, err)
			return
		}
		fk := ForeignKeyRow{
			Schema: sqliteSchema,
			Table:  table,
			// SQLite does not name FK constraints; synthesize a stable one.
			Constraint:   fmt.Sprintf("%s_fk_%d", table, id),
			Column:       from,
			TargetSchema: sqliteSchema,
			TargetTable:  target,
		}
		if to != nil {
			fk.TargetColumn = *to
		}
		rs.ForeignKeys = append(rs.ForeignKeys, fk)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryForeignKeys, err)
	}
}

func (p *SQLiteProvider) fetchIndexes(ctx context.Context, rs *RowSets, table string) {
	rows, err := p.client.GetDB().QueryContext(ctx,
		fmt.Sprintf("PRAGMA index_list(%s)", quoteSQLite(table)))
	if err != nil {
		p.fail(rs, CategoryIndexes, err)
		return
	}

	type indexMeta struct {
		name   string
		unique bool
		origin string
	}
	var metas []indexMeta
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			p.fail(rs, CategoryIndexes, err)
			return
		}
		if origin == "pk" {
			continue
		}
		metas = append(metas, indexMeta{name: name, unique: unique == 1, origin: origin})
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		p.fail(rs, CategoryIndexes, err)
		return
	}

	for _, meta := range metas {
		cols, err := p.indexColumns(ctx, meta.name)
		if err != nil {
			p.fail(rs, CategoryIndexes, err)
			return
		}
		rs.Indexes = append(rs.Indexes, IndexRow{
			Schema:  sqliteSchema,
			Table:   table,
			Name:    meta.name,
			Columns: cols,
			Unique:  meta.unique,
		})
		// UNIQUE table constraints surface only as origin-'u' indexes.
		if meta.origin == "u" {
			rs.Constraints = append(rs.Constraints, ConstraintRow{
				Schema:  sqliteSchema,
				Table:   table,
				Name:    meta.name,
				Type:    "UNIQUE",
				Columns: cols,
			})
		}
	}
}

func (p *SQLiteProvider) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := p.client.GetDB().QueryContext(ctx,
		fmt.Sprintf("PRAGMA index_info(%s)", quoteSQLite(index)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name *string
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		if name != nil {
			cols = append(cols, *name)
		}
	}
	return cols, rows.Err()
}

func (p *SQLiteProvider) fetchViews(ctx context.Context, rs *RowSets) {
	query := `
		SELECT name, COALESCE(sql, '')
		FROM sqlite_master
		WHERE type = 'view'
		ORDER BY name
	`

	rows, err := p.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		p.fail(rs, CategoryViews, err)
		return
	}
	defer rows.Close()

	var views []ViewRow
	for rows.Next() {
		var v ViewRow
		if err := rows.Scan(&v.Name, &v.Definition); err != nil {
			p.fail(rs, CategoryViews, err)
			return
		}
		v.Schema = sqliteSchema
		v.RowEstimate = -1
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryViews, err)
		return
	}

	rs.Views = append(rs.Views, views...)
	for _, v := range views {
		p.fetchColumns(ctx, rs, v.Name)
	}
}

func (p *SQLiteProvider) fetchTriggers(ctx context.Context, rs *RowSets) {
	query := `
		SELECT name, tbl_name, COALESCE(sql, '')
		FROM sqlite_master
		WHERE type = 'trigger'
		ORDER BY name
	`

	rows, err := p.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		p.fail(rs, CategoryTriggers, err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var t TriggerRow
		if err := rows.Scan(&t.Name, &t.TableName, &t.Statement); err != nil {
			p.fail(rs, CategoryTriggers, err)
			return
		}
		t.Schema = sqliteSchema
		t.TableSchema = sqliteSchema
		t.Timing, t.Event = parseTriggerClause(t.Statement)
		rs.Triggers = append(rs.Triggers, t)
	}
	if err := rows.Err(); err != nil {
		p.fail(rs, CategoryTriggers, err)
	}
}

func (p *SQLiteProvider) fetchSamples(ctx context.Context, rs *RowSets, opts FetchOptions) {
	limit := opts.SampleLimit
	if limit <= 0 {
		return
	}

	var targets []string
	for _, t := range rs.Tables {
		targets = append(targets, t.Name)
	}
	for _, v := range rs.Views {
		targets = append(targets, v.Name)
	}

	for _, name := range targets {
		set, err := sampleSQL(ctx, p.client.GetDB(), sqliteSchema, name,
			quoteSQLite(name), limit)
		if err != nil {
			p.logger.Warn("sampling failed", "object", name, "error", err)
			set = &SampleSet{Schema: sqliteSchema, Table: name, Unavailable: true}
		}
		rs.Samples = append(rs.Samples, *set)
	}
}

func quoteSQLite(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// parseTriggerClause pulls the timing and event keywords out of a CREATE
// TRIGGER statement. SQLite stores only the raw SQL, so this is best-effort.
func parseTriggerClause(sql string) (timing, event string) {
	upper := strings.ToUpper(sql)
	switch {
	case strings.Contains(upper, "INSTEAD OF"):
		timing = "INSTEAD OF"
	case strings.Contains(upper, "BEFORE"):
		timing = "BEFORE"
	case strings.Contains(upper, "AFTER"):
		timing = "AFTER"
	}
	for _, ev := range []string{"INSERT", "UPDATE", "DELETE"} {
		if strings.Contains(upper, ev) {
			event = ev
			break
		}
	}
	return timing, event
}
