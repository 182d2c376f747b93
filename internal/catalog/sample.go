package catalog

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// sampleSQL fetches up to limit rows from one relation over database/sql.
// ident must already be quoted for the target engine. MapScan keeps the
// column set open-ended; the select-list order is preserved separately so
// rendering stays deterministic.
func sampleSQL(ctx context.Context, db *sqlx.DB, schema, name, ident string, limit int) (*SampleSet, error) {
	rows, err := db.QueryxContext(ctx, "SELECT * FROM "+ident+" LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	set := &SampleSet{Schema: schema, Table: name, Columns: cols}
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		set.Rows = append(set.Rows, row)
	}
	return set, rows.Err()
}
