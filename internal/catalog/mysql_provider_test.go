package catalog

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockProvider(t *testing.T) (*MySQLProvider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	client := &MySQLClient{db: sqlx.NewDb(db, "sqlmock")}
	return NewMySQLProvider(client, "shop", nil), mock
}

func TestMySQLFetchTables(t *testing.T) {
	p, mock := newMockProvider(t)

	mock.ExpectQuery("FROM information_schema.tables").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "table_rows", "size"}).
			AddRow("customers", 10, 16384).
			AddRow("orders", 100, 65536))

	rs := &RowSets{}
	p.fetchTables(context.Background(), rs, FetchOptions{})

	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, rs.Tables, 2)
	assert.Equal(t, "customers", rs.Tables[0].Name)
	assert.Equal(t, "shop", rs.Tables[0].Schema)
	assert.Equal(t, int64(10), rs.Tables[0].RowEstimate)
	assert.Equal(t, "16 kB", rs.Tables[0].Size)
	assert.Empty(t, rs.Failures)
}

func TestMySQLFetchTablesAppliesFilter(t *testing.T) {
	p, mock := newMockProvider(t)

	mock.ExpectQuery("FROM information_schema.tables").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "table_rows", "size"}).
			AddRow("customers", 10, 0).
			AddRow("orders", 100, 0))

	rs := &RowSets{}
	p.fetchTables(context.Background(), rs, FetchOptions{Tables: []string{"orders"}})

	require.Len(t, rs.Tables, 1)
	assert.Equal(t, "orders", rs.Tables[0].Name)
}

func TestMySQLCategoryFailureIsRecorded(t *testing.T) {
	p, mock := newMockProvider(t)

	mock.ExpectQuery("FROM information_schema.triggers").
		WithArgs("shop").
		WillReturnError(assert.AnError)

	rs := &RowSets{}
	p.fetchTriggers(context.Background(), rs)

	assert.Empty(t, rs.Triggers)
	require.Len(t, rs.Failures, 1)
	assert.Equal(t, CategoryTriggers, rs.Failures[0].Category)
	assert.ErrorIs(t, rs.Failures[0].Unwrap(), assert.AnError)
}

func TestMySQLFetchForeignKeysFoldsNothing(t *testing.T) {
	p, mock := newMockProvider(t)

	mock.ExpectQuery("referenced_table_name IS NOT NULL").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{
			"table_name", "constraint_name", "column_name",
			"referenced_table_schema", "referenced_table_name", "referenced_column_name",
		}).AddRow("orders", "orders_ibfk_1", "customer_id", "shop", "customers", "id"))

	rs := &RowSets{}
	p.fetchForeignKeys(context.Background(), rs)

	require.Len(t, rs.ForeignKeys, 1)
	fk := rs.ForeignKeys[0]
	assert.Equal(t, "orders", fk.Table)
	assert.Equal(t, "customers", fk.TargetTable)
	assert.Equal(t, "shop", fk.TargetSchema)
}

func TestMySQLFetchIndexesGroupsColumns(t *testing.T) {
	p, mock := newMockProvider(t)

	mock.ExpectQuery("FROM information_schema.statistics").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{
			"table_name", "index_name", "non_unique", "column_name", "seq_in_index",
		}).
			AddRow("orders", "orders_cust_date_idx", 1, "customer_id", 1).
			AddRow("orders", "orders_cust_date_idx", 1, "created_at", 2))

	rs := &RowSets{}
	p.fetchIndexes(context.Background(), rs)

	require.Len(t, rs.Indexes, 1)
	assert.Equal(t, []string{"customer_id", "created_at"}, rs.Indexes[0].Columns)
	assert.False(t, rs.Indexes[0].Unique)
}

func TestParseDatabaseName(t *testing.T) {
	tests := []struct {
		name    string
		conn    string
		want    string
		wantErr bool
	}{
		{name: "plain DSN", conn: "user:pass@tcp(localhost:3306)/shop", want: "shop"},
		{name: "DSN with params", conn: "user:pass@tcp(localhost:3306)/shop?parseTime=true", want: "shop"},
		{name: "missing name", conn: "user:pass@tcp(localhost:3306)/", wantErr: true},
		{name: "no slash", conn: "user:pass@tcp(localhost:3306)", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDatabaseName(tt.conn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrettySize(t *testing.T) {
	assert.Equal(t, "0 bytes", prettySize(0))
	assert.Equal(t, "512 bytes", prettySize(512))
	assert.Equal(t, "16 kB", prettySize(16384))
	assert.Equal(t, "2 MB", prettySize(2*1024*1024))
	assert.Equal(t, "", prettySize(-1))
}
