//go:build integration

package pgxray

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// End-to-end audit of a real SQLite database file.
// Run with: go test -tags integration ./...
func TestAuditSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "shop.db")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE customers (
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			created_at TEXT
		)`,
		`CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			total REAL,
			updated_at TEXT
		)`,
		`CREATE INDEX orders_customer_idx ON orders(customer_id)`,
		`CREATE VIEW recent_orders AS SELECT id, customer_id FROM orders`,
		`CREATE TRIGGER orders_touch AFTER UPDATE ON orders
			BEGIN UPDATE orders SET updated_at = 'now' WHERE id = NEW.id; END`,
		`INSERT INTO customers (id, email, created_at) VALUES
			(1, 'a@example.com', '2026-01-01'), (2, 'b@example.com', NULL)`,
		`INSERT INTO orders (id, customer_id, total) VALUES
			(1, 1, 9.99), (2, 1, 100), (3, 2, 0.5)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	out := &OutputOptions{
		ReportPath: filepath.Join(dir, "audit_report.md"),
		DOTPath:    filepath.Join(dir, "er_diagram.dot"),
		ImagePath:  filepath.Join(dir, "er_diagram.png"),
	}
	err = Audit(context.Background(), "sqlite://"+dbPath, &Options{SampleLimit: 2}, out)
	require.NoError(t, err)

	report, err := os.ReadFile(out.ReportPath)
	require.NoError(t, err)
	text := string(report)

	assert.Contains(t, text, "# Audit Report:")
	assert.Contains(t, text, "### main.customers")
	assert.Contains(t, text, "### main.orders")
	assert.Contains(t, text, "main.recent_orders")
	assert.Contains(t, text, "ON main.orders")
	assert.Contains(t, text, "main.customers.id") // FK reference column
	assert.Contains(t, text, "NULL")              // sampled NULL renders the sentinel

	dot, err := os.ReadFile(out.DOTPath)
	require.NoError(t, err)
	assert.Contains(t, string(dot), `"main.orders" -> "main.customers"`)
	assert.Contains(t, string(dot), `label="1:N"`)
}

func TestAuditSQLiteExcludesTables(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "shop.db")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE keep (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE skip (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out := &OutputOptions{
		ReportPath: filepath.Join(dir, "audit_report.md"),
		DOTPath:    filepath.Join(dir, "er_diagram.dot"),
		ImagePath:  filepath.Join(dir, "er_diagram.png"),
	}
	err = Audit(context.Background(), "sqlite://"+dbPath,
		&Options{ExcludeTables: []string{"skip"}}, out)
	require.NoError(t, err)

	report, err := os.ReadFile(out.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), "### main.keep")
	assert.NotContains(t, string(report), "### main.skip")
}
