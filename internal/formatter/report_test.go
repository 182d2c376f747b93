package formatter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t6891/pgxray/internal/graph"
	"github.com/t6891/pgxray/internal/schema"
)

func reportSnapshot() *schema.Snapshot {
	dflt := "now()"
	return &schema.Snapshot{
		ProductVersion: "16.2",
		DatabaseName:   "shop",
		TotalSize:      "21 MB",
		Tables: []schema.Table{
			{
				Schema: "public", Name: "customers", RowEstimate: 10, Size: "16 kB",
				Columns: []schema.Column{
					{Name: "id", Type: "integer", Ordinal: 1},
					{Name: "created_at", Type: "timestamptz", Nullable: true, Ordinal: 2, Default: &dflt},
				},
				Constraints: []schema.Constraint{
					{Name: "customers_pkey", Type: "PRIMARY KEY", Columns: []string{"id"}},
				},
				Indexes: []schema.Index{
					{Name: "customers_email_idx", Columns: []string{"email"}, Unique: true},
				},
				Samples: schema.SampleData{
					Columns: []string{"id", "created_at"},
					Rows:    [][]any{{1, nil}},
				},
			},
			{
				Schema: "public", Name: "orders", RowEstimate: 100, Size: "64 kB",
				Columns: []schema.Column{
					{Name: "id", Type: "integer", Ordinal: 1},
					{Name: "customer_id", Type: "integer", Ordinal: 2},
				},
				Constraints: []schema.Constraint{
					{Name: "orders_pkey", Type: "PRIMARY KEY", Columns: []string{"id"}},
				},
				ForeignKeys: []schema.ForeignKey{
					{Name: "orders_customer_fk", Columns: []string{"customer_id"},
						TargetID: "public.customers", TargetColumns: []string{"id"}},
				},
				Samples: schema.SampleData{Unavailable: true},
			},
		},
		Views: []schema.View{
			{
				Schema: "public", Name: "recent_orders", Definition: "SELECT * FROM orders",
				Description:  "orders from the last week",
				Columns:      []schema.Column{{Name: "id", Type: "integer", Ordinal: 1}},
				Dependencies: []string{"public.orders"},
				RowEstimate:  -1,
			},
		},
		Routines: []schema.Routine{
			{Schema: "public", Name: "touch", Arguments: "", ReturnType: "trigger",
				Language: "plpgsql", Definition: "CREATE FUNCTION touch() ..."},
			{Schema: "public", Name: "opaque", ReturnType: "integer", Language: "c"},
		},
		Triggers: []schema.Trigger{
			{Schema: "public", Name: "orders_touch", TableID: "public.orders",
				Timing: "BEFORE", Event: "UPDATE", Statement: "EXECUTE FUNCTION touch()"},
		},
	}
}

func renderReport(t *testing.T, snap *schema.Snapshot, opts ReportOptions) string {
	t.Helper()
	g := graph.Build(snap, nil)
	var buf bytes.Buffer
	require.NoError(t, NewReportFormatter(&buf).Format(snap, g, opts))
	return buf.String()
}

func TestReportSections(t *testing.T) {
	out := renderReport(t, reportSnapshot(), ReportOptions{
		DOTPath:        "er_diagram.dot",
		ImagePath:      "er_diagram.png",
		ImageGenerated: true,
	})

	assert.Contains(t, out, "# Audit Report: `shop`")
	assert.Contains(t, out, "- Server Version: **16.2**")
	assert.Contains(t, out, "- Tables: **2**")

	// Fixed section order: tables, views, diagram, functions, triggers.
	sections := []string{
		"## General Info",
		"## Tables & Sample Data",
		"## Views",
		"## ER Diagram",
		"## Functions",
		"## Triggers",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(out, s)
		require.GreaterOrEqual(t, idx, 0, "missing section %q", s)
		assert.Greater(t, idx, last, "section %q out of order", s)
		last = idx
	}

	// Every object appears exactly once.
	assert.Equal(t, 1, strings.Count(out, "### public.customers\n"))
	assert.Equal(t, 1, strings.Count(out, "### public.orders\n"))
	assert.Equal(t, 1, strings.Count(out, "### public.recent_orders (View)"))
	assert.Equal(t, 1, strings.Count(out, "### public.orders_touch ON public.orders"))
}

func TestReportColumnsAndKeys(t *testing.T) {
	out := renderReport(t, reportSnapshot(), ReportOptions{})

	assert.Contains(t, out, "| id | integer | no |  | PK |  |")
	assert.Contains(t, out, "| customer_id | integer | no |  | FK | public.customers.id |")
	assert.Contains(t, out, "- customers_email_idx on (email), unique")
}

func TestReportSampleMarkers(t *testing.T) {
	out := renderReport(t, reportSnapshot(), ReportOptions{})

	// customers has a sample table; the failed orders sampling renders the
	// explicit marker; the view without samples says so too.
	assert.Contains(t, out, "| 1 | NULL |")
	assert.Contains(t, out, "No data available.")
	assert.Contains(t, out, "No data sample.")
}

func TestReportRoutineSource(t *testing.T) {
	out := renderReport(t, reportSnapshot(), ReportOptions{})

	assert.Contains(t, out, "### public.touch() -> trigger")
	assert.Contains(t, out, "CREATE FUNCTION touch() ...")
	assert.Contains(t, out, "### public.opaque() -> integer")
	assert.Contains(t, out, "Source not available.")
}

func TestReportDiagramFailure(t *testing.T) {
	out := renderReport(t, reportSnapshot(), ReportOptions{
		DOTPath:        "er_diagram.dot",
		ImagePath:      "er_diagram.png",
		ImageGenerated: false,
	})

	assert.Contains(t, out, "- DOT: `er_diagram.dot`")
	assert.Contains(t, out, "- PNG: not generated (rendering tool unavailable)")
	assert.NotContains(t, out, "- PNG: `er_diagram.png`")
}

func TestReportMissingCategories(t *testing.T) {
	snap := reportSnapshot()
	snap.MissingCategories = []string{"triggers"}
	snap.Triggers = nil

	out := renderReport(t, snap, ReportOptions{})
	assert.Contains(t, out, "> Warning: metadata for triggers is not available.")
	assert.Contains(t, out, "No triggers found.")
}

func TestReportUnresolvedReferenceWarning(t *testing.T) {
	snap := reportSnapshot()
	snap.Tables[1].ForeignKeys = append(snap.Tables[1].ForeignKeys,
		schema.ForeignKey{Name: "orders_archive_fk", Columns: []string{"archive_id"},
			TargetID: "public.archive_orders"})

	out := renderReport(t, snap, ReportOptions{})
	assert.Contains(t, out,
		"> Warning: unresolved reference from `public.orders` to `public.archive_orders` was dropped.")
	// The referencing table is still reported in full.
	assert.Contains(t, out, "### public.orders\n")
}

func TestReportDeterministicWithoutTimestamp(t *testing.T) {
	first := renderReport(t, reportSnapshot(), ReportOptions{})
	second := renderReport(t, reportSnapshot(), ReportOptions{})
	assert.Equal(t, first, second)
	assert.NotContains(t, first, "*Generated:")

	stamped := renderReport(t, reportSnapshot(), ReportOptions{
		GeneratedAt: time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
	})
	assert.Contains(t, stamped, "*Generated: 2026-08-23 10:00:00*")
}
