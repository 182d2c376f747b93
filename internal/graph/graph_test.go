package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t6891/pgxray/internal/catalog"
	"github.com/t6891/pgxray/internal/schema"
)

func ordersCustomersSnapshot() *schema.Snapshot {
	return &schema.Snapshot{
		Tables: []schema.Table{
			{
				Schema: "public",
				Name:   "orders",
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
			},
			{
				Schema: "public",
				Name:   "customers",
				Columns: []schema.Column{
					{Name: "id", Type: "integer", Ordinal: 1},
				},
				Constraints: []schema.Constraint{
					{Name: "customers_pkey", Type: "PRIMARY KEY", Columns: []string{"id"}},
				},
			},
		},
	}
}

func TestBuildOrdersCustomers(t *testing.T) {
	g := Build(ordersCustomersSnapshot(), nil)

	require.Len(t, g.Nodes, 2)
	// Sorted by identifier.
	assert.Equal(t, "public.customers", g.Nodes[0].ID)
	assert.Equal(t, "public.orders", g.Nodes[1].ID)

	require.Len(t, g.Edges, 1)
	edge := g.Edges[0]
	assert.Equal(t, "public.orders", edge.Source)
	assert.Equal(t, "public.customers", edge.Target)
	assert.Equal(t, CardinalityManyToOne, edge.Cardinality)
	assert.Equal(t, "orders_customer_fk", edge.Constraint)
	assert.Empty(t, g.Diagnostics)
}

func TestBuildOneToOneWhenSourceColumnsUnique(t *testing.T) {
	snap := ordersCustomersSnapshot()
	snap.Tables[0].Constraints = append(snap.Tables[0].Constraints,
		schema.Constraint{Name: "orders_customer_uq", Type: "UNIQUE", Columns: []string{"customer_id"}})

	g := Build(snap, nil)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, CardinalityOneToOne, g.Edges[0].Cardinality)
}

func TestBuildOneToOneViaUniqueIndex(t *testing.T) {
	snap := ordersCustomersSnapshot()
	snap.Tables[0].Indexes = []schema.Index{
		{Name: "orders_customer_idx", Columns: []string{"customer_id"}, Unique: true},
	}

	g := Build(snap, nil)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, CardinalityOneToOne, g.Edges[0].Cardinality)
}

func TestBuildCompositeForeignKeyOneToOne(t *testing.T) {
	snap := &schema.Snapshot{
		Tables: []schema.Table{
			{
				Schema: "public", Name: "child",
				Constraints: []schema.Constraint{
					{Name: "child_pkey", Type: "PRIMARY KEY", Columns: []string{"a", "b"}},
				},
				ForeignKeys: []schema.ForeignKey{
					{Name: "child_parent_fk", Columns: []string{"a", "b"},
						TargetID: "public.parent", TargetColumns: []string{"x", "y"}},
				},
			},
			{Schema: "public", Name: "parent"},
		},
	}

	g := Build(snap, nil)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, CardinalityOneToOne, g.Edges[0].Cardinality)
}

// A composite FK arrives from the catalog as one row per column pair. The
// aggregated key must keep those pairs aligned, and a PK covering the pair
// set must make the edge one-to-one.
func TestBuildCompositeForeignKeyFromCatalogRows(t *testing.T) {
	rows := &catalog.RowSets{
		Tables: []catalog.TableRow{
			{Schema: "public", Name: "child"},
			{Schema: "public", Name: "parent"},
		},
		Constraints: []catalog.ConstraintRow{
			{Schema: "public", Table: "child", Name: "child_pkey",
				Type: "PRIMARY KEY", Columns: []string{"a", "b"}},
		},
		ForeignKeys: []catalog.ForeignKeyRow{
			{Schema: "public", Table: "child", Constraint: "child_parent_fk",
				Column: "a", TargetSchema: "public", TargetTable: "parent", TargetColumn: "x"},
			{Schema: "public", Table: "child", Constraint: "child_parent_fk",
				Column: "b", TargetSchema: "public", TargetTable: "parent", TargetColumn: "y"},
		},
	}

	snap := schema.Aggregate(rows, schema.Config{})
	require.Len(t, snap.Tables, 2)
	child := snap.Tables[0]
	require.Len(t, child.ForeignKeys, 1)
	assert.Equal(t, []string{"a", "b"}, child.ForeignKeys[0].Columns)
	assert.Equal(t, []string{"x", "y"}, child.ForeignKeys[0].TargetColumns)

	g := Build(snap, nil)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, CardinalityOneToOne, g.Edges[0].Cardinality)
	assert.Empty(t, g.Diagnostics)
}

func TestBuildCompositeKeyCardinality(t *testing.T) {
	snap := &schema.Snapshot{
		Tables: []schema.Table{
			{
				Schema: "public", Name: "child",
				Constraints: []schema.Constraint{
					// Unique over a superset of the FK columns does not
					// make the edge one-to-one.
					{Name: "uq", Type: "UNIQUE", Columns: []string{"a", "b"}},
				},
				ForeignKeys: []schema.ForeignKey{
					{Name: "fk", Columns: []string{"a"}, TargetID: "public.parent"},
				},
			},
			{Schema: "public", Name: "parent"},
		},
	}

	g := Build(snap, nil)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, CardinalityManyToOne, g.Edges[0].Cardinality)
}

func TestBuildDropsUnresolvedForeignKey(t *testing.T) {
	snap := ordersCustomersSnapshot()
	snap.Tables[0].ForeignKeys = append(snap.Tables[0].ForeignKeys,
		schema.ForeignKey{Name: "orders_archive_fk", Columns: []string{"archive_id"},
			TargetID: "public.archive_orders"})

	g := Build(snap, nil)

	// The resolved edge survives; the dangling one is dropped with a
	// diagnostic and the referencing table still has its node.
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "public.customers", g.Edges[0].Target)
	require.Len(t, g.Diagnostics, 1)
	assert.Equal(t, "public.archive_orders", g.Diagnostics[0].Target)
	assert.Equal(t, "orders_archive_fk", g.Diagnostics[0].Constraint)

	_, ok := g.Node("public.orders")
	assert.True(t, ok)
	_, ok = g.Node("public.archive_orders")
	assert.False(t, ok)
}

func TestBuildViewNodesAndDependencies(t *testing.T) {
	snap := ordersCustomersSnapshot()
	snap.Views = []schema.View{
		{
			Schema: "public", Name: "recent_orders",
			Columns:      []schema.Column{{Name: "id", Type: "integer", Ordinal: 1}},
			Dependencies: []string{"public.orders", "public.gone"},
		},
		{Schema: "public", Name: "order_stats", Materialized: true},
	}

	g := Build(snap, nil)

	require.Len(t, g.Nodes, 4)
	stats, ok := g.Node("public.order_stats")
	require.True(t, ok)
	assert.Equal(t, KindMaterializedView, stats.Kind)
	recent, ok := g.Node("public.recent_orders")
	require.True(t, ok)
	assert.Equal(t, KindView, recent.Kind)

	var depEdges []Edge
	for _, e := range g.Edges {
		if e.Kind == EdgeViewDependency {
			depEdges = append(depEdges, e)
		}
	}
	require.Len(t, depEdges, 1)
	assert.Equal(t, "public.orders", depEdges[0].Target)

	// The dependency on the missing relation became a diagnostic.
	require.Len(t, g.Diagnostics, 1)
	assert.Equal(t, "public.gone", g.Diagnostics[0].Target)
}

func TestBuildIsDeterministic(t *testing.T) {
	a := Build(ordersCustomersSnapshot(), nil)
	b := Build(ordersCustomersSnapshot(), nil)

	assert.Equal(t, a.Nodes, b.Nodes)
	assert.Equal(t, a.Edges, b.Edges)
}
