// Package graph derives the directed relationship graph of a schema
// snapshot: one node per table or view, one edge per resolved foreign key,
// plus view dependency edges.
package graph

import (
	"log/slog"
	"sort"

	"github.com/t6891/pgxray/internal/schema"
)

// Kind tags what a node represents.
type Kind string

const (
	KindTable            Kind = "table"
	KindView             Kind = "view"
	KindMaterializedView Kind = "materialized_view"
)

// EdgeKind distinguishes FK edges from view dependency edges.
type EdgeKind string

const (
	EdgeForeignKey     EdgeKind = "foreign_key"
	EdgeViewDependency EdgeKind = "view_dependency"
)

// Cardinality labels. Best-effort structural inference, not a guarantee: an
// FK whose source column set is covered by a unique or primary key constraint
// is labeled one-to-one, everything else many-to-one.
const (
	CardinalityOneToOne  = "1:1"
	CardinalityManyToOne = "1:N"
)

// Node is one table or view in the relationship graph.
type Node struct {
	ID     string
	Schema string
	Name   string
	Kind   Kind

	Columns []schema.Column
	// PKColumns and FKColumns drive the key markers in the diagram.
	PKColumns map[string]bool
	FKColumns map[string]bool
}

// Edge is one resolved relationship between two nodes.
type Edge struct {
	Source      string
	Target      string
	Constraint  string
	Cardinality string
	Kind        EdgeKind
}

// Diagnostic records a reference that could not be resolved to a node.
// Unresolved references drop the edge; they are never fatal.
type Diagnostic struct {
	Source     string
	Target     string
	Constraint string
	Reason     string
}

// Graph is the derived relationship graph. Nodes and edges are sorted by
// identifier so rendering is byte-identical across runs.
type Graph struct {
	Nodes       []Node
	Edges       []Edge
	Diagnostics []Diagnostic

	byID map[string]int
}

// Node returns the node with the given identifier, if present.
func (g *Graph) Node(id string) (*Node, bool) {
	i, ok := g.byID[id]
	if !ok {
		return nil, false
	}
	return &g.Nodes[i], true
}

// Build derives the relationship graph from a snapshot.
func Build(snap *schema.Snapshot, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Graph{byID: map[string]int{}}

	for i := range snap.Tables {
		t := &snap.Tables[i]
		node := Node{
			ID:        t.ID(),
			Schema:    t.Schema,
			Name:      t.Name,
			Kind:      KindTable,
			Columns:   t.Columns,
			PKColumns: columnSet(t.PrimaryKey()),
			FKColumns: fkColumnSet(t.ForeignKeys),
		}
		g.addNode(node)
	}
	for i := range snap.Views {
		v := &snap.Views[i]
		kind := KindView
		if v.Materialized {
			kind = KindMaterializedView
		}
		g.addNode(Node{
			ID:        v.ID(),
			Schema:    v.Schema,
			Name:      v.Name,
			Kind:      kind,
			Columns:   v.Columns,
			PKColumns: map[string]bool{},
			FKColumns: map[string]bool{},
		})
	}

	g.sortNodes()

	for i := range snap.Tables {
		t := &snap.Tables[i]
		for _, fk := range t.ForeignKeys {
			g.addForeignKeyEdge(t, fk, logger)
		}
	}
	for i := range snap.Views {
		v := &snap.Views[i]
		for _, dep := range v.Dependencies {
			if _, ok := g.byID[dep]; !ok {
				g.diagnose(v.ID(), dep, "", "view dependency target not found", logger)
				continue
			}
			g.Edges = append(g.Edges, Edge{
				Source: v.ID(),
				Target: dep,
				Kind:   EdgeViewDependency,
			})
		}
	}

	sort.SliceStable(g.Edges, func(i, j int) bool {
		a, b := g.Edges[i], g.Edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Constraint < b.Constraint
	})

	return g
}

func (g *Graph) addNode(n Node) {
	if _, ok := g.byID[n.ID]; ok {
		return
	}
	g.byID[n.ID] = len(g.Nodes)
	g.Nodes = append(g.Nodes, n)
}

func (g *Graph) sortNodes() {
	sort.SliceStable(g.Nodes, func(i, j int) bool {
		return g.Nodes[i].ID < g.Nodes[j].ID
	})
	for i := range g.Nodes {
		g.byID[g.Nodes[i].ID] = i
	}
}

func (g *Graph) addForeignKeyEdge(t *schema.Table, fk schema.ForeignKey, logger *slog.Logger) {
	source := t.ID()
	if _, ok := g.byID[source]; !ok {
		g.diagnose(source, fk.TargetID, fk.Name, "source not found", logger)
		return
	}
	if _, ok := g.byID[fk.TargetID]; !ok {
		g.diagnose(source, fk.TargetID, fk.Name, "target not found", logger)
		return
	}

	g.Edges = append(g.Edges, Edge{
		Source:      source,
		Target:      fk.TargetID,
		Constraint:  fk.Name,
		Cardinality: inferCardinality(t, fk),
		Kind:        EdgeForeignKey,
	})
}

func (g *Graph) diagnose(source, target, constraint, reason string, logger *slog.Logger) {
	logger.Warn("unresolved reference, dropping edge",
		"source", source, "target", target, "constraint", constraint, "reason", reason)
	g.Diagnostics = append(g.Diagnostics, Diagnostic{
		Source:     source,
		Target:     target,
		Constraint: constraint,
		Reason:     reason,
	})
}

// inferCardinality labels an FK edge 1:1 when a unique or primary key
// constraint (or unique index) covers exactly the FK source column set,
// 1:N otherwise. Partial and expression indexes are not considered.
func inferCardinality(t *schema.Table, fk schema.ForeignKey) string {
	for _, c := range t.Constraints {
		if (c.Type == "PRIMARY KEY" || c.Type == "UNIQUE") && sameColumnSet(c.Columns, fk.Columns) {
			return CardinalityOneToOne
		}
	}
	for _, ix := range t.Indexes {
		if ix.Unique && sameColumnSet(ix.Columns, fk.Columns) {
			return CardinalityOneToOne
		}
	}
	return CardinalityManyToOne
}

func sameColumnSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, col := range a {
		set[col] = true
	}
	for _, col := range b {
		if !set[col] {
			return false
		}
	}
	return true
}

func columnSet(cols []string) map[string]bool {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set
}

func fkColumnSet(fks []schema.ForeignKey) map[string]bool {
	set := map[string]bool{}
	for _, fk := range fks {
		for _, c := range fk.Columns {
			set[c] = true
		}
	}
	return set
}
