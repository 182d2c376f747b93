package formatter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/t6891/pgxray/internal/graph"
)

// DiagramFormatter serializes a relationship graph as a graphviz DOT
// document with HTML-like table labels, one attribute table per node.
type DiagramFormatter struct {
	writer io.Writer
}

// NewDiagramFormatter creates a new DOT diagram formatter
func NewDiagramFormatter(w io.Writer) *DiagramFormatter {
	return &DiagramFormatter{writer: w}
}

// Format writes the graph as DOT text. Nodes are grouped into one cluster
// per schema; iteration follows the graph's sorted order, so output is
// byte-identical for identical graphs.
func (f *DiagramFormatter) Format(g *graph.Graph) error {
	_, _ = fmt.Fprintln(f.writer, "digraph ER {")
	_, _ = fmt.Fprintln(f.writer, `  graph [rankdir=LR, fontname="Helvetica", fontsize=12, pad="0.5", nodesep="0.5", ranksep="1.5"];`)
	_, _ = fmt.Fprintln(f.writer, `  node [shape=plain, fontname="Helvetica", fontsize=10];`)
	_, _ = fmt.Fprintln(f.writer, `  edge [arrowhead=crow, arrowtail=none, dir=both, fontname="Helvetica", fontsize=9, penwidth=1.0];`)
	_, _ = fmt.Fprintln(f.writer)

	for _, schemaName := range f.schemas(g) {
		_, _ = fmt.Fprintf(f.writer, "  subgraph cluster_%s {\n", clusterID(schemaName))
		_, _ = fmt.Fprintf(f.writer, "    label=\"Schema: %s\";\n", FormatValue(schemaName, DiagramCell))
		_, _ = fmt.Fprintln(f.writer, `    style="filled";`)
		_, _ = fmt.Fprintln(f.writer, `    color="#EEEEEE";`)
		_, _ = fmt.Fprintln(f.writer, `    fontname="Helvetica-Bold";`)
		_, _ = fmt.Fprintln(f.writer, `    fontsize=12;`)

		for i := range g.Nodes {
			node := &g.Nodes[i]
			if node.Schema != schemaName {
				continue
			}
			f.formatNode(node)
		}

		_, _ = fmt.Fprintln(f.writer, "  }")
		_, _ = fmt.Fprintln(f.writer)
	}

	for _, edge := range g.Edges {
		f.formatEdge(edge)
	}

	_, _ = fmt.Fprintln(f.writer, "}")
	return nil
}

func (f *DiagramFormatter) schemas(g *graph.Graph) []string {
	seen := map[string]bool{}
	var schemas []string
	for i := range g.Nodes {
		if !seen[g.Nodes[i].Schema] {
			seen[g.Nodes[i].Schema] = true
			schemas = append(schemas, g.Nodes[i].Schema)
		}
	}
	sort.Strings(schemas)
	return schemas
}

func (f *DiagramFormatter) formatNode(node *graph.Node) {
	if node.Kind == graph.KindTable {
		_, _ = fmt.Fprintf(f.writer, "    %s [label=%s];\n", quoteID(node.ID), f.tableLabel(node))
		return
	}
	_, _ = fmt.Fprintf(f.writer, "    %s [label=%s, style=\"dashed\"];\n", quoteID(node.ID), f.viewLabel(node))
}

// tableLabel builds the HTML-like attribute table for a table node:
// header row, column headings, then one row per column with PK/FK markers.
func (f *DiagramFormatter) tableLabel(node *graph.Node) string {
	var b strings.Builder
	b.WriteString("<\n")
	b.WriteString("      <TABLE BORDER=\"0\" CELLBORDER=\"1\" CELLSPACING=\"0\" CELLPADDING=\"4\">\n")
	fmt.Fprintf(&b, "        <TR><TD COLSPAN=\"4\" BGCOLOR=\"#4D7A97\"><FONT COLOR=\"white\"><B>%s</B></FONT></TD></TR>\n",
		FormatValue(node.Name, DiagramCell))
	b.WriteString("        <TR><TD BGCOLOR=\"#EEEEFF\"><B>Column</B></TD><TD BGCOLOR=\"#EEEEFF\"><B>Type</B></TD><TD BGCOLOR=\"#EEEEFF\"><B>PK</B></TD><TD BGCOLOR=\"#EEEEFF\"><B>FK</B></TD></TR>\n")

	for _, col := range node.Columns {
		pkCell := "<TD></TD>"
		if node.PKColumns[col.Name] {
			pkCell = `<TD BGCOLOR="#E0FFE0"><B>PK</B></TD>`
		}
		fkCell := "<TD></TD>"
		if node.FKColumns[col.Name] {
			fkCell = `<TD BGCOLOR="#E0E0FF"><B>FK</B></TD>`
		}
		fmt.Fprintf(&b, "        <TR><TD ALIGN=\"LEFT\">%s</TD><TD ALIGN=\"LEFT\">%s</TD>%s%s</TR>\n",
			FormatValue(col.Name, DiagramCell), FormatValue(col.Type, DiagramCell), pkCell, fkCell)
	}

	b.WriteString("      </TABLE>\n    >")
	return b.String()
}

func (f *DiagramFormatter) viewLabel(node *graph.Node) string {
	kind := "View"
	if node.Kind == graph.KindMaterializedView {
		kind = "Materialized View"
	}

	var b strings.Builder
	b.WriteString("<\n")
	b.WriteString("      <TABLE BORDER=\"0\" CELLBORDER=\"1\" CELLSPACING=\"0\" CELLPADDING=\"4\">\n")
	fmt.Fprintf(&b, "        <TR><TD COLSPAN=\"2\" BGCOLOR=\"#6A8759\"><FONT COLOR=\"white\"><B>%s</B> (%s)</FONT></TD></TR>\n",
		FormatValue(node.Name, DiagramCell), kind)
	b.WriteString("        <TR><TD BGCOLOR=\"#EEEEFF\"><B>Column</B></TD><TD BGCOLOR=\"#EEEEFF\"><B>Type</B></TD></TR>\n")

	for _, col := range node.Columns {
		fmt.Fprintf(&b, "        <TR><TD ALIGN=\"LEFT\">%s</TD><TD ALIGN=\"LEFT\">%s</TD></TR>\n",
			FormatValue(col.Name, DiagramCell), FormatValue(col.Type, DiagramCell))
	}

	b.WriteString("      </TABLE>\n    >")
	return b.String()
}

func (f *DiagramFormatter) formatEdge(edge graph.Edge) {
	if edge.Kind == graph.EdgeViewDependency {
		_, _ = fmt.Fprintf(f.writer, "  %s -> %s [style=\"dashed\", arrowhead=\"vee\", color=\"#7B8B6F\"];\n",
			quoteID(edge.Source), quoteID(edge.Target))
		return
	}
	_, _ = fmt.Fprintf(f.writer,
		"  %s -> %s [label=\"%s\", tooltip=\"%s\", fontname=\"Helvetica\", fontsize=8, color=\"#5D8AA8\", style=\"solid\", arrowhead=normal, arrowtail=crow];\n",
		quoteID(edge.Source), quoteID(edge.Target), edge.Cardinality, FormatValue(edge.Constraint, DiagramCell))
}

var quotedIDEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quoteID wraps an identifier for use as a DOT double-quoted string.
func quoteID(id string) string {
	return `"` + quotedIDEscaper.Replace(id) + `"`
}

// clusterID sanitizes a schema name into a graphviz-safe cluster identifier.
func clusterID(schemaName string) string {
	var b strings.Builder
	for _, r := range schemaName {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
