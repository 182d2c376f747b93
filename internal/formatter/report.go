package formatter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/t6891/pgxray/internal/graph"
	"github.com/t6891/pgxray/internal/schema"
)

const noDataMarker = "No data available."

// ReportOptions carries the per-run context the report mentions but the
// snapshot does not: output paths, rendering outcome, and the timestamp.
type ReportOptions struct {
	DOTPath   string
	ImagePath string
	// ImageGenerated is false when the rendering tool failed or is missing;
	// the report then points at the DOT text only.
	ImageGenerated bool
	// GeneratedAt stamps the report header. The zero value omits the stamp,
	// which keeps output reproducible for identical snapshots.
	GeneratedAt time.Time
}

// ReportFormatter writes the markdown audit report: summary, per-object
// detail with sampled rows, routine and trigger source. Every discovered
// object appears exactly once, in identifier order.
type ReportFormatter struct {
	writer io.Writer
}

// NewReportFormatter creates a new markdown report formatter
func NewReportFormatter(w io.Writer) *ReportFormatter {
	return &ReportFormatter{writer: w}
}

// Format writes the full report document.
func (f *ReportFormatter) Format(snap *schema.Snapshot, g *graph.Graph, opts ReportOptions) error {
	f.formatHeader(snap, opts)
	f.formatSummary(snap, g)
	f.formatTables(snap)
	f.formatViews(snap)
	f.formatDiagramSection(opts)
	f.formatRoutines(snap)
	f.formatTriggers(snap)
	return nil
}

func (f *ReportFormatter) formatHeader(snap *schema.Snapshot, opts ReportOptions) {
	name := snap.DatabaseName
	if name == "" {
		name = "(unknown database)"
	}
	_, _ = fmt.Fprintf(f.writer, "# Audit Report: `%s`\n", name)
	if !opts.GeneratedAt.IsZero() {
		_, _ = fmt.Fprintf(f.writer, "*Generated: %s*\n", opts.GeneratedAt.Format("2006-01-02 15:04:05"))
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *ReportFormatter) formatSummary(snap *schema.Snapshot, g *graph.Graph) {
	_, _ = fmt.Fprintln(f.writer, "## General Info")
	_, _ = fmt.Fprintf(f.writer, "- Server Version: **%s**\n", orMarker(snap.ProductVersion, "not available"))
	_, _ = fmt.Fprintf(f.writer, "- DB Size: **%s**\n", orMarker(snap.TotalSize, "not available"))
	_, _ = fmt.Fprintf(f.writer, "- Tables: **%d**\n", len(snap.Tables))
	_, _ = fmt.Fprintf(f.writer, "- Views: **%d**\n", len(snap.Views))
	_, _ = fmt.Fprintf(f.writer, "- Functions: **%d**\n", len(snap.Routines))
	_, _ = fmt.Fprintf(f.writer, "- Triggers: **%d**\n", len(snap.Triggers))
	_, _ = fmt.Fprintln(f.writer)

	for _, cat := range snap.MissingCategories {
		_, _ = fmt.Fprintf(f.writer, "> Warning: metadata for %s is not available.\n", cat)
	}
	for _, d := range g.Diagnostics {
		_, _ = fmt.Fprintf(f.writer, "> Warning: unresolved reference from `%s` to `%s` was dropped.\n",
			d.Source, d.Target)
	}
	if len(snap.MissingCategories) > 0 || len(g.Diagnostics) > 0 {
		_, _ = fmt.Fprintln(f.writer)
	}
}

func (f *ReportFormatter) formatTables(snap *schema.Snapshot) {
	_, _ = fmt.Fprintln(f.writer, "## Tables & Sample Data")
	if len(snap.Tables) == 0 {
		_, _ = fmt.Fprintln(f.writer, "No tables found.")
		_, _ = fmt.Fprintln(f.writer)
		return
	}

	for i := range snap.Tables {
		t := &snap.Tables[i]
		_, _ = fmt.Fprintf(f.writer, "### %s\n", t.ID())
		_, _ = fmt.Fprintf(f.writer, "- Rows Estimate: `%s` | Size: `%s`\n",
			estimate(t.RowEstimate), orMarker(t.Size, "unknown"))
		_, _ = fmt.Fprintln(f.writer)

		f.formatColumnTable(t)
		f.formatConstraints(t.Constraints)
		f.formatIndexes(t.Indexes)
		f.formatSamples(t.Samples)
	}
}

func (f *ReportFormatter) formatColumnTable(t *schema.Table) {
	_, _ = fmt.Fprintln(f.writer, "#### Columns")
	_, _ = fmt.Fprintln(f.writer)
	if len(t.Columns) == 0 {
		_, _ = fmt.Fprintln(f.writer, noDataMarker)
		_, _ = fmt.Fprintln(f.writer)
		return
	}

	pk := map[string]bool{}
	for _, col := range t.PrimaryKey() {
		pk[col] = true
	}

	_, _ = fmt.Fprintln(f.writer, "| Name | Type | Nullable | Default | Key | References |")
	_, _ = fmt.Fprintln(f.writer, "| ---- | ---- | -------- | ------- | --- | ---------- |")
	for _, col := range t.Columns {
		var keys []string
		if pk[col.Name] {
			keys = append(keys, "PK")
		}
		ref := ""
		for _, fk := range t.ForeignKeys {
			for i, src := range fk.Columns {
				if src != col.Name {
					continue
				}
				keys = append(keys, "FK")
				target := fk.TargetID
				if i < len(fk.TargetColumns) && fk.TargetColumns[i] != "" {
					target += "." + fk.TargetColumns[i]
				}
				ref = target
			}
		}

		nullable := "no"
		if col.Nullable {
			nullable = "yes"
		}
		def := ""
		if col.Default != nil {
			def = FormatValue(*col.Default, DocumentCell)
		}
		_, _ = fmt.Fprintf(f.writer, "| %s | %s | %s | %s | %s | %s |\n",
			FormatValue(col.Name, DocumentCell),
			FormatValue(col.Type, DocumentCell),
			nullable, def,
			strings.Join(keys, " "),
			FormatValue(ref, DocumentCell))
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *ReportFormatter) formatConstraints(constraints []schema.Constraint) {
	if len(constraints) == 0 {
		return
	}
	_, _ = fmt.Fprintln(f.writer, "#### Constraints")
	_, _ = fmt.Fprintln(f.writer)
	for _, c := range constraints {
		if c.Definition != "" {
			_, _ = fmt.Fprintf(f.writer, "- %s: `%s`\n",
				FormatValue(c.Name, DocumentCell), c.Definition)
			continue
		}
		_, _ = fmt.Fprintf(f.writer, "- %s: %s (%s)\n",
			FormatValue(c.Name, DocumentCell), c.Type, strings.Join(c.Columns, ", "))
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *ReportFormatter) formatIndexes(indexes []schema.Index) {
	if len(indexes) == 0 {
		return
	}
	_, _ = fmt.Fprintln(f.writer, "#### Indexes")
	_, _ = fmt.Fprintln(f.writer)
	for _, ix := range indexes {
		unique := ""
		if ix.Unique {
			unique = ", unique"
		}
		_, _ = fmt.Fprintf(f.writer, "- %s on (%s)%s\n",
			FormatValue(ix.Name, DocumentCell), strings.Join(ix.Columns, ", "), unique)
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *ReportFormatter) formatSamples(samples schema.SampleData) {
	_, _ = fmt.Fprintln(f.writer, "#### Sample Data")
	_, _ = fmt.Fprintln(f.writer)

	switch {
	case samples.Unavailable:
		_, _ = fmt.Fprintln(f.writer, noDataMarker)
	case len(samples.Rows) == 0:
		_, _ = fmt.Fprintln(f.writer, "No data sample.")
	default:
		header := make([]string, len(samples.Columns))
		sep := make([]string, len(samples.Columns))
		for i, col := range samples.Columns {
			header[i] = FormatValue(col, DocumentCell)
			sep[i] = "----"
		}
		_, _ = fmt.Fprintf(f.writer, "| %s |\n", strings.Join(header, " | "))
		_, _ = fmt.Fprintf(f.writer, "| %s |\n", strings.Join(sep, " | "))
		for _, row := range samples.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = FormatValue(v, DocumentCell)
			}
			_, _ = fmt.Fprintf(f.writer, "| %s |\n", strings.Join(cells, " | "))
		}
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *ReportFormatter) formatViews(snap *schema.Snapshot) {
	_, _ = fmt.Fprintln(f.writer, "## Views")
	if len(snap.Views) == 0 {
		_, _ = fmt.Fprintln(f.writer, "No views found.")
		_, _ = fmt.Fprintln(f.writer)
		return
	}

	for i := range snap.Views {
		v := &snap.Views[i]
		kind := "View"
		if v.Materialized {
			kind = "Materialized View"
		}
		_, _ = fmt.Fprintf(f.writer, "### %s (%s)\n", v.ID(), kind)
		if v.Description != "" {
			_, _ = fmt.Fprintf(f.writer, "*%s*\n", FormatValue(v.Description, DocumentCell))
		}
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintf(f.writer, "- Rows Estimate: `%s`\n", estimate(v.RowEstimate))
		_, _ = fmt.Fprintf(f.writer, "- Size: `%s`\n", orMarker(v.Size, "unknown"))
		_, _ = fmt.Fprintln(f.writer)

		f.formatViewColumns(v.Columns)
		f.formatDependencies(v.Dependencies)
		f.formatDefinition(v.Definition)
		f.formatSamples(v.Samples)
	}
}

func (f *ReportFormatter) formatViewColumns(columns []schema.Column) {
	_, _ = fmt.Fprintln(f.writer, "#### Columns")
	_, _ = fmt.Fprintln(f.writer)
	if len(columns) == 0 {
		_, _ = fmt.Fprintln(f.writer, noDataMarker)
		_, _ = fmt.Fprintln(f.writer)
		return
	}

	_, _ = fmt.Fprintln(f.writer, "| Name | Type |")
	_, _ = fmt.Fprintln(f.writer, "| ---- | ---- |")
	for _, col := range columns {
		_, _ = fmt.Fprintf(f.writer, "| %s | %s |\n",
			FormatValue(col.Name, DocumentCell), FormatValue(col.Type, DocumentCell))
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *ReportFormatter) formatDependencies(deps []string) {
	_, _ = fmt.Fprintln(f.writer, "#### Dependencies")
	_, _ = fmt.Fprintln(f.writer)
	if len(deps) == 0 {
		_, _ = fmt.Fprintln(f.writer, "No direct dependencies found.")
	} else {
		for _, dep := range deps {
			_, _ = fmt.Fprintf(f.writer, "- %s\n", FormatValue(dep, DocumentCell))
		}
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *ReportFormatter) formatDefinition(definition string) {
	_, _ = fmt.Fprintln(f.writer, "#### Definition")
	if definition == "" {
		_, _ = fmt.Fprintln(f.writer, noDataMarker)
		_, _ = fmt.Fprintln(f.writer)
		return
	}
	_, _ = fmt.Fprintln(f.writer, "```sql")
	_, _ = fmt.Fprintln(f.writer, strings.TrimRight(definition, "\n"))
	_, _ = fmt.Fprintln(f.writer, "```")
	_, _ = fmt.Fprintln(f.writer)
}

func (f *ReportFormatter) formatDiagramSection(opts ReportOptions) {
	_, _ = fmt.Fprintln(f.writer, "## ER Diagram")
	_, _ = fmt.Fprintf(f.writer, "- DOT: `%s`  \n", opts.DOTPath)
	if opts.ImageGenerated {
		_, _ = fmt.Fprintf(f.writer, "- PNG: `%s`  \n", opts.ImagePath)
	} else {
		_, _ = fmt.Fprintln(f.writer, "- PNG: not generated (rendering tool unavailable)  ")
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *ReportFormatter) formatRoutines(snap *schema.Snapshot) {
	_, _ = fmt.Fprintln(f.writer, "## Functions")
	if len(snap.Routines) == 0 {
		_, _ = fmt.Fprintln(f.writer, "No functions found.")
		_, _ = fmt.Fprintln(f.writer)
		return
	}

	for i := range snap.Routines {
		r := &snap.Routines[i]
		if r.ReturnType != "" {
			_, _ = fmt.Fprintf(f.writer, "### %s(%s) -> %s\n", r.ID(), r.Arguments, r.ReturnType)
		} else {
			_, _ = fmt.Fprintf(f.writer, "### %s(%s)\n", r.ID(), r.Arguments)
		}
		if r.Language != "" {
			_, _ = fmt.Fprintf(f.writer, "- Language: `%s`\n", r.Language)
		}
		_, _ = fmt.Fprintln(f.writer)
		if r.Definition == "" {
			_, _ = fmt.Fprintln(f.writer, "Source not available.")
			_, _ = fmt.Fprintln(f.writer)
			continue
		}
		_, _ = fmt.Fprintln(f.writer, "```sql")
		_, _ = fmt.Fprintln(f.writer, strings.TrimRight(r.Definition, "\n"))
		_, _ = fmt.Fprintln(f.writer, "```")
		_, _ = fmt.Fprintln(f.writer)
	}
}

func (f *ReportFormatter) formatTriggers(snap *schema.Snapshot) {
	_, _ = fmt.Fprintln(f.writer, "## Triggers")
	if len(snap.Triggers) == 0 {
		_, _ = fmt.Fprintln(f.writer, "No triggers found.")
		return
	}

	for i := range snap.Triggers {
		t := &snap.Triggers[i]
		_, _ = fmt.Fprintf(f.writer, "### %s ON %s\n", t.ID(), t.TableID)
		if t.Timing != "" || t.Event != "" {
			_, _ = fmt.Fprintf(f.writer, "- %s\n", strings.TrimSpace(t.Timing+" "+t.Event))
		}
		_, _ = fmt.Fprintln(f.writer)
		if t.Statement == "" {
			_, _ = fmt.Fprintln(f.writer, "Source not available.")
			_, _ = fmt.Fprintln(f.writer)
			continue
		}
		_, _ = fmt.Fprintln(f.writer, "```sql")
		_, _ = fmt.Fprintln(f.writer, strings.TrimRight(t.Statement, "\n"))
		_, _ = fmt.Fprintln(f.writer, "```")
		_, _ = fmt.Fprintln(f.writer)
	}
}

func orMarker(s, marker string) string {
	if s == "" {
		return marker
	}
	return s
}

func estimate(n int64) string {
	if n < 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d", n)
}
