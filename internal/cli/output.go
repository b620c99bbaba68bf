package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/kilupskalvis/vizedit/internal/core"
	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/kilupskalvis/vizedit/internal/registry"
	"gopkg.in/yaml.v3"
)

// maxShownRows caps the rows printed by query show.
const maxShownRows = 50

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	// Column names are shown as the source spells them.
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	return t
}

// printRemoteNames lists "local" and the remotes, marking the one in use.
func printRemoteNames(w io.Writer, remotes []*models.Remote, current string) {
	fmt.Fprintf(w, "%s %s\n", currentMarker(current == ""), core.LocalRemote)
	for _, r := range remotes {
		fmt.Fprintf(w, "%s %s\n", currentMarker(r.Name == current), r.Name)
	}
}

func printRemotes(w io.Writer, remotes []*models.Remote, current string, tokens map[string]core.TokenSource) {
	t := newTable(w)
	t.AppendHeader(table.Row{"", "Name", "URL", "Token", "Last seen"})
	t.AppendRow(table.Row{currentMarker(current == ""), core.LocalRemote, "", "", ""})
	for _, r := range remotes {
		token := string(tokens[r.Name])
		if token == "" {
			token = color.YellowString("missing")
		}
		seen := "never"
		if r.LastSeen != nil {
			seen = fmt.Sprintf("%d queries, %d visualizations", r.LastSeen.Queries, r.LastSeen.Visualizations)
		}
		t.AppendRow(table.Row{currentMarker(r.Name == current), r.Name, r.URL, token, seen})
	}
	t.Render()
}

func currentMarker(current bool) string {
	if current {
		return "*"
	}
	return " "
}

func printQueries(w io.Writer, queries []*models.Query) {
	if len(queries) == 0 {
		fmt.Fprintln(w, "No queries")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", "Source", "Visualizations"})
	for _, q := range queries {
		t.AppendRow(table.Row{q.ID, q.Name, describeSource(q.Source), len(q.Visualizations)})
	}
	t.Render()
}

func describeSource(src models.QuerySource) string {
	switch src.Kind {
	case models.SourceSQLite:
		return fmt.Sprintf("sqlite:%s", src.Database)
	case models.SourceWeaviate:
		return fmt.Sprintf("weaviate:%s", src.Class)
	case models.SourceJSON:
		return fmt.Sprintf("json:%s", src.Path)
	default:
		return src.Kind
	}
}

// printResult prints up to limit rows of a result snapshot.
func printResult(w io.Writer, data *models.QueryResultData, limit int) {
	if data == nil {
		fmt.Fprintln(w, "(not run yet)")
		return
	}
	if len(data.Rows) == 0 {
		fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := newTable(w)
	header := make(table.Row, len(data.Columns))
	for i, c := range data.Columns {
		header[i] = c.Name
	}
	t.AppendHeader(header)

	for i, r := range data.Rows {
		if i >= limit {
			break
		}
		row := make(table.Row, len(data.Columns))
		for j, c := range data.Columns {
			row[j] = ""
			if v := r[c.Name]; v != nil {
				row[j] = v
			}
		}
		t.AppendRow(row)
	}
	if len(data.Rows) > limit {
		t.AppendFooter(table.Row{fmt.Sprintf("%d more rows", len(data.Rows)-limit)})
	}
	if data.Truncated {
		t.AppendFooter(table.Row{"source has more rows than were read"})
	}
	t.Render()
}

// resultSummary describes the size of a result snapshot.
func resultSummary(data *models.QueryResultData) string {
	s := fmt.Sprintf("%d rows, %d columns", len(data.Rows), len(data.Columns))
	if data.Truncated {
		s += " (truncated)"
	}
	return s
}

func printFilters(w io.Writer, filters []models.FilterDescriptor) {
	for _, f := range filters {
		kind := "single"
		if f.Multiple {
			kind = "multi"
		}
		values := make([]string, len(f.Values))
		for i, v := range f.Values {
			values[i] = fmt.Sprint(v)
		}
		fmt.Fprintf(w, "  %s (%s): %s\n", f.Name, kind, strings.Join(values, ", "))
	}
}

func printVisualizations(w io.Writer, vizs []*models.Visualization) {
	if len(vizs) == 0 {
		fmt.Fprintln(w, "No visualizations")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Type", "Name", "Updated"})
	for _, v := range vizs {
		updated := ""
		if !v.UpdatedAt.IsZero() {
			updated = v.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{v.ID, v.Type, v.Name, updated})
	}
	t.Render()
}

func printTypes(w io.Writer, reg registry.Registry) {
	def := reg.Default()
	yellow := color.New(color.FgYellow)
	for _, d := range reg.List() {
		line := fmt.Sprintf("%-10s %s", d.Type(), d.Name())
		if def != nil && d.Type() == def.Type() {
			line += " (default)"
		}
		if d.Deprecated() {
			line += yellow.Sprint(" [deprecated]")
		}
		fmt.Fprintln(w, line)
	}
}

func printEvents(w io.Writer, events []*models.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Time", "Action", "Subject", "Object", "Type"})
	for _, ev := range events {
		t.AppendRow(table.Row{
			ev.ID,
			ev.Timestamp.Local().Format("2006-01-02 15:04:05"),
			ev.Action,
			ev.Subject,
			ev.ObjectID,
			ev.Metadata["type"],
		})
	}
	t.Render()
}

// writeVisualization encodes v as yaml or json.
func writeVisualization(w io.Writer, v *models.Visualization, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want yaml or json)", format)
	}
}
