package registry

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/kilupskalvis/vizedit/internal/models"
)

// TypeTable is the key of the tabular visualization.
const TypeTable = "TABLE"

// PaginationSizeOption is a view-only TABLE option that is never persisted.
const PaginationSizeOption = "paginationSize"

type tableOptions struct {
	ItemsPerPage   int      `mapstructure:"itemsPerPage"`
	PaginationSize string   `mapstructure:"paginationSize"`
	Columns        []string `mapstructure:"columns"`
	Alignment      string   `mapstructure:"alignment"`
}

var paginationSizes = []string{"default", "small"}

type tableType struct{}

func (tableType) Type() string     { return TypeTable }
func (tableType) Name() string     { return "Table" }
func (tableType) Deprecated() bool { return false }

func (tableType) GetOptions(raw models.Options, data *models.QueryResultData) (models.Options, error) {
	defaults := tableOptions{
		ItemsPerPage:   25,
		PaginationSize: "default",
		Alignment:      "left",
	}
	return normalize(raw, defaults, func(o *tableOptions) {
		if o.ItemsPerPage < 1 {
			o.ItemsPerPage = 25
		}
		if !contains(paginationSizes, o.PaginationSize) {
			o.PaginationSize = "default"
		}
		if o.Alignment != "left" && o.Alignment != "right" {
			o.Alignment = "left"
		}
		o.Columns = knownColumns(o.Columns, data)
		if len(o.Columns) == 0 {
			o.Columns = data.ColumnNames()
		}
		if o.Columns == nil {
			o.Columns = []string{}
		}
	})
}

func (tableType) Editor() EditorSpec {
	return EditorSpec{Fields: []OptionField{
		{Key: "itemsPerPage", Kind: KindInt, Help: "rows per page"},
		{Key: "paginationSize", Kind: KindChoice, Help: "pager size (preview only)", Choices: paginationSizes},
		{Key: "columns", Kind: KindColumns, Help: "visible columns, in order"},
		{Key: "alignment", Kind: KindChoice, Help: "cell alignment", Choices: []string{"left", "right"}},
	}}
}

func (tableType) Renderer() Renderer {
	return RendererFunc(renderTable)
}

func renderTable(w io.Writer, data *models.QueryResultData, options models.Options) error {
	var o tableOptions
	decodeLenient(options, &o)
	if len(o.Columns) == 0 {
		o.Columns = data.ColumnNames()
	}
	if len(o.Columns) == 0 {
		return fmt.Errorf("no columns to display")
	}
	if o.ItemsPerPage < 1 {
		o.ItemsPerPage = 25
	}

	rows := data.Rows
	total := len(rows)
	if len(rows) > o.ItemsPerPage {
		rows = rows[:o.ItemsPerPage]
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	if o.PaginationSize == "small" {
		t.SetStyle(table.StyleLight)
	} else {
		t.SetStyle(table.StyleRounded)
	}
	t.Style().Format.Footer = text.FormatDefault

	header := make(table.Row, len(o.Columns))
	for i, c := range o.Columns {
		header[i] = c
	}
	t.AppendHeader(header)

	if o.Alignment == "right" {
		configs := make([]table.ColumnConfig, len(o.Columns))
		for i := range o.Columns {
			configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignRight}
		}
		t.SetColumnConfigs(configs)
	}

	for _, r := range rows {
		row := make(table.Row, len(o.Columns))
		for i, c := range o.Columns {
			row[i] = formatValue(r[c])
		}
		t.AppendRow(row)
	}

	pages := (total + o.ItemsPerPage - 1) / o.ItemsPerPage
	if pages == 0 {
		pages = 1
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d rows, page 1 of %d", total, pages)})
	t.Render()
	return nil
}
