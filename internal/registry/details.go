package registry

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kilupskalvis/vizedit/internal/models"
)

// TypeDetails is the key of the single-record details view.
const TypeDetails = "DETAILS"

type detailsOptions struct {
	RowNumber int `mapstructure:"rowNumber"`
}

type detailsType struct{}

func (detailsType) Type() string     { return TypeDetails }
func (detailsType) Name() string     { return "Details" }
func (detailsType) Deprecated() bool { return false }

func (detailsType) GetOptions(raw models.Options, _ *models.QueryResultData) (models.Options, error) {
	return normalize(raw, detailsOptions{RowNumber: 1}, func(o *detailsOptions) {
		if o.RowNumber < 1 {
			o.RowNumber = 1
		}
	})
}

func (detailsType) Editor() EditorSpec {
	return EditorSpec{Fields: []OptionField{
		{Key: "rowNumber", Kind: KindInt, Help: "1-based row to show"},
	}}
}

func (detailsType) Renderer() Renderer {
	return RendererFunc(func(w io.Writer, data *models.QueryResultData, options models.Options) error {
		var o detailsOptions
		decodeLenient(options, &o)
		if o.RowNumber < 1 || o.RowNumber > len(data.Rows) {
			return fmt.Errorf("row %d out of range (%d rows)", o.RowNumber, len(data.Rows))
		}
		row := data.Rows[o.RowNumber-1]

		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.SetTitle(fmt.Sprintf("row %d of %d", o.RowNumber, len(data.Rows)))
		for _, c := range data.Columns {
			name := c.FriendlyName
			if name == "" {
				name = c.Name
			}
			t.AppendRow(table.Row{name, formatValue(row[c.Name])})
		}
		t.Render()
		return nil
	})
}
