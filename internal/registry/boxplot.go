package registry

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kilupskalvis/vizedit/internal/models"
)

// TypeBoxplot is a legacy type kept so existing visualizations stay editable.
const TypeBoxplot = "BOXPLOT"

type boxplotOptions struct {
	XAxisLabel string `mapstructure:"xAxisLabel"`
	YAxisLabel string `mapstructure:"yAxisLabel"`
}

type boxplotType struct{}

func (boxplotType) Type() string     { return TypeBoxplot }
func (boxplotType) Name() string     { return "Boxplot" }
func (boxplotType) Deprecated() bool { return true }

func (boxplotType) GetOptions(raw models.Options, _ *models.QueryResultData) (models.Options, error) {
	return normalize(raw, boxplotOptions{}, nil)
}

func (boxplotType) Editor() EditorSpec {
	return EditorSpec{Fields: []OptionField{
		{Key: "xAxisLabel", Kind: KindString, Help: "x axis label"},
		{Key: "yAxisLabel", Kind: KindString, Help: "y axis label"},
	}}
}

func (boxplotType) Renderer() Renderer {
	return RendererFunc(renderBoxplot)
}

// renderBoxplot prints the five-number summary of every numeric column.
func renderBoxplot(w io.Writer, data *models.QueryResultData, options models.Options) error {
	var o boxplotOptions
	decodeLenient(options, &o)

	cols := numericColumns(data)
	if len(cols) == 0 {
		return fmt.Errorf("boxplot needs at least one numeric column")
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if o.YAxisLabel != "" {
		t.SetTitle(o.YAxisLabel)
	}
	label := o.XAxisLabel
	if label == "" {
		label = "column"
	}
	t.AppendHeader(table.Row{label, "min", "q1", "median", "q3", "max"})

	for _, c := range cols {
		var vals []float64
		for _, r := range data.Rows {
			if v, ok := toFloat(r[c]); ok {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			t.AppendRow(table.Row{c, "-", "-", "-", "-", "-"})
			continue
		}
		sort.Float64s(vals)
		t.AppendRow(table.Row{c,
			formatValue(vals[0]),
			formatValue(quantile(vals, 0.25)),
			formatValue(quantile(vals, 0.5)),
			formatValue(quantile(vals, 0.75)),
			formatValue(vals[len(vals)-1]),
		})
	}
	t.Render()
	return nil
}

// quantile interpolates linearly over sorted values.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
