package registry

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/kilupskalvis/vizedit/internal/models"
)

// TypeChart is the key of the chart visualization.
const TypeChart = "CHART"

var seriesTypes = []string{"column", "line", "area", "pie", "scatter"}

type chartOptions struct {
	GlobalSeriesType string   `mapstructure:"globalSeriesType"`
	XColumn          string   `mapstructure:"xColumn"`
	YColumns         []string `mapstructure:"yColumns"`
	Legend           bool     `mapstructure:"legend"`
	Stacking         bool     `mapstructure:"stacking"`
}

type chartType struct{}

func (chartType) Type() string     { return TypeChart }
func (chartType) Name() string     { return "Chart" }
func (chartType) Deprecated() bool { return false }

func (chartType) GetOptions(raw models.Options, data *models.QueryResultData) (models.Options, error) {
	defaults := chartOptions{
		GlobalSeriesType: "column",
		Legend:           true,
	}
	return normalize(raw, defaults, func(o *chartOptions) {
		if !contains(seriesTypes, o.GlobalSeriesType) {
			o.GlobalSeriesType = "column"
		}
		if o.XColumn == "" || !hasColumn(data, o.XColumn) {
			o.XColumn = ""
			if names := data.ColumnNames(); len(names) > 0 {
				o.XColumn = names[0]
			}
		}
		o.YColumns = knownColumns(o.YColumns, data)
		if len(o.YColumns) == 0 {
			for _, n := range numericColumns(data) {
				if n != o.XColumn {
					o.YColumns = append(o.YColumns, n)
				}
			}
		}
		if o.YColumns == nil {
			o.YColumns = []string{}
		}
	})
}

func (chartType) Editor() EditorSpec {
	return EditorSpec{Fields: []OptionField{
		{Key: "globalSeriesType", Kind: KindChoice, Help: "series type", Choices: seriesTypes},
		{Key: "xColumn", Kind: KindColumn, Help: "x axis column"},
		{Key: "yColumns", Kind: KindColumns, Help: "y axis columns"},
		{Key: "legend", Kind: KindBool, Help: "show legend"},
		{Key: "stacking", Kind: KindBool, Help: "stack series"},
	}}
}

func (chartType) Renderer() Renderer {
	return RendererFunc(renderChart)
}

const chartWidth = 40

// renderChart draws horizontal bars, one group per row of the x column.
func renderChart(w io.Writer, data *models.QueryResultData, options models.Options) error {
	var o chartOptions
	decodeLenient(options, &o)
	if o.XColumn == "" {
		return fmt.Errorf("chart needs an x column")
	}
	if len(o.YColumns) == 0 {
		return fmt.Errorf("chart needs at least one numeric y column")
	}

	maxVal := 0.0
	for _, r := range data.Rows {
		total := 0.0
		for _, y := range o.YColumns {
			v, ok := toFloat(r[y])
			if !ok {
				if r[y] == nil {
					continue
				}
				return fmt.Errorf("column %q holds non-numeric value %v", y, r[y])
			}
			if o.Stacking {
				total += math.Abs(v)
			} else {
				maxVal = math.Max(maxVal, math.Abs(v))
			}
		}
		maxVal = math.Max(maxVal, total)
	}

	fmt.Fprintf(w, "%s chart: %s by %s\n", o.GlobalSeriesType, strings.Join(o.YColumns, ", "), o.XColumn)
	if len(data.Rows) == 0 {
		fmt.Fprintln(w, "(no data)")
		return nil
	}

	glyphs := []string{"█", "▓", "▒", "░"}
	for _, r := range data.Rows {
		label := formatValue(r[o.XColumn])
		var bars strings.Builder
		for i, y := range o.YColumns {
			v, _ := toFloat(r[y])
			n := 0
			if maxVal > 0 {
				n = int(math.Round(math.Abs(v) / maxVal * chartWidth))
			}
			bars.WriteString(strings.Repeat(glyphs[i%len(glyphs)], n))
			if !o.Stacking {
				fmt.Fprintf(w, "%-16s %s %s\n", label, bars.String(), formatValue(r[y]))
				bars.Reset()
				label = ""
			}
		}
		if o.Stacking {
			fmt.Fprintf(w, "%-16s %s\n", label, bars.String())
		}
	}

	if o.Legend && len(o.YColumns) > 1 {
		parts := make([]string, len(o.YColumns))
		for i, y := range o.YColumns {
			parts[i] = glyphs[i%len(glyphs)] + " " + y
		}
		fmt.Fprintf(w, "legend: %s\n", strings.Join(parts, "  "))
	}
	return nil
}
