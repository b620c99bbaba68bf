package registry

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/kilupskalvis/vizedit/internal/models"
)

// TypeCounter is the key of the single-value counter visualization.
const TypeCounter = "COUNTER"

type counterOptions struct {
	CounterColumn string `mapstructure:"counterColumn"`
	RowNumber     int    `mapstructure:"rowNumber"`
	TargetColumn  string `mapstructure:"targetColumn"`
	StringPrefix  string `mapstructure:"stringPrefix"`
	StringSuffix  string `mapstructure:"stringSuffix"`
}

type counterType struct{}

func (counterType) Type() string     { return TypeCounter }
func (counterType) Name() string     { return "Counter" }
func (counterType) Deprecated() bool { return false }

func (counterType) GetOptions(raw models.Options, data *models.QueryResultData) (models.Options, error) {
	return normalize(raw, counterOptions{RowNumber: 1}, func(o *counterOptions) {
		if o.RowNumber < 1 {
			o.RowNumber = 1
		}
		if o.CounterColumn == "" || !hasColumn(data, o.CounterColumn) {
			o.CounterColumn = ""
			if nums := numericColumns(data); len(nums) > 0 {
				o.CounterColumn = nums[0]
			} else if names := data.ColumnNames(); len(names) > 0 {
				o.CounterColumn = names[0]
			}
		}
		if o.TargetColumn != "" && !hasColumn(data, o.TargetColumn) {
			o.TargetColumn = ""
		}
	})
}

func (counterType) Editor() EditorSpec {
	return EditorSpec{Fields: []OptionField{
		{Key: "counterColumn", Kind: KindColumn, Help: "column holding the value"},
		{Key: "rowNumber", Kind: KindInt, Help: "1-based row to read"},
		{Key: "targetColumn", Kind: KindColumn, Help: "optional column holding the target"},
		{Key: "stringPrefix", Kind: KindString, Help: "text before the value"},
		{Key: "stringSuffix", Kind: KindString, Help: "text after the value"},
	}}
}

func (counterType) Renderer() Renderer {
	return RendererFunc(renderCounter)
}

var counterStyle = lipgloss.NewStyle().
	Bold(true).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("86")).
	Padding(0, 2)

func renderCounter(w io.Writer, data *models.QueryResultData, options models.Options) error {
	var o counterOptions
	decodeLenient(options, &o)
	if o.CounterColumn == "" {
		return fmt.Errorf("counter needs a value column")
	}
	if o.RowNumber < 1 || o.RowNumber > len(data.Rows) {
		return fmt.Errorf("row %d out of range (%d rows)", o.RowNumber, len(data.Rows))
	}

	row := data.Rows[o.RowNumber-1]
	value, ok := row[o.CounterColumn]
	if !ok {
		return fmt.Errorf("row %d has no column %q", o.RowNumber, o.CounterColumn)
	}

	body := o.StringPrefix + formatValue(value) + o.StringSuffix
	if o.TargetColumn != "" {
		target := row[o.TargetColumn]
		body += fmt.Sprintf("\ntarget %s", formatValue(target))
		v, vok := toFloat(value)
		t, tok := toFloat(target)
		if vok && tok && t != 0 {
			body += fmt.Sprintf(" (%.1f%%)", v/t*100)
		}
	}

	_, err := fmt.Fprintln(w, counterStyle.Render(body))
	return err
}
