package models

import "time"

// Column types reported by the result accessors.
const (
	ColumnString   = "string"
	ColumnInteger  = "integer"
	ColumnFloat    = "float"
	ColumnBoolean  = "boolean"
	ColumnDatetime = "datetime"
)

// Column describes one result column.
type Column struct {
	Name         string `json:"name"`
	FriendlyName string `json:"friendly_name,omitempty"`
	Type         string `json:"type,omitempty"`
}

// IsNumeric reports whether the column holds numbers.
func (c Column) IsNumeric() bool {
	return c.Type == ColumnInteger || c.Type == ColumnFloat
}

// Row is a single result record keyed by column name.
type Row map[string]any

// FilterDescriptor describes a filterable column and its selectable values.
type FilterDescriptor struct {
	Name         string `json:"name"`
	FriendlyName string `json:"friendly_name,omitempty"`
	Multiple     bool   `json:"multiple"`
	Values       []any  `json:"values"`
}

// FilterSet maps a filter column to its selected values.
// A missing or empty selection places no restriction on that column.
type FilterSet map[string][]any

// Active reports whether any column carries a selection.
func (fs FilterSet) Active() bool {
	for _, v := range fs {
		if len(v) > 0 {
			return true
		}
	}
	return false
}

// QueryResultData is an immutable snapshot of a query result.
type QueryResultData struct {
	Columns     []Column           `json:"columns"`
	Rows        []Row              `json:"rows"`
	Filters     []FilterDescriptor `json:"filters,omitempty"`
	RetrievedAt time.Time          `json:"retrieved_at"`
	// Truncated is set when the source held more rows than were read.
	Truncated bool `json:"truncated,omitempty"`
}

// ColumnNames returns the column names in result order.
func (d *QueryResultData) ColumnNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the column with the given name.
func (d *QueryResultData) Column(name string) (Column, bool) {
	if d == nil {
		return Column{}, false
	}
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// WithRows returns a shallow copy of the snapshot carrying the given rows.
func (d *QueryResultData) WithRows(rows []Row) *QueryResultData {
	if d == nil {
		return &QueryResultData{Rows: rows}
	}
	c := *d
	c.Rows = rows
	return &c
}
