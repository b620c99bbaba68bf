// Package source turns a query's source definition into a result snapshot
// the editor can preview against.
package source

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kilupskalvis/vizedit/internal/models"
)

// Accessor fetches the result of a query source.
type Accessor interface {
	Fetch(ctx context.Context, src models.QuerySource) (*models.QueryResultData, error)
}

// AccessorFunc adapts a function to Accessor.
type AccessorFunc func(ctx context.Context, src models.QuerySource) (*models.QueryResultData, error)

func (f AccessorFunc) Fetch(ctx context.Context, src models.QuerySource) (*models.QueryResultData, error) {
	return f(ctx, src)
}

// Mux dispatches to an accessor by source kind.
type Mux struct {
	accessors map[string]Accessor
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{accessors: make(map[string]Accessor)}
}

// Handle registers the accessor for kind.
func (m *Mux) Handle(kind string, a Accessor) {
	m.accessors[kind] = a
}

// Kinds returns the registered source kinds, sorted.
func (m *Mux) Kinds() []string {
	kinds := make([]string, 0, len(m.accessors))
	for k := range m.accessors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Fetch runs src through the accessor registered for its kind.
func (m *Mux) Fetch(ctx context.Context, src models.QuerySource) (*models.QueryResultData, error) {
	a, ok := m.accessors[src.Kind]
	if !ok {
		return nil, fmt.Errorf("unsupported source kind %q", src.Kind)
	}
	data, err := a.Fetch(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("fetch %s result: %w", src.Kind, err)
	}
	if data.RetrievedAt.IsZero() {
		data.RetrievedAt = time.Now().UTC()
	}
	return data, nil
}

// Filter column suffixes. A column named "region::filter" becomes a
// single-select filter, "region::multi-filter" a multi-select one.
var filterSuffixes = []struct {
	suffix   string
	multiple bool
}{
	{"::multi-filter", true},
	{"__multiFilter", true},
	{"::filter", false},
	{"__filter", false},
}

// DeriveFilters returns a filter for every column marked as one by its name,
// with the distinct values in first-seen order.
func DeriveFilters(columns []models.Column, rows []models.Row) []models.FilterDescriptor {
	var filters []models.FilterDescriptor
	for _, c := range columns {
		for _, fs := range filterSuffixes {
			base, ok := strings.CutSuffix(c.Name, fs.suffix)
			if !ok {
				continue
			}
			filters = append(filters, models.FilterDescriptor{
				Name:         c.Name,
				FriendlyName: base,
				Multiple:     fs.multiple,
				Values:       distinctValues(c.Name, rows),
			})
			break
		}
	}
	return filters
}

func distinctValues(col string, rows []models.Row) []any {
	seen := make(map[any]bool)
	values := []any{}
	for _, r := range rows {
		v, ok := r[col]
		if !ok {
			continue
		}
		key := v
		switch v.(type) {
		case []any, map[string]any:
			key = fmt.Sprint(v)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		values = append(values, v)
	}
	return values
}

// inferType guesses a column type from a sample value.
func inferType(v any) string {
	switch t := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return models.ColumnInteger
	case float32:
		return models.ColumnFloat
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return models.ColumnInteger
		}
		return models.ColumnFloat
	case bool:
		return models.ColumnBoolean
	case time.Time:
		return models.ColumnDatetime
	default:
		return models.ColumnString
	}
}

// columnTypes fills empty column types from the first non-nil value.
// A float anywhere in an integer-looking column widens it to float.
func columnTypes(columns []models.Column, rows []models.Row) {
	for i := range columns {
		if columns[i].Type != "" {
			continue
		}
		typ := ""
		for _, r := range rows {
			v := r[columns[i].Name]
			if v == nil {
				continue
			}
			t := inferType(v)
			if typ == "" {
				typ = t
			} else if typ == models.ColumnInteger && t == models.ColumnFloat {
				typ = models.ColumnFloat
			}
			if typ != models.ColumnInteger {
				break
			}
		}
		if typ == "" {
			typ = models.ColumnString
		}
		columns[i].Type = typ
	}
}
