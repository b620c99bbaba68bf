package core

import (
	"github.com/kilupskalvis/vizedit/internal/models"
)

// FilterRows returns the rows that satisfy every active column filter,
// preserving input order. A row missing a filtered column does not match.
// With no active filters the input slice is returned as is.
func FilterRows(rows []models.Row, filters models.FilterSet) []models.Row {
	if !filters.Active() {
		return rows
	}

	out := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		if rowMatches(row, filters) {
			out = append(out, row)
		}
	}
	return out
}

func rowMatches(row models.Row, filters models.FilterSet) bool {
	for col, selected := range filters {
		if len(selected) == 0 {
			continue
		}
		v, ok := row[col]
		if !ok {
			return false
		}
		matched := false
		for _, s := range selected {
			if valuesEqual(v, s) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// NewFilterSet returns the initial selection for the given filters.
// Single-value filters start on their first value; multi-value filters
// start unrestricted.
func NewFilterSet(descriptors []models.FilterDescriptor) models.FilterSet {
	fs := make(models.FilterSet, len(descriptors))
	for _, d := range descriptors {
		if d.Multiple || len(d.Values) == 0 {
			continue
		}
		fs[d.Name] = []any{d.Values[0]}
	}
	return fs
}

// FilterData applies filters to a result snapshot without modifying it.
func FilterData(data *models.QueryResultData, filters models.FilterSet) *models.QueryResultData {
	if data == nil {
		return nil
	}
	return data.WithRows(FilterRows(data.Rows, filters))
}
