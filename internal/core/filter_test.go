package core

import (
	"testing"

	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filterRows() []models.Row {
	return []models.Row{
		{"city": "Riga", "year": int64(2023), "sales": 10},
		{"city": "Tallinn", "year": int64(2023), "sales": 20},
		{"city": "Riga", "year": int64(2024), "sales": 30},
		{"city": "Vilnius", "sales": 40},
	}
}

func TestFilterRows_NoPredicatesIsIdentity(t *testing.T) {
	rows := filterRows()

	for _, fs := range []models.FilterSet{nil, {}, {"city": nil}, {"city": {}}} {
		out := FilterRows(rows, fs)
		assert.Equal(t, rows, out)
	}
}

func TestFilterRows_SingleColumn(t *testing.T) {
	out := FilterRows(filterRows(), models.FilterSet{"city": {"Riga"}})

	require.Len(t, out, 2)
	for _, r := range out {
		assert.Equal(t, "Riga", r["city"])
	}
	assert.Equal(t, 10, out[0]["sales"])
	assert.Equal(t, 30, out[1]["sales"])
}

func TestFilterRows_Conjunctive(t *testing.T) {
	out := FilterRows(filterRows(), models.FilterSet{
		"city": {"Riga", "Tallinn"},
		"year": {2023},
	})

	require.Len(t, out, 2)
	assert.Equal(t, "Riga", out[0]["city"])
	assert.Equal(t, "Tallinn", out[1]["city"])
}

func TestFilterRows_MissingKeyDoesNotMatch(t *testing.T) {
	out := FilterRows(filterRows(), models.FilterSet{"year": {2023, 2024}})

	require.Len(t, out, 3)
	for _, r := range out {
		assert.NotEqual(t, "Vilnius", r["city"])
	}
}

func TestFilterRows_NumericWidening(t *testing.T) {
	out := FilterRows(filterRows(), models.FilterSet{"year": {float64(2024)}})

	require.Len(t, out, 1)
	assert.Equal(t, 30, out[0]["sales"])
}

func TestFilterRows_Idempotent(t *testing.T) {
	sets := []models.FilterSet{
		{"city": {"Riga"}},
		{"year": {2023}},
		{"city": {"Riga", "Vilnius"}, "sales": {10, 40}},
		{"city": {"nowhere"}},
	}

	for _, fs := range sets {
		once := FilterRows(filterRows(), fs)
		twice := FilterRows(once, fs)
		assert.Equal(t, once, twice)
	}
}

func TestFilterRows_DoesNotModifyInput(t *testing.T) {
	rows := filterRows()
	_ = FilterRows(rows, models.FilterSet{"city": {"Tallinn"}})
	assert.Equal(t, filterRows(), rows)
}

func TestNewFilterSet(t *testing.T) {
	fs := NewFilterSet([]models.FilterDescriptor{
		{Name: "city::filter", Values: []any{"Riga", "Tallinn"}},
		{Name: "year::multi-filter", Multiple: true, Values: []any{2023, 2024}},
		{Name: "empty::filter"},
	})

	assert.Equal(t, models.FilterSet{"city::filter": {"Riga"}}, fs)
}

func TestFilterData(t *testing.T) {
	data := &models.QueryResultData{
		Columns: []models.Column{{Name: "city"}},
		Rows:    filterRows(),
	}

	out := FilterData(data, models.FilterSet{"city": {"Tallinn"}})
	require.Len(t, out.Rows, 1)
	assert.Equal(t, data.Columns, out.Columns)
	assert.Len(t, data.Rows, 4)

	assert.Nil(t, FilterData(nil, nil))
}
