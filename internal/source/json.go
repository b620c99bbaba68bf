package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/kilupskalvis/vizedit/internal/models"
)

// JSON reads a result stored as {"columns": [...], "rows": [...]} in a file.
// Columns may be omitted, in which case they are the sorted keys of the rows.
type JSON struct{}

// Fetch implements Accessor.
func (JSON) Fetch(_ context.Context, src models.QuerySource) (*models.QueryResultData, error) {
	if src.Path == "" {
		return nil, fmt.Errorf("json source needs a file path")
	}
	raw, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Path, err)
	}
	return ParseJSON(raw)
}

// ParseJSON decodes a result document.
func ParseJSON(raw []byte) (*models.QueryResultData, error) {
	var doc struct {
		Columns []models.Column `json:"columns"`
		Rows    []models.Row    `json:"rows"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	data := &models.QueryResultData{Columns: doc.Columns, Rows: doc.Rows}
	if data.Rows == nil {
		data.Rows = []models.Row{}
	}
	if len(data.Columns) == 0 {
		data.Columns = columnsFromRows(data.Rows)
	}
	for i, c := range data.Columns {
		if c.Name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
	}

	columnTypes(data.Columns, data.Rows)
	data.Filters = DeriveFilters(data.Columns, data.Rows)
	return data, nil
}

func columnsFromRows(rows []models.Row) []models.Column {
	seen := make(map[string]bool)
	var names []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)

	cols := make([]models.Column, len(names))
	for i, n := range names {
		cols[i] = models.Column{Name: n}
	}
	return cols
}
