package source

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/kilupskalvis/vizedit/internal/weaviate"
)

// IDColumn is the column holding each Weaviate object's UUID.
const IDColumn = "id"

// Weaviate reads the objects of a class as rows: one column for the object
// id followed by the class properties in schema order.
type Weaviate struct {
	Client  weaviate.ClientInterface
	MaxRows int
}

// Fetch implements Accessor.
func (w Weaviate) Fetch(ctx context.Context, src models.QuerySource) (*models.QueryResultData, error) {
	if w.Client == nil {
		return nil, fmt.Errorf("weaviate source is not configured")
	}
	if src.Class == "" {
		return nil, fmt.Errorf("weaviate source needs a class")
	}

	classes, err := w.Client.GetClasses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	if !slices.Contains(classes, src.Class) {
		return nil, fmt.Errorf("weaviate class %q not found (available: %s)", src.Class, strings.Join(classes, ", "))
	}

	class, err := w.Client.GetClass(ctx, src.Class)
	if err != nil {
		return nil, err
	}

	limit := w.MaxRows
	if limit <= 0 {
		limit = DefaultMaxRows
	}
	objects, err := w.Client.GetObjects(ctx, src.Class, limit)
	if err != nil {
		return nil, err
	}

	data := &models.QueryResultData{
		Columns: []models.Column{{Name: IDColumn, Type: models.ColumnString}},
		Rows:    make([]models.Row, 0, len(objects)),
	}
	for _, p := range class.Properties {
		data.Columns = append(data.Columns, models.Column{Name: p.Name, Type: propertyType(p.DataType)})
	}

	for _, obj := range objects {
		row := models.Row{IDColumn: obj.ID}
		for _, p := range class.Properties {
			if v, ok := obj.Properties[p.Name]; ok {
				row[p.Name] = v
			}
		}
		data.Rows = append(data.Rows, row)
	}

	// A full page may be the whole class; only the count can tell.
	if len(objects) >= limit {
		total, err := w.Client.GetClassCount(ctx, src.Class)
		if err != nil {
			return nil, fmt.Errorf("count %s objects: %w", src.Class, err)
		}
		data.Truncated = total > len(objects)
	}

	data.Filters = DeriveFilters(data.Columns, data.Rows)
	return data, nil
}

// propertyType maps a Weaviate data type to a column type. Arrays and
// cross-references are shown as strings.
func propertyType(dataType []string) string {
	if len(dataType) != 1 {
		return models.ColumnString
	}
	switch dataType[0] {
	case "int":
		return models.ColumnInteger
	case "number":
		return models.ColumnFloat
	case "boolean":
		return models.ColumnBoolean
	case "date":
		return models.ColumnDatetime
	default:
		return models.ColumnString
	}
}
