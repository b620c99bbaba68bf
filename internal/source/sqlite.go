package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kilupskalvis/vizedit/internal/models"

	// sqlite driver for query sources.
	_ "modernc.org/sqlite"
)

// DefaultMaxRows caps the rows read from a SQL source.
const DefaultMaxRows = 10000

// SQLite runs a query's SQL against a sqlite database file, read-only.
type SQLite struct {
	MaxRows int
}

// Fetch implements Accessor.
func (s SQLite) Fetch(ctx context.Context, src models.QuerySource) (*models.QueryResultData, error) {
	if src.Database == "" {
		return nil, fmt.Errorf("sqlite source needs a database path")
	}
	if strings.TrimSpace(src.SQL) == "" {
		return nil, fmt.Errorf("sqlite source needs a SQL statement")
	}

	db, err := sql.Open("sqlite", "file:"+src.Database+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, src.SQL)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRows(rows, s.maxRows())
}

func (s SQLite) maxRows() int {
	if s.MaxRows > 0 {
		return s.MaxRows
	}
	return DefaultMaxRows
}

func scanRows(rows *sql.Rows, maxRows int) (*models.QueryResultData, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read column types: %w", err)
	}

	data := &models.QueryResultData{
		Columns: make([]models.Column, len(names)),
		Rows:    []models.Row{},
	}
	for i, n := range names {
		data.Columns[i] = models.Column{Name: n, Type: declaredType(colTypes[i].DatabaseTypeName())}
	}

	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if len(data.Rows) >= maxRows {
			data.Truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(models.Row, len(names))
		for i, n := range names {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[n] = v
		}
		data.Rows = append(data.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	columnTypes(data.Columns, data.Rows)
	data.Filters = DeriveFilters(data.Columns, data.Rows)
	return data, nil
}

// declaredType maps a sqlite declared type to a column type using sqlite's
// affinity rules. Expressions have no declared type and are inferred later.
func declaredType(decl string) string {
	d := strings.ToUpper(decl)
	switch {
	case d == "":
		return ""
	case strings.Contains(d, "INT"):
		return models.ColumnInteger
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return models.ColumnString
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"),
		strings.Contains(d, "NUMERIC"), strings.Contains(d, "DECIMAL"):
		return models.ColumnFloat
	case strings.Contains(d, "BOOL"):
		return models.ColumnBoolean
	case strings.Contains(d, "DATE"), strings.Contains(d, "TIME"):
		return models.ColumnDatetime
	default:
		return ""
	}
}
