package models

import "time"

// Source kinds supported by the query result accessors.
const (
	SourceSQLite   = "sqlite"
	SourceWeaviate = "weaviate"
	SourceJSON     = "json"
)

// QuerySource describes where a query's result rows come from.
type QuerySource struct {
	Kind     string `json:"kind" yaml:"kind"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"` // sqlite file
	SQL      string `json:"sql,omitempty" yaml:"sql,omitempty"`
	Class    string `json:"class,omitempty" yaml:"class,omitempty"` // weaviate class
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`   // json file
}

// Query owns an ordered collection of visualizations.
type Query struct {
	ID             int64            `json:"id" yaml:"id"`
	Name           string           `json:"name" yaml:"name"`
	Description    string           `json:"description,omitempty" yaml:"description,omitempty"`
	Source         QuerySource      `json:"source" yaml:"source"`
	Visualizations []*Visualization `json:"visualizations,omitempty" yaml:"visualizations,omitempty"`
	CreatedAt      time.Time        `json:"created_at" yaml:"created_at"`
}

// Visualization returns the visualization with the given ID, or nil.
func (q *Query) Visualization(id int64) *Visualization {
	for _, v := range q.Visualizations {
		if v != nil && v.ID == id {
			return v
		}
	}
	return nil
}
