// Package models defines the core data structures used throughout vizedit
// including queries, their visualizations, and query result snapshots.
package models

import (
	"encoding/json"
	"time"
)

// Options holds type-specific visualization configuration.
// The schema is owned by the visualization type in the registry.
type Options map[string]any

// Clone returns a deep copy of the options.
func (o Options) Clone() Options {
	if o == nil {
		return Options{}
	}
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = cloneValue(v)
	}
	return out
}

// Without returns a copy of the options with the given keys removed.
func (o Options) Without(keys ...string) Options {
	out := o.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Options(t).Clone())
	case Options:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// Visualization is a named, typed, parameterized presentation of a query's result.
type Visualization struct {
	ID          int64     `json:"id,omitempty" yaml:"id,omitempty"`
	Type        string    `json:"type" yaml:"type"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Options     Options   `json:"options" yaml:"options"`
	QueryID     int64     `json:"query_id" yaml:"query_id"`
	CreatedAt   time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// IsNew reports whether the visualization has not been persisted yet.
func (v *Visualization) IsNew() bool {
	return v.ID == 0
}

// Clone returns a deep copy of the visualization.
func (v *Visualization) Clone() *Visualization {
	if v == nil {
		return nil
	}
	c := *v
	c.Options = v.Options.Clone()
	return &c
}

// MarshalOptions returns the JSON encoding of the options.
func (v *Visualization) MarshalOptions() ([]byte, error) {
	return json.Marshal(v.Options)
}

// UpsertVisualization replaces the entry whose ID matches v, or appends v when
// no entry matches. The input slice is never modified; a new slice is
// returned together with whether v was appended.
func UpsertVisualization(list []*Visualization, v *Visualization) ([]*Visualization, bool) {
	out := make([]*Visualization, len(list), len(list)+1)
	copy(out, list)

	if v.ID != 0 {
		for i, existing := range out {
			if existing != nil && existing.ID == v.ID {
				out[i] = v
				return out, false
			}
		}
	}

	return append(out, v), true
}

// RemoveVisualization returns a new slice without the entry with the given ID.
func RemoveVisualization(list []*Visualization, id int64) ([]*Visualization, bool) {
	out := make([]*Visualization, 0, len(list))
	removed := false
	for _, v := range list {
		if v != nil && v.ID == id {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out, removed
}
