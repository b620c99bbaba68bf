// Package registry maps visualization type keys to their option
// normalization, rendering and editing behavior.
package registry

import (
	"fmt"
	"io"
	"sort"

	"github.com/kilupskalvis/vizedit/internal/models"
)

// Renderer draws a visualization preview for a result snapshot.
type Renderer interface {
	Render(w io.Writer, data *models.QueryResultData, options models.Options) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(w io.Writer, data *models.QueryResultData, options models.Options) error

// Render calls f.
func (f RendererFunc) Render(w io.Writer, data *models.QueryResultData, options models.Options) error {
	return f(w, data, options)
}

// Option kinds understood by editors.
const (
	KindString  = "string"
	KindInt     = "int"
	KindBool    = "bool"
	KindChoice  = "choice"
	KindColumn  = "column"
	KindColumns = "columns"
)

// OptionField describes one editable option.
type OptionField struct {
	Key     string
	Kind    string
	Help    string
	Choices []string
}

// EditorSpec lists the options a type exposes for editing.
type EditorSpec struct {
	Fields []OptionField
}

// Field returns the field with the given key.
func (e EditorSpec) Field(key string) (OptionField, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return OptionField{}, false
}

// Descriptor is the capability set every visualization type provides.
type Descriptor interface {
	Type() string
	Name() string
	// GetOptions returns the canonical options for raw, filling defaults and
	// coercing known fields. data may be nil.
	GetOptions(raw models.Options, data *models.QueryResultData) (models.Options, error)
	Renderer() Renderer
	Editor() EditorSpec
	Deprecated() bool
}

// Registry is the catalog of visualization types.
type Registry interface {
	Lookup(typ string) (Descriptor, bool)
	List() []Descriptor
	Default() Descriptor
	// Build returns a scaffold visualization of the given type with its
	// default name and options.
	Build(typ string) (*models.Visualization, error)
}

// Catalog is an in-memory Registry.
type Catalog struct {
	types       map[string]Descriptor
	defaultType string
}

var _ Registry = (*Catalog)(nil)

// New creates a catalog holding the given descriptors. The first descriptor
// is the default unless SetDefault is called.
func New(descriptors ...Descriptor) *Catalog {
	c := &Catalog{types: make(map[string]Descriptor)}
	for _, d := range descriptors {
		c.Register(d)
	}
	return c
}

// Builtin returns a catalog with the built-in visualization types.
// TABLE is the default.
func Builtin() *Catalog {
	return New(
		tableType{},
		chartType{},
		counterType{},
		detailsType{},
		boxplotType{},
	)
}

// Register adds or replaces a descriptor.
func (c *Catalog) Register(d Descriptor) {
	if c.defaultType == "" {
		c.defaultType = d.Type()
	}
	c.types[d.Type()] = d
}

// SetDefault changes the designated default type.
func (c *Catalog) SetDefault(typ string) error {
	d, ok := c.types[typ]
	if !ok {
		return fmt.Errorf("unknown visualization type %q", typ)
	}
	if d.Deprecated() {
		return fmt.Errorf("visualization type %q is deprecated", typ)
	}
	c.defaultType = typ
	return nil
}

// Lookup returns the descriptor for typ.
func (c *Catalog) Lookup(typ string) (Descriptor, bool) {
	d, ok := c.types[typ]
	return d, ok
}

// List returns all descriptors sorted by type key.
func (c *Catalog) List() []Descriptor {
	out := make([]Descriptor, 0, len(c.types))
	for _, d := range c.types {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Type() < out[j].Type()
	})
	return out
}

// Default returns the designated default descriptor.
func (c *Catalog) Default() Descriptor {
	return c.types[c.defaultType]
}

// Build returns a scaffold visualization for typ.
func (c *Catalog) Build(typ string) (*models.Visualization, error) {
	d, ok := c.types[typ]
	if !ok {
		return nil, fmt.Errorf("unknown visualization type %q", typ)
	}
	opts, err := d.GetOptions(models.Options{}, nil)
	if err != nil {
		return nil, fmt.Errorf("default options for %s: %w", typ, err)
	}
	return &models.Visualization{
		Type:    d.Type(),
		Name:    d.Name(),
		Options: opts,
	}, nil
}
