package core

import (
	"fmt"

	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/kilupskalvis/vizedit/internal/registry"
)

// Normalizer canonicalizes raw options through the registry.
type Normalizer struct {
	Registry registry.Registry
}

// Normalize returns the canonical options of typ for raw. data may be nil.
// An unregistered type yields a *ConfigurationError.
func (n Normalizer) Normalize(typ string, raw models.Options, data *models.QueryResultData) (models.Options, error) {
	d, ok := n.Registry.Lookup(typ)
	if !ok {
		return nil, &ConfigurationError{Type: typ}
	}
	if raw == nil {
		raw = models.Options{}
	}
	opts, err := d.GetOptions(raw.Clone(), data)
	if err != nil {
		return nil, fmt.Errorf("normalize %s options: %w", typ, err)
	}
	return opts, nil
}
