package weaviate

import (
	"context"

	"github.com/kilupskalvis/vizedit/internal/models"
)

// ClientInterface is what a Weaviate result source reads through.
type ClientInterface interface {
	GetClasses(ctx context.Context) ([]string, error)
	GetClass(ctx context.Context, className string) (*models.WeaviateClass, error)
	// GetObjects returns at most limit objects ordered by id; limit <= 0 means all.
	GetObjects(ctx context.Context, className string, limit int) ([]*models.WeaviateObject, error)
	GetClassCount(ctx context.Context, className string) (int, error)
}

var (
	_ ClientInterface = (*Client)(nil)
	_ ClientInterface = (*MockClient)(nil)
)
