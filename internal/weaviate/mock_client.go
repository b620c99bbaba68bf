package weaviate

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/kilupskalvis/vizedit/internal/models"
)

// MockClient serves classes and objects from memory.
type MockClient struct {
	Classes map[string]*models.WeaviateClass
	// Objects holds each class's objects in insertion order.
	Objects map[string][]*models.WeaviateObject
	// Err, when set, is returned by every read.
	Err error
	// Calls records the method names invoked, in order.
	Calls []string
}

// NewMockClient returns an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		Classes: make(map[string]*models.WeaviateClass),
		Objects: make(map[string][]*models.WeaviateObject),
	}
}

// AddClass adds a class definition.
func (m *MockClient) AddClass(class *models.WeaviateClass) {
	m.Classes[class.Class] = class
}

// AddObject appends an object to its class.
func (m *MockClient) AddObject(obj *models.WeaviateObject) {
	m.Objects[obj.Class] = append(m.Objects[obj.Class], obj)
}

func (m *MockClient) call(name string) error {
	m.Calls = append(m.Calls, name)
	return m.Err
}

func (m *MockClient) GetClasses(ctx context.Context) ([]string, error) {
	if err := m.call("GetClasses"); err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(m.Classes)), nil
}

func (m *MockClient) GetClass(ctx context.Context, className string) (*models.WeaviateClass, error) {
	if err := m.call("GetClass"); err != nil {
		return nil, err
	}
	c, ok := m.Classes[className]
	if !ok {
		return nil, fmt.Errorf("class %s not found", className)
	}
	return c, nil
}

// GetObjects returns up to limit objects ordered by id, as cursor paging would.
func (m *MockClient) GetObjects(ctx context.Context, className string, limit int) ([]*models.WeaviateObject, error) {
	if err := m.call("GetObjects"); err != nil {
		return nil, err
	}
	objs := slices.SortedFunc(slices.Values(m.Objects[className]), func(a, b *models.WeaviateObject) int {
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(objs) > limit {
		objs = objs[:limit]
	}
	return objs, nil
}

func (m *MockClient) GetClassCount(ctx context.Context, className string) (int, error) {
	if err := m.call("GetClassCount"); err != nil {
		return 0, err
	}
	return len(m.Objects[className]), nil
}
