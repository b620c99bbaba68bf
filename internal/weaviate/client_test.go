package weaviate

import (
	"context"
	"errors"
	"testing"

	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	weaviatemodels "github.com/weaviate/weaviate/entities/models"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in     string
		major  int
		minor  int
		patch  int
		cursor bool
	}{
		{"1.25.0", 1, 25, 0, true},
		{"1.18.3", 1, 18, 3, true},
		{"1.17.9", 1, 17, 9, false},
		{"2.0.0-rc1", 2, 0, 0, true},
		{"v1.24.10", 1, 24, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := parseVersion(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.major, v.Major)
			assert.Equal(t, tt.minor, v.Minor)
			assert.Equal(t, tt.patch, v.Patch)
			assert.Equal(t, tt.cursor, v.SupportsCursor())
		})
	}

	_, err := parseVersion("latest")
	assert.Error(t, err)
}

func TestAggregatePath(t *testing.T) {
	doc := map[string]any{
		"Article": []any{
			map[string]any{"meta": map[string]any{"count": float64(42)}},
		},
	}
	assert.Equal(t, float64(42), aggregatePath(doc, "Article", 0, "meta", "count"))
	assert.Nil(t, aggregatePath(doc, "Author", 0, "meta", "count"))
	assert.Nil(t, aggregatePath(doc, "Article", 1, "meta"))
	assert.Nil(t, aggregatePath(doc, "Article", "meta"))
	assert.Equal(t, doc, aggregatePath(doc))
}

func TestConvertObject(t *testing.T) {
	assert.Nil(t, convertObject(nil))

	obj := convertObject(&weaviatemodels.Object{
		ID:                 "7c1e2a5e-1111-4a3b-9c1d-0123456789ab",
		Class:              "Article",
		Properties:         map[string]interface{}{"title": "hello"},
		CreationTimeUnix:   10,
		LastUpdateTimeUnix: 20,
	})
	require.NotNil(t, obj)
	assert.Equal(t, "7c1e2a5e-1111-4a3b-9c1d-0123456789ab", obj.ID)
	assert.Equal(t, "Article", obj.Class)
	assert.Equal(t, "hello", obj.Properties["title"])
	assert.Equal(t, int64(10), obj.CreationTimeUnix)
	assert.Equal(t, int64(20), obj.LastUpdateTimeUnix)
}

func TestNewClient_Schemes(t *testing.T) {
	for _, url := range []string{"localhost:8080", "http://localhost:8080", "https://example.com/"} {
		c, err := NewClient(url)
		require.NoError(t, err)
		assert.Equal(t, url, c.url)
	}
}

func TestMockClient(t *testing.T) {
	ctx := context.Background()
	m := NewMockClient()
	m.AddClass(&models.WeaviateClass{Class: "Article"})
	m.AddClass(&models.WeaviateClass{Class: "Author"})
	for _, id := range []string{"c", "a", "b"} {
		m.AddObject(&models.WeaviateObject{ID: id, Class: "Article"})
	}
	m.AddObject(&models.WeaviateObject{ID: "z", Class: "Author"})

	classes, err := m.GetClasses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Article", "Author"}, classes)

	objs, err := m.GetObjects(ctx, "Article", 2)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "a", objs[0].ID)
	assert.Equal(t, "b", objs[1].ID)

	n, err := m.GetClassCount(ctx, "Article")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = m.GetClass(ctx, "Missing")
	assert.Error(t, err)

	m.Err = errors.New("down")
	_, err = m.GetObjects(ctx, "Article", 0)
	assert.EqualError(t, err, "down")
}
