// Package weaviate provides a read-only client wrapper for Weaviate classes
// used as visualization result sources. It handles schema lookups and object
// paging across Weaviate server versions.
package weaviate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	weaviatemodels "github.com/weaviate/weaviate/entities/models"
)

// pageSize is the number of objects requested per page.
const pageSize = 100

// ServerVersion is a parsed Weaviate release number.
type ServerVersion struct {
	Version             string
	Major, Minor, Patch int
}

var versionPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)`)

func parseVersion(version string) (*ServerVersion, error) {
	m := versionPattern.FindStringSubmatch(version)
	if m == nil {
		return nil, fmt.Errorf("unrecognised weaviate version %q", version)
	}
	v := &ServerVersion{Version: version}
	for i, dst := range []*int{&v.Major, &v.Minor, &v.Patch} {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return nil, fmt.Errorf("unrecognised weaviate version %q: %w", version, err)
		}
		*dst = n
	}
	return v, nil
}

// SupportsCursor reports whether the server pages with an after-cursor (1.18+).
func (v *ServerVersion) SupportsCursor() bool {
	return v.Major > 1 || (v.Major == 1 && v.Minor >= 18)
}

// Client wraps the Weaviate client for result fetching.
type Client struct {
	client *weaviate.Client
	url    string

	cursorOnce sync.Once
	useCursor  bool
}

// NewClient creates a new Weaviate client for a URL such as
// "http://localhost:8080". A bare host defaults to http.
func NewClient(url string) (*Client, error) {
	cfg := weaviate.Config{
		Host:   url,
		Scheme: "http",
	}
	if host, ok := strings.CutPrefix(url, "https://"); ok {
		cfg.Host, cfg.Scheme = host, "https"
	} else if host, ok := strings.CutPrefix(url, "http://"); ok {
		cfg.Host = host
	}
	cfg.Host = strings.TrimSuffix(cfg.Host, "/")

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	return &Client{
		client: client,
		url:    url,
	}, nil
}

// Ping checks that the server answers its liveness probe.
func (c *Client) Ping(ctx context.Context) error {
	live, err := c.client.Misc().LiveChecker().Do(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("reach weaviate at %s: %w", c.url, err)
	case !live:
		return fmt.Errorf("weaviate at %s is not live", c.url)
	}
	return nil
}

// GetServerVersion asks the server for its release number.
func (c *Client) GetServerVersion(ctx context.Context) (*ServerVersion, error) {
	meta, err := c.client.Misc().MetaGetter().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("read weaviate meta: %w", err)
	}
	return parseVersion(meta.Version)
}

// GetClasses returns the class names in the schema, sorted.
func (c *Client) GetClasses(ctx context.Context) ([]string, error) {
	schema, err := c.client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("read weaviate schema: %w", err)
	}
	names := make([]string, 0, len(schema.Classes))
	for _, class := range schema.Classes {
		names = append(names, class.Class)
	}
	sort.Strings(names)
	return names, nil
}

// GetClass returns the definition of one class.
func (c *Client) GetClass(ctx context.Context, className string) (*models.WeaviateClass, error) {
	class, err := c.client.Schema().ClassGetter().WithClassName(className).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("read class %s: %w", className, err)
	}

	wc := &models.WeaviateClass{
		Class:       class.Class,
		Description: class.Description,
		Properties:  make([]*models.WeaviateProperty, 0, len(class.Properties)),
	}
	for _, prop := range class.Properties {
		wc.Properties = append(wc.Properties, &models.WeaviateProperty{
			Name:        prop.Name,
			DataType:    prop.DataType,
			Description: prop.Description,
		})
	}
	return wc, nil
}

// GetClassCount returns the number of objects in a class from an
// Aggregate { <class> { meta { count } } } query.
func (c *Client) GetClassCount(ctx context.Context, className string) (int, error) {
	result, err := c.client.GraphQL().Aggregate().
		WithClassName(className).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("count objects in %s: %w", className, err)
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("count objects in %s: %s", className, result.Errors[0].Message)
	}

	count, ok := aggregatePath(result.Data["Aggregate"], className, 0, "meta", "count").(float64)
	if !ok {
		// Empty classes aggregate to nothing.
		return 0, nil
	}
	return int(count), nil
}

// aggregatePath walks decoded GraphQL JSON. String steps index objects and
// int steps index arrays; a missing step yields nil.
func aggregatePath(v any, path ...any) any {
	for _, step := range path {
		switch k := step.(type) {
		case string:
			m, ok := v.(map[string]any)
			if !ok {
				return nil
			}
			v = m[k]
		case int:
			a, ok := v.([]any)
			if !ok || k >= len(a) {
				return nil
			}
			v = a[k]
		}
	}
	return v
}

// GetObjects fetches up to limit objects of a class (all when limit <= 0).
// Servers that support it are paged with an after-cursor, older ones by offset.
func (c *Client) GetObjects(ctx context.Context, className string, limit int) ([]*models.WeaviateObject, error) {
	c.cursorOnce.Do(func() {
		if v, err := c.GetServerVersion(ctx); err == nil {
			c.useCursor = v.SupportsCursor()
		}
	})

	var out []*models.WeaviateObject
	offset := 0
	after := ""

	for {
		n := pageSize
		if limit > 0 && limit-len(out) < n {
			n = limit - len(out)
		}

		getter := c.client.Data().ObjectsGetter().
			WithClassName(className).
			WithLimit(n)
		if c.useCursor {
			if after != "" {
				getter = getter.WithAfter(after)
			}
		} else {
			getter = getter.WithOffset(offset)
		}

		objs, err := getter.Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("page objects of %s: %w", className, err)
		}

		for _, obj := range objs {
			if o := convertObject(obj); o != nil {
				out = append(out, o)
			}
		}

		if len(objs) < n || (limit > 0 && len(out) >= limit) {
			break
		}
		after = objs[len(objs)-1].ID.String()
		offset += len(objs)
	}

	return out, nil
}

func convertObject(obj *weaviatemodels.Object) *models.WeaviateObject {
	if obj == nil {
		return nil
	}
	props, _ := obj.Properties.(map[string]any)
	return &models.WeaviateObject{
		ID:                 obj.ID.String(),
		Class:              obj.Class,
		Properties:         props,
		CreationTimeUnix:   obj.CreationTimeUnix,
		LastUpdateTimeUnix: obj.LastUpdateTimeUnix,
	}
}
