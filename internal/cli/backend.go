package cli

import (
	"context"
	"errors"

	"github.com/kilupskalvis/vizedit/internal/core"
	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/kilupskalvis/vizedit/internal/remote"
	"github.com/kilupskalvis/vizedit/internal/store"
)

// backend is where queries, results and visualizations live. Both the local
// store and a vizedit-server remote satisfy it, and either serves as the
// editor's persister and analytics sink.
type backend interface {
	core.Persister
	core.Analytics

	ListQueries(ctx context.Context) ([]*models.Query, error)
	GetQuery(ctx context.Context, id int64) (*models.Query, error)
	CreateQuery(ctx context.Context, q *models.Query) (*models.Query, error)
	DeleteQuery(ctx context.Context, id int64) error

	GetResult(ctx context.Context, queryID int64) (*models.QueryResultData, error)
	SaveResult(ctx context.Context, queryID int64, data *models.QueryResultData) error

	GetVisualization(ctx context.Context, id int64) (*models.Visualization, error)
	DeleteVisualization(ctx context.Context, id int64) error

	ListEvents(ctx context.Context, limit int) ([]*models.Event, error)
}

var (
	_ backend = localBackend{}
	_ backend = (*remote.RetryClient)(nil)
	_ backend = (*remote.HTTPClient)(nil)
)

// localBackend adapts the bbolt store to backend.
type localBackend struct {
	st *store.Store
}

func (b localBackend) ListQueries(context.Context) ([]*models.Query, error) {
	return b.st.ListQueries()
}

func (b localBackend) GetQuery(_ context.Context, id int64) (*models.Query, error) {
	return b.st.GetQuery(id)
}

func (b localBackend) CreateQuery(_ context.Context, q *models.Query) (*models.Query, error) {
	return b.st.CreateQuery(q)
}

func (b localBackend) DeleteQuery(_ context.Context, id int64) error {
	return b.st.DeleteQuery(id)
}

func (b localBackend) GetResult(_ context.Context, queryID int64) (*models.QueryResultData, error) {
	return b.st.GetResult(queryID)
}

func (b localBackend) SaveResult(_ context.Context, queryID int64, data *models.QueryResultData) error {
	return b.st.SaveResult(queryID, data)
}

func (b localBackend) GetVisualization(_ context.Context, id int64) (*models.Visualization, error) {
	return b.st.GetVisualization(id)
}

func (b localBackend) SaveVisualization(ctx context.Context, v *models.Visualization) (*models.Visualization, error) {
	return b.st.SaveVisualization(ctx, v)
}

func (b localBackend) DeleteVisualization(_ context.Context, id int64) error {
	return b.st.DeleteVisualization(id)
}

func (b localBackend) Record(ctx context.Context, ev models.Event) error {
	return b.st.Record(ctx, ev)
}

func (b localBackend) ListEvents(_ context.Context, limit int) ([]*models.Event, error) {
	return b.st.ListEvents(limit)
}

// isNotFound reports a missing record from either backend.
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound) || remote.IsNotFound(err)
}
