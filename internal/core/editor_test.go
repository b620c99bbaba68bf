package core

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/kilupskalvis/vizedit/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePersister struct {
	mu       sync.Mutex
	nextID   int64
	payloads []*models.Visualization
	err      error
	// block, when set, holds SaveVisualization until it is closed.
	block   chan struct{}
	entered chan struct{}
}

func (p *fakePersister) SaveVisualization(_ context.Context, v *models.Visualization) (*models.Visualization, error) {
	if p.entered != nil {
		close(p.entered)
	}
	if p.block != nil {
		<-p.block
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, v.Clone())
	if p.err != nil {
		return nil, p.err
	}
	saved := v.Clone()
	if saved.ID == 0 {
		p.nextID++
		saved.ID = p.nextID
	}
	return saved, nil
}

func (p *fakePersister) last() *models.Visualization {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.payloads) == 0 {
		return nil
	}
	return p.payloads[len(p.payloads)-1]
}

type fakeNotifier struct {
	successes []string
	errors    []string
}

func (n *fakeNotifier) Success(msg string) { n.successes = append(n.successes, msg) }
func (n *fakeNotifier) Error(msg string)   { n.errors = append(n.errors, msg) }

type fakeAnalytics struct {
	events []models.Event
	err    error
}

func (a *fakeAnalytics) Record(_ context.Context, ev models.Event) error {
	a.events = append(a.events, ev)
	return a.err
}

type recordingConfirmer struct {
	decision Decision
	err      error
	asked    []string
	// block, when set, holds Confirm until it is closed.
	block   chan struct{}
	entered chan struct{}
}

func (c *recordingConfirmer) Confirm(_ context.Context, msg string) (Decision, error) {
	c.asked = append(c.asked, msg)
	if c.entered != nil {
		close(c.entered)
	}
	if c.block != nil {
		<-c.block
	}
	return c.decision, c.err
}

type testEnv struct {
	deps      Deps
	persister *fakePersister
	notifier  *fakeNotifier
	analytics *fakeAnalytics
	confirmer *recordingConfirmer
}

func newTestEnv() *testEnv {
	env := &testEnv{
		persister: &fakePersister{nextID: 100},
		notifier:  &fakeNotifier{},
		analytics: &fakeAnalytics{},
		confirmer: &recordingConfirmer{},
	}
	env.deps = Deps{
		Registry:  registry.Builtin(),
		Persister: env.persister,
		Notifier:  env.notifier,
		Analytics: env.analytics,
		Confirmer: env.confirmer,
	}
	return env
}

func testResult() *models.QueryResultData {
	return &models.QueryResultData{
		Columns: []models.Column{
			{Name: "city", Type: models.ColumnString},
			{Name: "sales", Type: models.ColumnInteger},
		},
		Rows: []models.Row{
			{"city": "Riga", "sales": int64(10)},
			{"city": "Tallinn", "sales": int64(20)},
			{"city": "Vilnius", "sales": int64(30)},
		},
	}
}

func openNew(t *testing.T, env *testEnv, q *models.Query) *Editor {
	t.Helper()
	ed, err := Open(context.Background(), env.deps, OpenRequest{Query: q, Result: testResult()})
	require.NoError(t, err)
	return ed
}

func openExisting(t *testing.T, env *testEnv, q *models.Query, v *models.Visualization) *Editor {
	t.Helper()
	ed, err := Open(context.Background(), env.deps, OpenRequest{Query: q, Visualization: v, Result: testResult()})
	require.NoError(t, err)
	return ed
}

func TestOpen_New(t *testing.T) {
	env := newTestEnv()
	ed := openNew(t, env, &models.Query{ID: 1})

	st := ed.State()
	assert.Equal(t, registry.TypeTable, st.Type)
	assert.Equal(t, "Table", st.Name)
	assert.False(t, st.NameChanged)
	assert.Equal(t, 25, st.Options["itemsPerPage"])
	assert.Equal(t, []string{"city", "sales"}, st.Options["columns"])
	assert.True(t, ed.IsNew())
	assert.True(t, ed.CanChangeType())
	assert.False(t, ed.IsDirty())

	b := ed.Baseline()
	assert.Equal(t, st.Type, b.Type)
	assert.Equal(t, st.Name, b.Name)
	assert.True(t, OptionsEqual(st.Options, b.Options))
}

func TestOpen_Existing(t *testing.T) {
	env := newTestEnv()
	v := &models.Visualization{
		ID:      7,
		Type:    registry.TypeChart,
		Name:    "Sales",
		Options: models.Options{"globalSeriesType": "line", "extra": true},
	}
	ed := openExisting(t, env, &models.Query{ID: 1, Visualizations: []*models.Visualization{v}}, v)

	st := ed.State()
	assert.Equal(t, registry.TypeChart, st.Type)
	assert.Equal(t, "Sales", st.Name)
	assert.Equal(t, "line", st.Options["globalSeriesType"])
	assert.Equal(t, "city", st.Options["xColumn"])
	assert.Equal(t, true, st.Options["extra"])
	assert.False(t, ed.IsNew())
	assert.False(t, ed.CanChangeType())
	assert.False(t, ed.IsDirty())
}

func TestOpen_UnknownTypeIsConfigurationError(t *testing.T) {
	env := newTestEnv()
	v := &models.Visualization{ID: 3, Type: "SANKEY", Name: "Flow"}

	_, err := Open(context.Background(), env.deps, OpenRequest{Query: &models.Query{ID: 1}, Visualization: v})
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "SANKEY", cfgErr.Type)
}

func TestOpen_RequiresRegistryAndQuery(t *testing.T) {
	_, err := Open(context.Background(), Deps{}, OpenRequest{Query: &models.Query{}})
	assert.Error(t, err)

	_, err = Open(context.Background(), Deps{Registry: registry.Builtin()}, OpenRequest{})
	assert.Error(t, err)
}

func TestOpen_DefaultFiltersApplied(t *testing.T) {
	env := newTestEnv()
	data := &models.QueryResultData{
		Columns: []models.Column{{Name: "city::filter"}, {Name: "n", Type: models.ColumnInteger}},
		Rows: []models.Row{
			{"city::filter": "Riga", "n": 1},
			{"city::filter": "Tallinn", "n": 2},
		},
		Filters: []models.FilterDescriptor{{Name: "city::filter", Values: []any{"Riga", "Tallinn"}}},
	}
	ed, err := Open(context.Background(), env.deps, OpenRequest{Query: &models.Query{ID: 1}, Result: data})
	require.NoError(t, err)

	preview := ed.PreviewData()
	require.Len(t, preview.Rows, 1)
	assert.Equal(t, "Riga", preview.Rows[0]["city::filter"])
	assert.Len(t, data.Rows, 2)
}

func TestChangeType_UpdatesDefaultName(t *testing.T) {
	env := newTestEnv()
	ed := openNew(t, env, &models.Query{ID: 1})

	require.NoError(t, ed.ChangeType(registry.TypeChart))

	st := ed.State()
	assert.Equal(t, registry.TypeChart, st.Type)
	assert.Equal(t, "Chart", st.Name)
	assert.Equal(t, "column", st.Options["globalSeriesType"])
	assert.Equal(t, []string{"sales"}, st.Options["yColumns"])
	assert.False(t, ed.IsDirty())
	assert.Equal(t, registry.TypeChart, ed.Baseline().Type)
}

func TestChangeType_KeepsEditedName(t *testing.T) {
	env := newTestEnv()
	ed := openNew(t, env, &models.Query{ID: 1})

	require.NoError(t, ed.ChangeName("Revenue"))
	require.NoError(t, ed.ChangeType(registry.TypeCounter))

	st := ed.State()
	assert.Equal(t, "Revenue", st.Name)
	assert.True(t, st.NameChanged)
}

func TestChangeType_NameChangedStaysSticky(t *testing.T) {
	env := newTestEnv()
	ed := openNew(t, env, &models.Query{ID: 1})

	require.NoError(t, ed.ChangeName("Revenue"))
	require.NoError(t, ed.ChangeName("Table"))
	require.NoError(t, ed.ChangeType(registry.TypeChart))

	st := ed.State()
	assert.Equal(t, "Table", st.Name)
	assert.True(t, st.NameChanged)
}

func TestChangeType_CarriesRawOptions(t *testing.T) {
	env := newTestEnv()
	ed := openNew(t, env, &models.Query{ID: 1})

	require.NoError(t, ed.ChangeOptions(models.Options{"rowNumber": "2", "itemsPerPage": 10}))
	require.NoError(t, ed.ChangeType(registry.TypeCounter))

	st := ed.State()
	assert.Equal(t, 2, st.Options["rowNumber"])
	assert.Equal(t, "sales", st.Options["counterColumn"])
}

func TestChangeType_LockedForExisting(t *testing.T) {
	env := newTestEnv()
	v := &models.Visualization{ID: 9, Type: registry.TypeTable, Name: "T"}
	ed := openExisting(t, env, &models.Query{ID: 1, Visualizations: []*models.Visualization{v}}, v)

	err := ed.ChangeType(registry.TypeChart)
	assert.ErrorIs(t, err, ErrTypeLocked)
	assert.Equal(t, registry.TypeTable, ed.State().Type)
}

func TestChangeType_Rejected(t *testing.T) {
	env := newTestEnv()
	ed := openNew(t, env, &models.Query{ID: 1})

	err := ed.ChangeType(registry.TypeBoxplot)
	assert.ErrorIs(t, err, ErrDeprecatedType)

	err = ed.ChangeType("NOPE")
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	assert.Equal(t, registry.TypeTable, ed.State().Type)
}

func TestOpen_ExistingDeprecatedTypeStaysEditable(t *testing.T) {
	env := newTestEnv()
	v := &models.Visualization{ID: 4, Type: registry.TypeBoxplot, Name: "Spread"}
	ed := openExisting(t, env, &models.Query{ID: 1, Visualizations: []*models.Visualization{v}}, v)

	require.NoError(t, ed.SetOption("xAxisLabel", "city"))
	assert.Equal(t, "city", ed.State().Options["xAxisLabel"])
}

func TestChangeName_Sticky(t *testing.T) {
	env := newTestEnv()
	ed := openNew(t, env, &models.Query{ID: 1})

	require.NoError(t, ed.ChangeName("Table"))
	assert.False(t, ed.State().NameChanged, "same value is not a change")
	assert.False(t, ed.IsDirty())

	require.NoError(t, ed.ChangeName("Other"))
	assert.True(t, ed.IsDirty())

	require.NoError(t, ed.ChangeName("Table"))
	assert.True(t, ed.State().NameChanged)
	assert.True(t, ed.IsDirty())
}

func TestChangeOptions_Normalizes(t *testing.T) {
	env := newTestEnv()
	ed := openNew(t, env, &models.Query{ID: 1})

	require.NoError(t, ed.ChangeOptions(models.Options{"itemsPerPage": "50"}))
	st := ed.State()
	assert.Equal(t, 50, st.Options["itemsPerPage"])
	assert.Equal(t, "default", st.Options["paginationSize"])
	assert.True(t, ed.IsDirty())

	require.NoError(t, ed.ChangeOptions(models.Options{"itemsPerPage": 25}))
	assert.False(t, ed.IsDirty())
}

func TestSetOption_KeepsOtherKeys(t *testing.T) {
	env := newTestEnv()
	ed := openNew(t, env, &models.Query{ID: 1})

	require.NoError(t, ed.SetOption("alignment", "right"))
	require.NoError(t, ed.SetOption("itemsPerPage", 5))

	st := ed.State()
	assert.Equal(t, "right", st.Options["alignment"])
	assert.Equal(t, 5, st.Options["itemsPerPage"])
}

func TestState_ReturnsCopy(t *testing.T) {
	env := newTestEnv()
	ed := openNew(t, env, &models.Query{ID: 1})

	st := ed.State()
	st.Options["itemsPerPage"] = 999
	assert.Equal(t, 25, ed.State().Options["itemsPerPage"])
}

func TestPreview_RendersFilteredRows(t *testing.T) {
	env := newTestEnv()
	ed := openNew(t, env, &models.Query{ID: 1})
	require.NoError(t, ed.SetFilters(models.FilterSet{"city": {"Tallinn"}}))

	var buf bytes.Buffer
	require.NoError(t, ed.Preview(&buf))
	assert.Contains(t, buf.String(), "Tallinn")
	assert.NotContains(t, buf.String(), "Vilnius")
	assert.NoError(t, ed.PreviewError())
}

func TestPreview_RenderErrorIsKeptUntilChange(t *testing.T) {
	env := newTestEnv()
	ed := openNew(t, env, &models.Query{ID: 1})
	require.NoError(t, ed.ChangeType(registry.TypeCounter))
	require.NoError(t, ed.SetOption("rowNumber", 10))

	var buf bytes.Buffer
	err := ed.Preview(&buf)
	require.Error(t, err)
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, registry.TypeCounter, renderErr.Type)
	assert.Empty(t, buf.String())

	assert.ErrorAs(t, ed.PreviewError(), &renderErr)
	st := ed.State()
	assert.Equal(t, 10, st.Options["rowNumber"])

	// Editing options clears the error.
	require.NoError(t, ed.SetOption("rowNumber", 1))
	assert.NoError(t, ed.PreviewError())

	require.NoError(t, ed.Preview(&buf))
	assert.Contains(t, buf.String(), "10")
}

func TestPreview_FilterChangeClearsError(t *testing.T) {
	env := newTestEnv()
	ed := openNew(t, env, &models.Query{ID: 1})
	require.NoError(t, ed.ChangeType(registry.TypeDetails))
	require.NoError(t, ed.SetOption("rowNumber", 2))
	require.NoError(t, ed.SetFilters(models.FilterSet{"city": {"Riga"}}))

	var buf bytes.Buffer
	require.Error(t, ed.Preview(&buf))

	require.NoError(t, ed.SetFilters(nil))
	assert.NoError(t, ed.PreviewError())
	require.NoError(t, ed.Preview(&buf))
	assert.Contains(t, buf.String(), "Tallinn")
}

func TestFilters_DoNotAffectDirtiness(t *testing.T) {
	env := newTestEnv()
	ed := openNew(t, env, &models.Query{ID: 1})

	require.NoError(t, ed.SetFilters(models.FilterSet{"city": {"Riga"}}))
	assert.False(t, ed.IsDirty())
	assert.Equal(t, models.FilterSet{"city": {"Riga"}}, ed.Filters())
}

func TestNormalizer_UnknownType(t *testing.T) {
	n := Normalizer{Registry: registry.Builtin()}
	_, err := n.Normalize("NOPE", nil, nil)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "NOPE")
}

func TestNormalizer_Idempotent(t *testing.T) {
	n := Normalizer{Registry: registry.Builtin()}
	data := testResult()
	raw := models.Options{"itemsPerPage": "7", "rowNumber": 2.0, "yColumns": []any{"sales", "sales"}, "x": "y"}

	for _, d := range n.Registry.List() {
		once, err := n.Normalize(d.Type(), raw, data)
		require.NoError(t, err)
		twice, err := n.Normalize(d.Type(), once, data)
		require.NoError(t, err)
		assert.True(t, OptionsEqual(once, twice), d.Type())
	}
}

func TestNormalizer_DoesNotModifyInput(t *testing.T) {
	n := Normalizer{Registry: registry.Builtin()}
	raw := models.Options{"itemsPerPage": "7"}

	_, err := n.Normalize(registry.TypeTable, raw, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Options{"itemsPerPage": "7"}, raw)
}
