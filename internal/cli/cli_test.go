package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/kilupskalvis/vizedit/internal/core"
	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/kilupskalvis/vizedit/internal/registry"
	"github.com/kilupskalvis/vizedit/internal/remote"
	"github.com/kilupskalvis/vizedit/internal/source"
	"github.com/kilupskalvis/vizedit/internal/store"
	"github.com/kilupskalvis/vizedit/internal/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func init() {
	color.NoColor = true
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "vizedit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func salesResult() *models.QueryResultData {
	return &models.QueryResultData{
		Columns: []models.Column{
			{Name: "region::filter", Type: models.ColumnString},
			{Name: "amount", Type: models.ColumnInteger},
		},
		Rows: []models.Row{
			{"region::filter": "north", "amount": 10},
			{"region::filter": "south", "amount": 20},
			{"region::filter": "north", "amount": 5},
		},
		Filters: []models.FilterDescriptor{
			{Name: "region::filter", FriendlyName: "region", Values: []any{"north", "south"}},
		},
	}
}

// scriptedPrompter answers prompts from a queue, one answer per call.
// Once the queue is empty it fails with err, or ErrInterrupted.
type scriptedPrompter struct {
	answers []string
	asked   []string
	err     error
}

func (p *scriptedPrompter) next(message string) (string, error) {
	p.asked = append(p.asked, message)
	if len(p.answers) == 0 {
		if p.err != nil {
			return "", p.err
		}
		return "", ui.ErrInterrupted
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func (p *scriptedPrompter) Confirm(message string, _ bool) (bool, error) {
	a, err := p.next(message)
	return a == "yes", err
}

func (p *scriptedPrompter) Select(message string, _ []string, _ string) (string, error) {
	return p.next(message)
}

func (p *scriptedPrompter) Input(message, _ string) (string, error) {
	return p.next(message)
}

type session struct {
	st    *store.Store
	query *models.Query
	data  *models.QueryResultData
	reg   *registry.Catalog
}

func newSession(t *testing.T) *session {
	t.Helper()
	st := newTestStore(t)
	q, err := st.CreateQuery(&models.Query{Name: "sales", Source: models.QuerySource{Kind: models.SourceJSON, Path: "sales.json"}})
	require.NoError(t, err)
	return &session{st: st, query: q, data: salesResult(), reg: registry.Builtin()}
}

func (s *session) open(t *testing.T, confirmer core.Confirmer, existing *models.Visualization) *core.Editor {
	t.Helper()
	b := localBackend{st: s.st}
	ed, err := core.Open(context.Background(), core.Deps{
		Registry:  s.reg,
		Persister: b,
		Analytics: b,
		Confirmer: confirmer,
	}, core.OpenRequest{Query: s.query, Visualization: existing, Result: s.data})
	require.NoError(t, err)
	return ed
}

func TestSourceFromFlags(t *testing.T) {
	src, err := sourceFromFlags("shop.db", "SELECT 1", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.QuerySource{Kind: models.SourceSQLite, Database: "shop.db", SQL: "SELECT 1"}, src)

	src, err = sourceFromFlags("", "", "Article", "")
	require.NoError(t, err)
	assert.Equal(t, models.SourceWeaviate, src.Kind)
	assert.Equal(t, "Article", src.Class)

	src, err = sourceFromFlags("", "", "", "result.json")
	require.NoError(t, err)
	assert.Equal(t, models.SourceJSON, src.Kind)

	_, err = sourceFromFlags("shop.db", "", "", "")
	assert.ErrorContains(t, err, "--sqlite needs --sql")

	_, err = sourceFromFlags("", "", "", "")
	assert.ErrorContains(t, err, "is required")
}

func TestParseSet(t *testing.T) {
	d, _ := registry.Builtin().Lookup(registry.TypeChart)
	spec := d.Editor()

	tests := []struct {
		arg     string
		key     string
		want    any
		wantErr string
	}{
		{arg: "globalSeriesType=line", key: "globalSeriesType", want: "line"},
		{arg: "legend=false", key: "legend", want: false},
		{arg: "yColumns=a, b,,c", key: "yColumns", want: []string{"a", "b", "c"}},
		{arg: "custom=1", key: "custom", want: "1"},
		{arg: "globalSeriesType=radar", wantErr: "not one of"},
		{arg: "legend=maybe", wantErr: "not true or false"},
		{arg: "novalue", wantErr: "want key=value"},
		{arg: "=x", wantErr: "want key=value"},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			key, v, err := parseSet(spec, tt.arg)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestParseOptionValue_Int(t *testing.T) {
	v, err := parseOptionValue(registry.OptionField{Key: "itemsPerPage", Kind: registry.KindInt}, " 50 ")
	require.NoError(t, err)
	assert.Equal(t, 50, v)

	_, err = parseOptionValue(registry.OptionField{Key: "itemsPerPage", Kind: registry.KindInt}, "many")
	assert.ErrorContains(t, err, "not an integer")
}

func TestParseFilters(t *testing.T) {
	filters := []models.FilterDescriptor{
		{Name: "region::filter", FriendlyName: "region", Values: []any{"north", "south"}},
		{Name: "year::multi-filter", FriendlyName: "year", Multiple: true, Values: []any{float64(2023), float64(2024)}},
	}
	current := models.FilterSet{"region::filter": {"north"}}

	fs, err := parseFilters(current, filters, []string{"region=south", "year::multi-filter=2023,2024"})
	require.NoError(t, err)
	assert.Equal(t, []any{"south"}, fs["region::filter"])
	assert.Equal(t, []any{float64(2023), float64(2024)}, fs["year::multi-filter"])
	assert.Equal(t, []any{"north"}, current["region::filter"], "input selection is not modified")

	fs, err = parseFilters(current, filters, []string{"year="})
	require.NoError(t, err)
	assert.Empty(t, fs["year::multi-filter"])

	_, err = parseFilters(current, filters, []string{"region=north,south"})
	assert.ErrorContains(t, err, "single value")

	_, err = parseFilters(current, filters, []string{"region=east"})
	assert.ErrorContains(t, err, `no value "east"`)

	_, err = parseFilters(current, filters, []string{"country=fi"})
	assert.ErrorContains(t, err, "no filter")

	_, err = parseFilters(current, filters, []string{"region"})
	assert.ErrorContains(t, err, "want column=value")
}

func TestRunEditSession_SaveNew(t *testing.T) {
	s := newSession(t)
	ed := s.open(t, nil, nil)
	var out bytes.Buffer

	saved, err := runEditSession(context.Background(), ed, s.reg, s.data, editFlags{
		Type:    registry.TypeChart,
		Sets:    []string{"globalSeriesType=line"},
		Filters: []string{"region=south"},
		Preview: true,
		Save:    true,
	}, nil, &out)
	require.NoError(t, err)
	require.NotNil(t, saved)

	assert.Equal(t, registry.TypeChart, saved.Type)
	assert.Equal(t, "Chart", saved.Name)
	assert.Equal(t, "line", saved.Options["globalSeriesType"])
	assert.Contains(t, out.String(), "south")
	assert.NotContains(t, out.String(), "north")
	require.Len(t, s.query.Visualizations, 1)

	q, err := s.st.GetQuery(s.query.ID)
	require.NoError(t, err)
	require.Len(t, q.Visualizations, 1)
	assert.Equal(t, saved.ID, q.Visualizations[0].ID)

	events, err := s.st.ListEvents(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.ActionCreate, events[0].Action)
}

func TestRunEditSession_UpdateExisting(t *testing.T) {
	s := newSession(t)
	first, err := runEditSession(context.Background(), s.open(t, nil, nil), s.reg, s.data, editFlags{Save: true}, nil, &bytes.Buffer{})
	require.NoError(t, err)

	ed := s.open(t, nil, first)
	saved, err := runEditSession(context.Background(), ed, s.reg, s.data, editFlags{
		Name:    "Sales table",
		NameSet: true,
		Sets:    []string{"itemsPerPage=10"},
		Save:    true,
	}, nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, saved.ID)
	assert.Equal(t, "Sales table", saved.Name)
	assert.EqualValues(t, 10, saved.Options["itemsPerPage"])
	assert.NotContains(t, saved.Options, registry.PaginationSizeOption)
	assert.Len(t, s.query.Visualizations, 1)
}

func TestRunEditSession_TypeLocked(t *testing.T) {
	s := newSession(t)
	first, err := runEditSession(context.Background(), s.open(t, nil, nil), s.reg, s.data, editFlags{Save: true}, nil, &bytes.Buffer{})
	require.NoError(t, err)

	_, err = runEditSession(context.Background(), s.open(t, nil, first), s.reg, s.data, editFlags{Type: registry.TypeChart, Save: true}, nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, core.ErrTypeLocked)
}

func TestRunEditSession_CleanDismiss(t *testing.T) {
	s := newSession(t)
	var out bytes.Buffer

	saved, err := runEditSession(context.Background(), s.open(t, nil, nil), s.reg, s.data, editFlags{}, nil, &out)
	require.NoError(t, err)
	assert.Nil(t, saved)
	assert.Contains(t, out.String(), "No changes saved")
	assert.Empty(t, s.query.Visualizations)
}

func TestRunEditSession_DirtyDismissConfirmed(t *testing.T) {
	s := newSession(t)
	ed := s.open(t, core.AlwaysConfirm, nil)

	saved, err := runEditSession(context.Background(), ed, s.reg, s.data, editFlags{Name: "Draft", NameSet: true, Discard: true}, nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Nil(t, saved)
	assert.True(t, ed.Closed())
	assert.Empty(t, s.query.Visualizations)
}

func TestRunEditSession_DeclinedDismissOffersSave(t *testing.T) {
	s := newSession(t)
	p := &scriptedPrompter{answers: []string{"no", "yes"}}
	ed := s.open(t, ui.Confirmer{Prompter: p}, nil)

	saved, err := runEditSession(context.Background(), ed, s.reg, s.data, editFlags{Name: "Draft", NameSet: true}, p, &bytes.Buffer{})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "Draft", saved.Name)
	assert.Len(t, p.asked, 2)
}

func TestRunEditSession_SaveOfferWithoutTerminal(t *testing.T) {
	s := newSession(t)
	p := &scriptedPrompter{answers: []string{"no"}, err: errors.New("could not open a new TTY")}
	ed := s.open(t, ui.Confirmer{Prompter: p}, nil)

	saved, err := runEditSession(context.Background(), ed, s.reg, s.data, editFlags{Name: "Draft", NameSet: true}, p, &bytes.Buffer{})
	assert.Nil(t, saved)
	assert.EqualError(t, err, "unsaved changes kept; pass --save to store them or --yes to discard")
	assert.Len(t, p.asked, 2)
	assert.False(t, ed.Closed())
	assert.Empty(t, s.query.Visualizations)
}

func TestRunEditSession_DeclinedDismissWithoutPrompter(t *testing.T) {
	s := newSession(t)
	declined := core.ConfirmFunc(func(context.Context, string) (core.Decision, error) {
		return core.DecisionDeclined, nil
	})
	ed := s.open(t, declined, nil)

	_, err := runEditSession(context.Background(), ed, s.reg, s.data, editFlags{Name: "Draft", NameSet: true}, nil, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unsaved changes kept")
	assert.False(t, ed.Closed())
}

func TestRunEditSession_BadFlag(t *testing.T) {
	s := newSession(t)
	_, err := runEditSession(context.Background(), s.open(t, nil, nil), s.reg, s.data, editFlags{Sets: []string{"alignment=center"}, Save: true}, nil, &bytes.Buffer{})
	assert.ErrorContains(t, err, "not one of")
	assert.Empty(t, s.query.Visualizations)
}

func TestRunInteractive(t *testing.T) {
	s := newSession(t)
	p := &scriptedPrompter{answers: []string{
		actionType, registry.TypeCounter,
		actionRename, "Total",
		actionOption, "stringPrefix = ", "$",
		actionFilter, "region", "north",
		actionPreview,
		actionSave,
	}}
	ed := s.open(t, ui.Confirmer{Prompter: p}, nil)
	var out bytes.Buffer

	saved, err := runEditSession(context.Background(), ed, s.reg, s.data, editFlags{Interactive: true}, p, &out)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, registry.TypeCounter, saved.Type)
	assert.Equal(t, "Total", saved.Name)
	assert.Equal(t, "$", saved.Options["stringPrefix"])
	assert.Equal(t, models.FilterSet{"region::filter": {"north"}}, ed.Filters())
	assert.Empty(t, p.answers)
}

func TestRunInteractive_InterruptDismisses(t *testing.T) {
	s := newSession(t)
	p := &scriptedPrompter{}

	saved, err := runEditSession(context.Background(), s.open(t, nil, nil), s.reg, s.data, editFlags{Interactive: true}, p, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestRunInteractive_NeedsPrompter(t *testing.T) {
	s := newSession(t)
	_, err := runEditSession(context.Background(), s.open(t, nil, nil), s.reg, s.data, editFlags{Interactive: true}, nil, &bytes.Buffer{})
	assert.ErrorContains(t, err, "needs a terminal")
}

func TestOpenBackend(t *testing.T) {
	st := newTestStore(t)
	t.Setenv("VIZEDIT_REMOTE_TOKEN", "")
	t.Setenv("VIZEDIT_REMOTE_TOKEN_ORIGIN", "")

	b, err := openBackend(st, "")
	require.NoError(t, err)
	assert.IsType(t, localBackend{}, b)

	b, err = openBackend(st, core.LocalRemote)
	require.NoError(t, err)
	assert.IsType(t, localBackend{}, b)

	_, err = openBackend(st, "origin")
	assert.ErrorContains(t, err, "does not exist")

	require.NoError(t, core.AddRemote(st, "origin", "http://localhost:8720"))
	require.NoError(t, core.SetRemoteToken(st, "origin", "vzt_x"))
	b, err = openBackend(st, "origin")
	require.NoError(t, err)
	assert.IsType(t, &remote.RetryClient{}, b)
}

func TestRefreshResult(t *testing.T) {
	s := newSession(t)
	b := localBackend{st: s.st}
	fetcher := source.NewMux()
	fetcher.Handle(models.SourceJSON, source.AccessorFunc(func(_ context.Context, src models.QuerySource) (*models.QueryResultData, error) {
		assert.Equal(t, "sales.json", src.Path)
		return salesResult(), nil
	}))

	data, err := refreshResult(context.Background(), b, fetcher, s.query)
	require.NoError(t, err)
	assert.Len(t, data.Rows, 3)

	cached, err := b.GetResult(context.Background(), s.query.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Len(t, cached.Rows, 3)
	assert.False(t, cached.RetrievedAt.IsZero())
}

func TestRefreshResult_FetchError(t *testing.T) {
	s := newSession(t)
	boom := errors.New("boom")
	fetcher := source.AccessorFunc(func(context.Context, models.QuerySource) (*models.QueryResultData, error) {
		return nil, boom
	})

	_, err := refreshResult(context.Background(), localBackend{st: s.st}, fetcher, s.query)
	assert.ErrorIs(t, err, boom)
}

func TestRefreshAll(t *testing.T) {
	s := newSession(t)
	b := localBackend{st: s.st}
	second, err := s.st.CreateQuery(&models.Query{Name: "more", Source: models.QuerySource{Kind: models.SourceJSON, Path: "more.json"}})
	require.NoError(t, err)

	fetcher := source.AccessorFunc(func(context.Context, models.QuerySource) (*models.QueryResultData, error) {
		return salesResult(), nil
	})

	total, err := refreshAll(context.Background(), b, fetcher, []*models.Query{s.query, second})
	require.NoError(t, err)
	assert.Equal(t, 6, total)

	for _, id := range []int64{s.query.ID, second.ID} {
		cached, err := b.GetResult(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, cached, "query %d", id)
		assert.Len(t, cached.Rows, 3)
	}
}

func TestRefreshAll_StopsOnError(t *testing.T) {
	s := newSession(t)
	boom := errors.New("boom")
	fetcher := source.AccessorFunc(func(context.Context, models.QuerySource) (*models.QueryResultData, error) {
		return nil, boom
	})

	_, err := refreshAll(context.Background(), localBackend{st: s.st}, fetcher, []*models.Query{s.query})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "refresh query")
}

func TestIsNotFound(t *testing.T) {
	s := newSession(t)
	err := localBackend{st: s.st}.DeleteVisualization(context.Background(), 99)
	assert.True(t, isNotFound(err))
	assert.True(t, isNotFound(&remote.RemoteError{Status: 404}))
	assert.False(t, isNotFound(errors.New("other")))
}

func TestWriteVisualization(t *testing.T) {
	v := &models.Visualization{ID: 3, Type: "TABLE", Name: "Table", QueryID: 1, Options: models.Options{"itemsPerPage": 25}}

	var buf bytes.Buffer
	require.NoError(t, writeVisualization(&buf, v, "yaml"))
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, "TABLE", fromYAML["type"])
	assert.Equal(t, 3, fromYAML["id"])

	buf.Reset()
	require.NoError(t, writeVisualization(&buf, v, "json"))
	var fromJSON models.Visualization
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, "Table", fromJSON.Name)

	assert.ErrorContains(t, writeVisualization(&buf, v, "xml"), "unknown output format")
}

func TestPrintTypes(t *testing.T) {
	var buf bytes.Buffer
	printTypes(&buf, registry.Builtin())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "BOXPLOT")
	assert.Contains(t, lines[0], "[deprecated]")
	assert.Contains(t, buf.String(), "Table (default)")
}

func TestPrintRemotes(t *testing.T) {
	color.NoColor = true
	remotes := []*models.Remote{
		{Name: "origin", URL: "https://viz.example.com", LastSeen: &models.RemoteStats{Queries: 2, Visualizations: 7}},
		{Name: "backup", URL: "http://localhost:8720"},
	}

	var buf bytes.Buffer
	printRemoteNames(&buf, remotes, "origin")
	assert.Equal(t, "  local\n* origin\n  backup\n", buf.String())

	buf.Reset()
	printRemotes(&buf, remotes, "", map[string]core.TokenSource{"origin": core.TokenStored})
	out := buf.String()
	assert.Contains(t, out, "https://viz.example.com")
	assert.Contains(t, out, "2 queries, 7 visualizations")
	assert.Contains(t, out, "stored")
	assert.Contains(t, out, "missing")
	assert.Contains(t, out, "never")
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, salesResult(), 2)
	out := buf.String()
	assert.Contains(t, out, "region::filter")
	assert.Contains(t, out, "1 more rows")

	buf.Reset()
	data := salesResult()
	data.Truncated = true
	printResult(&buf, data, 10)
	assert.Contains(t, buf.String(), "source has more rows than were read")

	buf.Reset()
	printResult(&buf, nil, 10)
	assert.Equal(t, "(not run yet)\n", buf.String())
}

func TestResultSummary(t *testing.T) {
	data := &models.QueryResultData{
		Columns: []models.Column{{Name: "a"}, {Name: "b"}},
		Rows:    []models.Row{{"a": 1}},
	}
	assert.Equal(t, "1 rows, 2 columns", resultSummary(data))
	data.Truncated = true
	assert.Equal(t, "1 rows, 2 columns (truncated)", resultSummary(data))
}

func TestReadToken(t *testing.T) {
	tok, err := readToken(strings.NewReader("  vzt_abc \n"))
	require.NoError(t, err)
	assert.Equal(t, "vzt_abc", tok)

	tok, err = readToken(strings.NewReader("vzt_piped"))
	require.NoError(t, err)
	assert.Equal(t, "vzt_piped", tok)
}
