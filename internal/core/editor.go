package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/kilupskalvis/vizedit/internal/registry"
)

// EditState is the in-progress edit of a visualization.
// Options always hold the current type's normalized output.
type EditState struct {
	Type        string
	Name        string
	Options     models.Options
	NameChanged bool
}

// Snapshot is the baseline an edit is compared against.
type Snapshot struct {
	Type    string
	Name    string
	Options models.Options
}

// Deps are the collaborators an editor session calls into.
// Registry is required; Persister is required to save.
type Deps struct {
	Registry  registry.Registry
	Persister Persister
	Notifier  Notifier
	Analytics Analytics
	Confirmer Confirmer
	Logger    *slog.Logger
}

// OpenRequest selects what to edit. A nil Visualization creates a new one.
type OpenRequest struct {
	Query         *models.Query
	Visualization *models.Visualization
	Result        *models.QueryResultData
}

// Editor is one visualization editing session.
type Editor struct {
	mu sync.Mutex

	deps       Deps
	normalizer Normalizer
	log        *slog.Logger

	query    *models.Query
	existing *models.Visualization
	data     *models.QueryResultData

	state      EditState
	baseline   Snapshot
	rawOptions models.Options
	filters    models.FilterSet
	previewErr error

	inFlight bool
	closed   bool
}

// Open starts an editing session. Existing visualizations seed the state from
// their stored type, name and options; new ones start from the registry's
// default type.
func Open(ctx context.Context, deps Deps, req OpenRequest) (*Editor, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("open editor: registry is required")
	}
	if req.Query == nil {
		return nil, fmt.Errorf("open editor: query is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Analytics == nil {
		deps.Analytics = nopAnalytics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	e := &Editor{
		deps:       deps,
		normalizer: Normalizer{Registry: deps.Registry},
		log:        deps.Logger.With("query_id", req.Query.ID),
		query:      req.Query,
		data:       req.Result,
	}
	if req.Result != nil {
		e.filters = NewFilterSet(req.Result.Filters)
	}

	if req.Visualization != nil {
		v := req.Visualization
		opts, err := e.normalizer.Normalize(v.Type, v.Options, e.data)
		if err != nil {
			return nil, err
		}
		e.existing = v.Clone()
		e.rawOptions = v.Options.Clone()
		e.state = EditState{Type: v.Type, Name: v.Name, Options: opts}
	} else {
		d := deps.Registry.Default()
		if d == nil {
			return nil, &ConfigurationError{}
		}
		opts, err := e.normalizer.Normalize(d.Type(), models.Options{}, e.data)
		if err != nil {
			return nil, err
		}
		e.rawOptions = models.Options{}
		e.state = EditState{Type: d.Type(), Name: d.Name(), Options: opts}
	}
	e.captureBaseline()

	e.log.DebugContext(ctx, "editor opened", "type", e.state.Type, "new", e.existing == nil)
	return e, nil
}

func (e *Editor) captureBaseline() {
	e.baseline = Snapshot{
		Type:    e.state.Type,
		Name:    e.state.Name,
		Options: e.state.Options.Clone(),
	}
}

// checkOpen reports whether the session accepts transitions. Callers hold mu.
func (e *Editor) checkOpen() error {
	if e.closed {
		return ErrSessionClosed
	}
	if e.inFlight {
		return ErrSaveInProgress
	}
	return nil
}

// State returns a copy of the current edit state.
func (e *Editor) State() EditState {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state
	s.Options = s.Options.Clone()
	return s
}

// Baseline returns a copy of the snapshot used for dirty checks.
func (e *Editor) Baseline() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := e.baseline
	b.Options = b.Options.Clone()
	return b
}

// Query returns a shallow copy of the query the session edits a
// visualization of. After a successful save it carries the upserted list.
func (e *Editor) Query() *models.Query {
	e.mu.Lock()
	defer e.mu.Unlock()
	q := *e.query
	return &q
}

// IsNew reports whether the session creates a new visualization.
func (e *Editor) IsNew() bool {
	return e.existing == nil
}

// CanChangeType reports whether ChangeType is allowed.
func (e *Editor) CanChangeType() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.existing == nil && !e.closed
}

// Closed reports whether the session ended by save or dismiss.
func (e *Editor) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// IsDirty reports whether the edit differs from its baseline.
func (e *Editor) IsDirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return IsDirty(e.state, e.baseline)
}

// ChangeType switches a new visualization to typ. The name follows the type's
// default until the user edits it, and the last raw options are carried
// through the new type's normalizer.
func (e *Editor) ChangeType(typ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return err
	}
	if e.existing != nil {
		return ErrTypeLocked
	}
	d, ok := e.deps.Registry.Lookup(typ)
	if !ok {
		return &ConfigurationError{Type: typ}
	}
	if d.Deprecated() {
		return fmt.Errorf("%s: %w", typ, ErrDeprecatedType)
	}
	opts, err := e.normalizer.Normalize(typ, e.rawOptions, e.data)
	if err != nil {
		return err
	}

	prev := e.state.Type
	e.state.Type = typ
	if !e.state.NameChanged {
		e.state.Name = d.Name()
	}
	e.state.Options = opts
	e.previewErr = nil
	e.captureBaseline()

	e.log.Debug("type changed", "from", prev, "to", typ)
	return nil
}

// ChangeName sets the visualization name. Any edit that alters the value
// marks the name as changed for the rest of the session.
func (e *Editor) ChangeName(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return err
	}
	if name != e.state.Name {
		e.state.NameChanged = true
	}
	e.state.Name = name
	return nil
}

// ChangeOptions replaces the options with the normalized form of raw.
func (e *Editor) ChangeOptions(raw models.Options) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return err
	}
	return e.applyOptions(raw)
}

// SetOption changes a single option key, keeping the others.
func (e *Editor) SetOption(key string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return err
	}
	raw := e.state.Options.Clone()
	raw[key] = value
	return e.applyOptions(raw)
}

func (e *Editor) applyOptions(raw models.Options) error {
	opts, err := e.normalizer.Normalize(e.state.Type, raw, e.data)
	if err != nil {
		return err
	}
	e.rawOptions = raw.Clone()
	e.state.Options = opts
	e.previewErr = nil
	return nil
}

// SetFilters replaces the preview filter selection.
func (e *Editor) SetFilters(fs models.FilterSet) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkOpen(); err != nil {
		return err
	}
	e.filters = make(models.FilterSet, len(fs))
	for k, v := range fs {
		e.filters[k] = append([]any(nil), v...)
	}
	e.previewErr = nil
	return nil
}

// Filters returns the current preview filter selection.
func (e *Editor) Filters() models.FilterSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(models.FilterSet, len(e.filters))
	for k, v := range e.filters {
		out[k] = append([]any(nil), v...)
	}
	return out
}

// PreviewData returns the result snapshot with the filters applied.
func (e *Editor) PreviewData() *models.QueryResultData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return FilterData(e.data, e.filters)
}

// Preview renders the current state over the filtered rows into w. A render
// failure is returned as a *RenderError and kept until the options, type,
// filters or data change.
func (e *Editor) Preview(w io.Writer) error {
	e.mu.Lock()
	typ := e.state.Type
	opts := e.state.Options.Clone()
	data := FilterData(e.data, e.filters)
	e.mu.Unlock()

	d, ok := e.deps.Registry.Lookup(typ)
	if !ok {
		return &ConfigurationError{Type: typ}
	}
	if data == nil {
		data = &models.QueryResultData{}
	}

	var buf bytes.Buffer
	err := d.Renderer().Render(&buf, data, opts)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.previewErr = &RenderError{Type: typ, Err: err}
		return e.previewErr
	}
	e.previewErr = nil
	_, err = w.Write(buf.Bytes())
	return err
}

// PreviewError returns the last preview failure, or nil.
func (e *Editor) PreviewError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.previewErr
}
