package core

import (
	"context"
	"fmt"
	"time"

	"github.com/kilupskalvis/vizedit/internal/models"
	"github.com/kilupskalvis/vizedit/internal/registry"
)

// SubjectVisualization is the analytics subject of editor events.
const SubjectVisualization = "visualization"

// DismissOutcome tells the caller whether a dismiss closed the session.
type DismissOutcome int

const (
	DismissKept DismissOutcome = iota
	DismissClosed
)

func (o DismissOutcome) String() string {
	if o == DismissClosed {
		return "closed"
	}
	return "kept"
}

const discardPrompt = "Discard unsaved changes to this visualization?"

// Payload builds the visualization that Save would persist. The registry
// scaffold supplies defaults, the stored visualization keeps its identity
// and the edit state supplies name, type and options. TABLE's paginationSize
// is a preview setting and is never persisted.
func (e *Editor) Payload() (*models.Visualization, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.payload()
}

func (e *Editor) payload() (*models.Visualization, error) {
	opts := e.state.Options.Clone()
	if e.state.Type == registry.TypeTable {
		opts = opts.Without(registry.PaginationSizeOption)
	}

	v, err := e.deps.Registry.Build(e.state.Type)
	if err != nil {
		return nil, &ConfigurationError{Type: e.state.Type}
	}
	if e.existing != nil {
		prior := e.existing.Clone()
		v.ID = prior.ID
		v.Description = prior.Description
		v.CreatedAt = prior.CreatedAt
		v.UpdatedAt = prior.UpdatedAt
	}
	v.Type = e.state.Type
	v.Name = e.state.Name
	v.Options = opts
	v.QueryID = e.query.ID
	return v, nil
}

// Save persists the edit. On success the query's visualization list is
// replaced with the upserted one and the session closes. On failure the
// session stays open with its state untouched and a *PersistenceError is
// returned. Concurrent calls while a save is outstanding get
// ErrSaveInProgress.
func (e *Editor) Save(ctx context.Context) (*models.Visualization, error) {
	e.mu.Lock()
	if err := e.checkOpen(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if e.deps.Persister == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("save visualization: no persister configured")
	}
	payload, err := e.payload()
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.inFlight = true
	e.mu.Unlock()

	start := time.Now()
	saved, err := e.deps.Persister.SaveVisualization(ctx, payload)

	e.mu.Lock()
	e.inFlight = false
	if err != nil {
		e.mu.Unlock()
		e.log.Warn("save failed", "type", payload.Type, "error", err)
		e.deps.Notifier.Error(fmt.Sprintf("Could not save visualization: %v", err))
		return nil, &PersistenceError{Err: err}
	}
	if saved == nil {
		saved = payload
	}
	list, appended := models.UpsertVisualization(e.query.Visualizations, saved)
	e.query.Visualizations = list
	e.closed = true
	e.mu.Unlock()

	e.log.Debug("visualization saved",
		"id", saved.ID,
		"type", saved.Type,
		"appended", appended,
		"duration", time.Since(start),
	)
	e.deps.Notifier.Success(fmt.Sprintf("Visualization %q saved", saved.Name))

	action := models.ActionCreate
	if payload.ID != 0 {
		action = models.ActionUpdate
	}
	ev := models.Event{
		Action:    action,
		Subject:   SubjectVisualization,
		ObjectID:  saved.ID,
		Metadata:  map[string]string{"type": saved.Type},
		Timestamp: time.Now().UTC(),
	}
	if err := e.deps.Analytics.Record(ctx, ev); err != nil {
		e.log.Warn("record analytics event", "action", action, "error", err)
	}

	return saved, nil
}

// Dismiss ends the session without saving. A dirty edit is closed only after
// the confirmer answers yes; a declined or failed prompt keeps the session
// open with its state intact. A save outstanding when the answer arrives
// wins, and Dismiss reports ErrSaveInProgress.
func (e *Editor) Dismiss(ctx context.Context) (DismissOutcome, error) {
	e.mu.Lock()
	if err := e.checkOpen(); err != nil {
		e.mu.Unlock()
		return DismissKept, err
	}
	dirty := IsDirty(e.state, e.baseline)
	if !dirty {
		e.closed = true
		e.mu.Unlock()
		return DismissClosed, nil
	}
	e.mu.Unlock()

	if e.deps.Confirmer == nil {
		return DismissKept, nil
	}
	decision, err := e.deps.Confirmer.Confirm(ctx, discardPrompt)
	if err != nil {
		e.log.Debug("discard prompt failed", "error", err)
		return DismissKept, nil
	}
	if decision != DecisionConfirmed {
		return DismissKept, nil
	}

	// A save may have started or finished while the prompt was open.
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOpen(); err != nil {
		return DismissKept, err
	}
	e.closed = true
	return DismissClosed, nil
}
