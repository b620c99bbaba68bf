package core

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeLocked is returned by ChangeType while editing a saved visualization.
	ErrTypeLocked = errors.New("visualization type cannot change once saved")

	// ErrDeprecatedType is returned when a new visualization picks a deprecated type.
	ErrDeprecatedType = errors.New("visualization type is deprecated")

	// ErrSaveInProgress is returned by Save while an earlier save is outstanding.
	ErrSaveInProgress = errors.New("save already in progress")

	// ErrSessionClosed is returned by any transition after save or dismiss.
	ErrSessionClosed = errors.New("editor session is closed")
)

// ConfigurationError reports a visualization type missing from the registry.
// It is fatal to the editing session.
type ConfigurationError struct {
	Type string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unknown visualization type %q", e.Type)
}

// RenderError wraps a preview failure. It never affects saved state.
type RenderError struct {
	Type string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s preview: %v", e.Type, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// PersistenceError wraps a rejected save.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save visualization: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
