package core

import (
	"context"

	"github.com/kilupskalvis/vizedit/internal/models"
)

// Persister stores a visualization and returns the saved copy with its id.
type Persister interface {
	SaveVisualization(ctx context.Context, v *models.Visualization) (*models.Visualization, error)
}

// Notifier shows fire-and-forget messages to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Analytics records usage events. Failures are logged and otherwise ignored.
type Analytics interface {
	Record(ctx context.Context, ev models.Event) error
}

// Decision is the outcome of a confirmation prompt.
type Decision int

const (
	DecisionDeclined Decision = iota
	DecisionConfirmed
)

func (d Decision) String() string {
	if d == DecisionConfirmed {
		return "confirmed"
	}
	return "declined"
}

// Confirmer asks the user a yes/no question and blocks until answered.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (Decision, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, message string) (Decision, error)

func (f ConfirmFunc) Confirm(ctx context.Context, message string) (Decision, error) {
	return f(ctx, message)
}

// AlwaysConfirm answers yes without asking.
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) (Decision, error) {
	return DecisionConfirmed, nil
})

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}

type nopAnalytics struct{}

func (nopAnalytics) Record(context.Context, models.Event) error { return nil }
