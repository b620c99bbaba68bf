package ui

import (
	"context"
	"errors"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/kilupskalvis/vizedit/internal/core"
)

// ErrInterrupted is returned when the user aborts a prompt with Ctrl-C.
var ErrInterrupted = errors.New("interrupted")

// Prompter asks the user questions.
type Prompter interface {
	Confirm(message string, def bool) (bool, error)
	Select(message string, options []string, def string) (string, error)
	Input(message, def string) (string, error)
}

// Survey is a Prompter on the controlling terminal.
type Survey struct {
	opts []survey.AskOpt
}

// NewSurvey returns a terminal prompter. opts are passed to every question.
func NewSurvey(opts ...survey.AskOpt) *Survey {
	return &Survey{opts: opts}
}

func (s *Survey) Confirm(message string, def bool) (bool, error) {
	var answer bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &answer, s.opts...)
	return answer, interrupted(err)
}

func (s *Survey) Select(message string, options []string, def string) (string, error) {
	var answer string
	prompt := &survey.Select{Message: message, Options: options}
	if def != "" {
		prompt.Default = def
	}
	err := survey.AskOne(prompt, &answer, s.opts...)
	return answer, interrupted(err)
}

func (s *Survey) Input(message, def string) (string, error) {
	var answer string
	err := survey.AskOne(&survey.Input{Message: message, Default: def}, &answer, s.opts...)
	return answer, interrupted(err)
}

func interrupted(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrInterrupted
	}
	return err
}

// Confirmer adapts a Prompter to core.Confirmer. Interrupting the prompt
// counts as declining.
type Confirmer struct {
	Prompter Prompter
}

// Confirm implements core.Confirmer.
func (c Confirmer) Confirm(ctx context.Context, message string) (core.Decision, error) {
	if err := ctx.Err(); err != nil {
		return core.DecisionDeclined, err
	}
	ok, err := c.Prompter.Confirm(message, false)
	if errors.Is(err, ErrInterrupted) {
		return core.DecisionDeclined, nil
	}
	if err != nil {
		return core.DecisionDeclined, err
	}
	if ok {
		return core.DecisionConfirmed, nil
	}
	return core.DecisionDeclined, nil
}
