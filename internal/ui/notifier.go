package ui

import (
	"fmt"
	"io"
	"os"
)

// Notifier prints editor notifications. Boxed wraps each message in a
// lipgloss border, otherwise a colored one-line marker is used.
type Notifier struct {
	Out io.Writer
	// ErrOut receives warnings; nil means stderr.
	ErrOut io.Writer
	Boxed  bool
}

// NewNotifier returns a notifier writing to stdout.
func NewNotifier(boxed bool) *Notifier {
	return &Notifier{Out: os.Stdout, Boxed: boxed}
}

// Success implements core.Notifier.
func (n *Notifier) Success(msg string) {
	if n.Boxed {
		fmt.Fprintln(n.out(), Styles.SuccessBox.Render(successColor.Sprint("✓ ")+msg))
		return
	}
	fmt.Fprintln(n.out(), successColor.Sprint("✓ ")+msg)
}

// Error implements core.Notifier.
func (n *Notifier) Error(msg string) {
	if n.Boxed {
		fmt.Fprintln(n.out(), Styles.ErrorBox.Render(errorColor.Sprint("✗ ")+msg))
		return
	}
	fmt.Fprintln(n.out(), errorColor.Sprint("✗ ")+msg)
}

// Warn prints a warning that is not part of the editor contract.
func (n *Notifier) Warn(msg string) {
	w := n.ErrOut
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintln(w, warningColor.Sprint("! ")+msg)
}

// Info prints a neutral message.
func (n *Notifier) Info(msg string) {
	fmt.Fprintln(n.out(), infoColor.Sprint(msg))
}

func (n *Notifier) out() io.Writer {
	if n.Out == nil {
		return os.Stdout
	}
	return n.Out
}
