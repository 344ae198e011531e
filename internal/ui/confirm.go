package ui

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrNotTerminal is returned by Confirm when stdin cannot prompt.
var ErrNotTerminal = errors.New("confirmation needs an interactive terminal")

var (
	stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	runConfirm      = func(c *huh.Confirm) error { return c.Run() }
)

// Confirm asks a yes/no question. A declined or aborted prompt returns
// false without error.
func Confirm(title, description string) (bool, error) {
	if !stdinIsTerminal() {
		return false, ErrNotTerminal
	}

	var ok bool
	c := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok)

	if err := runConfirm(c); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return ok, nil
}
