package cli

import (
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrNotInteractive is returned when a prompt needs an answer and stdin is
// not a terminal.
var ErrNotInteractive = errors.New("input required but stdin is not a terminal; pass the value as a flag")

// Prompter asks the user for input.
type Prompter interface {
	Input(title, value string, secret bool) (string, error)
	Select(title string, options []string) (string, error)
	Confirm(title string, value bool) (bool, error)
}

// TerminalPrompter prompts with huh forms when stdin is a terminal.
type TerminalPrompter struct {
	Interactive bool
}

// NewTerminalPrompter checks whether in is a terminal.
func NewTerminalPrompter(in *os.File) *TerminalPrompter {
	return &TerminalPrompter{Interactive: term.IsTerminal(int(in.Fd()))}
}

// Input asks for a line of text prefilled with value. Without a terminal a
// non-empty value is accepted as is.
func (p *TerminalPrompter) Input(title, value string, secret bool) (string, error) {
	if !p.Interactive {
		if value != "" {
			return value, nil
		}
		return "", ErrNotInteractive
	}
	in := huh.NewInput().
		Title(title).
		Value(&value).
		Validate(func(s string) error {
			if s == "" {
				return errors.New("a value is required")
			}
			return nil
		})
	if secret {
		in = in.EchoMode(huh.EchoModePassword)
	}
	if err := in.Run(); err != nil {
		return "", err
	}
	return value, nil
}

// Select asks for one of options.
func (p *TerminalPrompter) Select(title string, options []string) (string, error) {
	if !p.Interactive {
		return "", ErrNotInteractive
	}
	var choice string
	err := huh.NewSelect[string]().
		Title(title).
		Options(huh.NewOptions(options...)...).
		Value(&choice).
		Run()
	if err != nil {
		return "", err
	}
	return choice, nil
}

// Confirm asks a yes/no question. Without a terminal the answer is no.
func (p *TerminalPrompter) Confirm(title string, value bool) (bool, error) {
	if !p.Interactive {
		return false, nil
	}
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&value).
		Run()
	if err != nil {
		return false, err
	}
	return value, nil
}
