package ui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// Prompter gathers interactive input. Selectors take this interface so
// tests can script their answers.
type Prompter interface {
	// Prompt asks for a free-form value. defaultValue is returned when
	// the user just hits enter.
	Prompt(label, defaultValue string) (string, error)

	// Password asks for a secret without echoing it.
	Password(label string) (string, error)

	// Choose presents options as a 1-indexed numbered list and returns
	// the chosen index (1-based). Invalid input re-prompts until a valid
	// in-range integer is entered.
	Choose(label string, options []string) (int, error)
}

// TerminalPrompter prompts on the controlling terminal via promptui.
type TerminalPrompter struct {
	UI *UI
}

// promptOutput returns the stream prompts render to. In quiet mode they
// go to stderr so `eval $(clokta -p default)` captures only the export
// statement.
func (t *TerminalPrompter) promptOutput() io.WriteCloser {
	if t.UI != nil && t.UI.Mode == Quiet {
		return os.Stderr
	}
	return os.Stdout
}

func (t *TerminalPrompter) Prompt(label, defaultValue string) (string, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
		Stdout:  t.promptOutput(),
	}
	return p.Run()
}

func (t *TerminalPrompter) Password(label string) (string, error) {
	p := promptui.Prompt{
		Label:  label,
		Mask:   '*',
		Stdout: t.promptOutput(),
	}
	return p.Run()
}

func (t *TerminalPrompter) Choose(label string, options []string) (int, error) {
	for i, opt := range options {
		t.UI.Echo("%d - %s", i+1, opt)
	}

	validate := func(input string) error {
		n, err := strconv.Atoi(strings.TrimSpace(input))
		if err != nil {
			return fmt.Errorf("please select a valid option: you chose: %s", input)
		}
		if n < 1 || n > len(options) {
			return fmt.Errorf("please select a valid option: you chose: %d", n)
		}
		return nil
	}

	// promptui keeps the prompt open on validation failure, so a valid
	// in-range answer is the only way Run returns without error.
	p := promptui.Prompt{
		Label:    label,
		Validate: validate,
		Stdout:   t.promptOutput(),
	}
	for {
		raw, err := p.Run()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 1 || n > len(options) {
			continue
		}
		return n, nil
	}
}
