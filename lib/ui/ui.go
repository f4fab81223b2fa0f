// Package ui routes all user-visible output and prompting. The display
// mode is an explicit value handed to every component that talks to the
// user; nothing in this repository consults a process-wide verbosity flag.
package ui

import (
	"fmt"
	"io"
	"os"
)

// Mode selects how chatty the tool is and where output is routed.
type Mode int

const (
	// Quiet silences everything except the final export command; prompts
	// and messages go to stderr so `eval $(clokta -p default)` works.
	Quiet Mode = iota
	// Brief is the default output level.
	Brief
	// Long adds explicit usage instructions after login.
	Long
	// Debug dumps internal state.
	Debug
)

// UI is the single sink for messages and prompts.
type UI struct {
	Mode Mode
	Out  io.Writer
	Err  io.Writer
}

// New returns a UI bound to the process streams.
func New(mode Mode) *UI {
	return &UI{Mode: mode, Out: os.Stdout, Err: os.Stderr}
}

// IsDebug reports whether internal state should be dumped.
func (u *UI) IsDebug() bool {
	return u.Mode == Debug
}

// messageWriter returns where informational output belongs. In quiet mode
// stdout is reserved for executable statements.
func (u *UI) messageWriter() io.Writer {
	if u.Mode == Quiet {
		return u.Err
	}
	return u.Out
}

// Echo prints an info-level message or prompt header.
func (u *UI) Echo(format string, args ...interface{}) {
	fmt.Fprintf(u.messageWriter(), format+"\n", args...)
}

// Tick prints a single progress character with no newline, one per poll
// of an outstanding push notification.
func (u *UI) Tick(s string) {
	fmt.Fprint(u.messageWriter(), s)
}

// Warn prints a non-fatal problem to stderr.
func (u *UI) Warn(format string, args ...interface{}) {
	fmt.Fprintf(u.Err, format+"\n", args...)
}

// Result prints an executable statement. This is the only output that
// stays on stdout in quiet mode.
func (u *UI) Result(format string, args ...interface{}) {
	fmt.Fprintf(u.Out, format+"\n", args...)
}
