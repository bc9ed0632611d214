package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal. Interactive
// prompts and spinners are only shown when this is true.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
