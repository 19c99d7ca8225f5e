package ui

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"
)

// WaitForCancel returns a context that is canceled on Ctrl+C
func WaitForCancel(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// PaletteFor enables color only when f is a terminal and NO_COLOR is unset.
func PaletteFor(f *os.File) Palette {
	_, noColor := os.LookupEnv("NO_COLOR")
	return Palette{Enabled: !noColor && IsTerminal(f)}
}
