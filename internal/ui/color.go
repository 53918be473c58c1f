// Package ui provides terminal styling for the reconcile command.
package ui

import (
	"github.com/fatih/color"
)

// Color functions for styled output.
var (
	// Success marks automatically resolved conflicts (green).
	Success = color.New(color.FgGreen).SprintFunc()
	// Error marks failures (red).
	Error = color.New(color.FgRed).SprintFunc()
	// Warning marks conflicts waiting for manual review (yellow).
	Warning = color.New(color.FgYellow).SprintFunc()
	// Bold is used for emphasis.
	Bold = color.New(color.Bold).SprintFunc()
	// Dim is used for secondary information.
	Dim = color.New(color.Faint).SprintFunc()
	// Header is used for table headers (bold cyan).
	Header = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// Status symbols.
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolPending = "○"
)

// StatusSuccess returns a green checkmark with optional message.
func StatusSuccess(msg string) string {
	return status(Success(SymbolSuccess), msg)
}

// StatusError returns a red X with optional message.
func StatusError(msg string) string {
	return status(Error(SymbolError), msg)
}

// StatusPending returns a yellow circle with optional message.
func StatusPending(msg string) string {
	return status(Warning(SymbolPending), msg)
}

func status(symbol, msg string) string {
	if msg == "" {
		return symbol
	}
	return symbol + " " + msg
}

// DisableColors disables all color output.
func DisableColors() {
	color.NoColor = true
}

// EnableColors enables color output.
func EnableColors() {
	color.NoColor = false
}

// IsColorEnabled returns whether colors are currently enabled.
func IsColorEnabled() bool {
	return !color.NoColor
}
