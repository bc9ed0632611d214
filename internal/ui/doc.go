// Package ui provides terminal UI components for sshreg's CLI output.
//
// The package includes an animated spinner and styled text output using
// the Lip Gloss library for consistent terminal styling.
//
// # Color Scheme
//
// Colors are defined as hex values rendered through Lip Gloss:
//
//	ColorSuccess   (neon green)  - Successful operations
//	ColorError     (red-pink)    - Failures and errors
//	ColorWarning   (amber)       - Warnings and skipped items
//	ColorInfo      (cyan)        - Informational messages
//	ColorMuted     (purple-gray) - Secondary text, timing info
//
// Use DisableColors() to switch to monochrome output (for --no-color).
//
// # Symbols
//
// Unicode symbols provide visual status indicators:
//
//	SymbolSuccess  - Operation completed successfully
//	SymbolFail     - Operation failed
//	SymbolPending  - Operation not yet started
//	SymbolProgress - Operation in progress
//	SymbolComplete - Operation done (alternative)
//	SymbolSkipped  - Operation skipped
//	SymbolWarning  - Non-fatal problem
//
// # Spinner Usage
//
// The Spinner type provides an animated indicator for operations:
//
//	s := ui.NewSpinner("Connecting")
//	s.Start()
//	// ... do work ...
//	s.Success() // or s.Fail() or s.Skip()
//
// The spinner handles terminal output, clearing lines, and timing display.
package ui
