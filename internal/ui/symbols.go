package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "◉" // Operation completed successfully
	SymbolFail     = "✕" // Operation failed
	SymbolPending  = "◇" // Operation not yet started
	SymbolProgress = "◆" // Operation in progress
	SymbolComplete = "●" // Operation done (alternative to success)
	SymbolSkipped  = "⊖" // Operation skipped
	SymbolWarning  = "⚠" // Non-fatal problem
)
