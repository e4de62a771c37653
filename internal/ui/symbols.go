package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Host completed every command
	SymbolFail     = "✗" // Host failed to connect or dispatch
	SymbolComplete = "●" // Run totals
	SymbolSkipped  = "⊘" // Risky command skipped
)
