// Package ui holds the terminal styling shared by rexec's log markers, plan
// listing and run summary.
//
// Colors are ANSI codes rendered through Lip Gloss:
//
//	ColorSuccess   (green)  - Hosts that completed
//	ColorError     (red)    - Failures and errors
//	ColorWarning   (yellow) - Warnings and skipped commands
//	ColorMuted     (gray)   - Secondary text, timing info
//	ColorSecondary (blue)   - Headers
//
// Use DisableColors() to switch to monochrome output (for --no-color or when
// stdout is not a terminal).
package ui
