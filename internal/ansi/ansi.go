// Package ansi provides ANSI escape code constants and helpers for terminal
// output. All colored/styled terminal output should reference these constants
// to avoid duplication.
package ansi

// ANSI SGR (Select Graphic Rendition) codes.
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Blue   = "\033[34m"
	Yellow = "\033[33m"
	Green  = "\033[32m"
	Red    = "\033[31m"
	Cyan   = "\033[36m"
)

// Paint wraps s in a color code when enabled, or returns it unchanged so
// non-TTY output stays clean.
func Paint(color, s string, enabled bool) string {
	if !enabled {
		return s
	}
	return color + s + Reset
}
