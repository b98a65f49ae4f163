// Package ui renders assistant output for a terminal.
package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorOK     = 114 // green
	colorWarn   = 214 // orange
	colorAlert  = 203 // red
	colorMuted  = 245 // medium gray
	colorCmd    = 250 // light gray
)

var noColor bool

func paint(color int, s string) string {
	if noColor || s == "" {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderWarn returns s in the warning (orange) color.
func RenderWarn(s string) string { return paint(colorWarn, s) }

// RenderSource colors an answer source label: memory answers are green,
// model answers blue and degraded answers orange.
func RenderSource(source string) string {
	switch source {
	case "memory":
		return paint(colorOK, source)
	case "model":
		return paint(colorAccent, source)
	default:
		return paint(colorWarn, source)
	}
}

// RenderSeverity colors a conflict finding by severity.
func RenderSeverity(severity, s string) string {
	switch severity {
	case "high":
		return paint(colorAlert, s)
	case "low":
		return paint(colorMuted, s)
	default:
		return paint(colorWarn, s)
	}
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// SetColor enables or disables color output globally.
func SetColor(on bool) {
	noColor = !on
}
