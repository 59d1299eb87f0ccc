package utils

import (
	"io"
	"strings"

	"github.com/pterm/pterm"
)

// LevelFromString converts a config value to a pterm log level.
// Unrecognised values fall back to warn.
func LevelFromString(level string) pterm.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "info":
		return pterm.LogLevelInfo
	case "error":
		return pterm.LogLevelError
	case "off", "disabled", "quiet":
		return pterm.LogLevelDisabled
	default:
		return pterm.LogLevelWarn
	}
}

// NewLogger builds the structured logger shared by the session packages.
func NewLogger(w io.Writer, level string) *pterm.Logger {
	return pterm.DefaultLogger.
		WithWriter(w).
		WithLevel(LevelFromString(level)).
		WithTime(false)
}

// NewDiscardLogger returns a logger that drops everything. Useful for tests.
func NewDiscardLogger() *pterm.Logger {
	return pterm.DefaultLogger.WithWriter(io.Discard).WithLevel(pterm.LogLevelDisabled)
}
