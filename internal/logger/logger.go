// Package logger provides the shared application logger.
package logger

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
)

var std = newLogger()

func newLogger() *log.Logger {
	l := log.New(os.Stderr)

	// Styled level labels only when writing to a terminal.
	if isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("NO_COLOR") == "" {
		styles := log.DefaultStyles()
		styles.Levels[log.DebugLevel] = lipgloss.NewStyle().
			SetString("DEBUG").
			Bold(true).
			Foreground(lipgloss.Color("63"))
		styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
			SetString("INFO ").
			Bold(true).
			Foreground(lipgloss.Color("86"))
		styles.Levels[log.WarnLevel] = lipgloss.NewStyle().
			SetString("WARN ").
			Bold(true).
			Foreground(lipgloss.Color("192"))
		styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().
			SetString("ERROR").
			Bold(true).
			Foreground(lipgloss.Color("204"))
		l.SetStyles(styles)
	}

	return l
}

// L returns the shared logger.
func L() *log.Logger {
	return std
}

// SetLevel adjusts verbosity for quiet/verbose flags.
func SetLevel(quiet, verbose bool) {
	switch {
	case quiet:
		std.SetLevel(log.ErrorLevel)
	case verbose:
		std.SetLevel(log.DebugLevel)
	default:
		std.SetLevel(log.InfoLevel)
	}
}

// Convenience wrappers around the shared logger.
func Debug(msg any, kv ...any) { std.Debug(msg, kv...) }
func Info(msg any, kv ...any)  { std.Info(msg, kv...) }
func Warn(msg any, kv ...any)  { std.Warn(msg, kv...) }
func Error(msg any, kv ...any) { std.Error(msg, kv...) }
