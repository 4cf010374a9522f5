// Package logging builds the zerolog logger shared by every command.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options controls the logger returned by New.
type Options struct {
	// Level is a zerolog level name ("debug", "info", "warn", "error").
	// Unknown or empty values fall back to info.
	Level string

	// Format is "console" (human-readable, default) or "json".
	Format string

	// NoColor disables ANSI colors in console output.
	NoColor bool
}

// New returns a timestamped logger writing to w.
func New(w io.Writer, opts Options) zerolog.Logger {
	if !strings.EqualFold(opts.Format, "json") {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor,
		}
	}

	return zerolog.New(w).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel converts a level name into a zerolog.Level. Besides zerolog's
// own names it accepts "warning" and "off".
func ParseLevel(level string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	switch name {
	case "warning":
		name = zerolog.WarnLevel.String()
	case "off":
		name = zerolog.Disabled.String()
	}

	l, err := zerolog.ParseLevel(name)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}
