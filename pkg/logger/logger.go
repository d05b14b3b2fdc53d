// Package logger provides opinionated logging capabilities for ragtube.
//
// Every component takes a *slog.Logger. CLI commands build a pretty
// charmbracelet/log handler on stderr so that streamed answers on stdout
// stay clean; services can switch to JSON.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level  slog.Level
	format Format
	source bool
	out    io.Writer
}

// New builds a *slog.Logger from the given options. Without options it is an
// info-level text logger on os.Stderr.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level: slog.LevelInfo,
		out:   os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.out == nil {
		c.out = os.Stderr
	}

	switch c.format {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(c.out, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))

	case FormatPretty:
		return slog.New(charmlog.NewWithOptions(c.out, charmlog.Options{
			Level:           charmlog.Level(c.level),
			ReportTimestamp: true,
			ReportCaller:    c.source,
		}))

	default:
		return slog.New(slog.NewTextHandler(c.out, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))
	}
}

// NewCLI is the logger every ragtube command uses: pretty output on stderr,
// debug level when requested.
func NewCLI(debug bool) *slog.Logger {
	return New(WithFormat(FormatPretty), WithDebug(debug))
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
