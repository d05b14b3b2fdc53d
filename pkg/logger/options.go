package logger

import (
	"io"
	"log/slog"
)

// Format selects the handler New builds.
type Format int

const (
	// FormatText is slog's key=value text handler.
	FormatText Format = iota

	// FormatPretty is the colorized charmbracelet/log handler the CLI uses.
	FormatPretty

	// FormatJSON is slog's JSON handler, for "serve --log-file".
	FormatJSON
)

// Option configures a logger built by New.
type Option func(*config)

// WithFormat picks the output format. The default is FormatText.
func WithFormat(f Format) Option {
	return func(c *config) { c.format = f }
}

// WithLevel sets the minimum level. The default is slog.LevelInfo.
func WithLevel(level slog.Level) Option {
	return func(c *config) { c.level = level }
}

// WithDebug lowers the level to Debug, which is where dropped stream lines
// and malformed ndjson are reported. False leaves the level alone.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithWriter sends output to w instead of os.Stderr. Stdout carries
// streamed answers and is never the default.
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.out = w }
}

// WithSource adds the calling file and line to every record.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}
