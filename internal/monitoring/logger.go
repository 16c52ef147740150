// Package monitoring holds the process-wide diagnostic logger and the
// estimator metrics.
package monitoring

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string
	// Format is text, json or logfmt. Empty means text.
	Format string
	// Verbose forces debug level regardless of Level.
	Verbose bool
}

// NewLogger returns a timestamped charmbracelet logger writing to w.
func NewLogger(w io.Writer, o LoggerOptions) (*charmlog.Logger, error) {
	level := charmlog.InfoLevel
	if o.Level != "" {
		l, err := charmlog.ParseLevel(strings.ToLower(o.Level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", o.Level, err)
		}
		level = l
	}
	if o.Verbose {
		level = charmlog.DebugLevel
	}

	var formatter charmlog.Formatter
	switch strings.ToLower(o.Format) {
	case "", "text":
		formatter = charmlog.TextFormatter
	case "json":
		formatter = charmlog.JSONFormatter
	case "logfmt":
		formatter = charmlog.LogfmtFormatter
	default:
		return nil, fmt.Errorf("invalid log format %q (want text, json or logfmt)", o.Format)
	}

	return charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
		Formatter:       formatter,
	}), nil
}

// RouteLogf points Logf at l's debug level, so storage and migration
// diagnostics appear with --verbose.
func RouteLogf(l *charmlog.Logger) {
	if l == nil {
		SetLogger(nil)
		return
	}
	SetLogger(l.Debugf)
}

type ctxKey int

const loggerKey ctxKey = 0

// WithLogger returns a copy of ctx carrying l.
func WithLogger(ctx context.Context, l *charmlog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// LoggerFromContext returns the logger attached by WithLogger, or the
// charmbracelet default logger.
func LoggerFromContext(ctx context.Context) *charmlog.Logger {
	if l, ok := ctx.Value(loggerKey).(*charmlog.Logger); ok {
		return l
	}
	return charmlog.Default()
}
