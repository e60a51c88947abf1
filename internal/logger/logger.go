package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger represents application logger.
type Logger struct {
	*slog.Logger
}

type options struct {
	out  io.Writer
	json bool
}

// Option configures the logger output.
type Option func(*options)

// WithOutput redirects log output to w.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithJSON switches the handler to JSON lines.
func WithJSON(enabled bool) Option {
	return func(o *options) { o.json = enabled }
}

// New creates new Logger instance with the specified level.
func New(level int, opts ...Option) *Logger {
	o := options{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	handlerOpts := &slog.HandlerOptions{Level: slog.Level(level)}

	var h slog.Handler
	if o.json {
		h = slog.NewJSONHandler(o.out, handlerOpts)
	} else {
		h = slog.NewTextHandler(o.out, handlerOpts)
	}

	return &Logger{Logger: slog.New(h)}
}

// With returns a Logger that includes the given attributes in each record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Fatal is equivalent to Error followed by os.Exit(1).
func (l *Logger) Fatal(msg string, args ...any) {
	l.Logger.Error(msg, args...)
	os.Exit(1)
}
