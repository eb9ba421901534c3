// Package log wraps log/slog with a component-scoped logger, the field names
// shared by every process and helpers to carry a logger in a context.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is a slog.Logger tagged with a component. The component is emitted
// once per record and can be replaced without duplicating the attribute.
type Logger struct {
	*slog.Logger
	// base carries every attribute except the component
	base      *slog.Logger
	component string
}

// Config selects the handler of a new Logger.
type Config struct {
	Level     slog.Level
	Component string
	// Handler overrides the text handler built from Level and Output.
	Handler slog.Handler
	// Output receives text records; stdout when nil.
	Output io.Writer
}

func New(cfg Config) *Logger {
	h := cfg.Handler
	if h == nil {
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		h = slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.Level})
	}
	return wrap(slog.New(h), cfg.Component)
}

func wrap(base *slog.Logger, component string) *Logger {
	l := &Logger{Logger: base, base: base, component: component}
	if component != "" {
		l.Logger = base.With(FieldComponent, component)
	}
	return l
}

// ForLevel returns a stdout text logger for component.
func ForLevel(component string, level slog.Level) *Logger {
	return New(Config{Level: level, Component: component})
}

// Discard returns a logger that drops every record.
func Discard() *Logger {
	return New(Config{Output: io.Discard})
}

// With returns a logger carrying args in addition to the current attributes.
func (l *Logger) With(args ...any) *Logger {
	return wrap(l.base.With(args...), l.component)
}

// WithComponent returns a logger tagged with component instead of the current one.
func (l *Logger) WithComponent(component string) *Logger {
	return wrap(l.base, component)
}

func (l *Logger) Component() string {
	return l.component
}

// SetDefault installs logger as the process-wide slog default.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

type contextKey struct{}

// NewContext returns ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or one built on the slog
// default when there is none.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return wrap(slog.Default(), "")
}
