// Package logging provides a small abstraction over slog so components can
// depend on a minimal interface while the process entry point decides the
// handler, level, and output format.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the minimal structured logging interface used across the module.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// Config controls construction of the default slog-backed logger.
type Config struct {
	Level  slog.Level
	Format string // "json" or "text"
	Output io.Writer
}

// DefaultConfig returns a text logger at info level writing to stderr.
func DefaultConfig() Config {
	return Config{Level: slog.LevelInfo, Format: "text", Output: os.Stderr}
}

type slogLogger struct {
	l *slog.Logger
}

// New builds a Logger from the given config.
func New(cfg Config) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return &slogLogger{l: slog.New(handler)}
}

// NewComponent returns a child of the given logger scoped to a component name.
func NewComponent(parent Logger, component string) Logger {
	return parent.With("component", component)
}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...)}
}

// NopLogger discards everything. Used in tests and as a nil-safe default.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
func (n NopLogger) With(...any) Logger { return n }
