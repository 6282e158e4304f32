// Package tlog provides the training pipeline's scoped logger.
//
// Fardinak-mnkagent never imports a third-party logging library, and
// original_source/Logger.{h,cpp} itself is a small instance handed
// around explicitly rather than a process-wide singleton, so this
// wraps log/slog instead of reaching for an external package nothing
// nearby uses.
package tlog

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a scoped logger threaded explicitly through the engine, board,
// and CLI entry points. No package-level instance is exposed.
type Logger struct {
	*slog.Logger
}

// New builds a Logger that writes structured text to w.
func New(w io.Writer) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(w, nil))}
}

// Discard returns a Logger that drops everything, for tests.
func Discard() *Logger {
	return New(io.Discard)
}

// Stderr is a convenience constructor for CLI entry points.
func Stderr() *Logger {
	return New(os.Stderr)
}

// With returns a Logger with the given structured fields attached.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}
