package logger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Logger is a small chained wrapper around slog that carries the component,
// file and function a message originates from.
type Logger struct {
	name     string
	file     string
	function string
	base     *slog.Logger
}

func New(name string) Logger {
	return Logger{name: name}
}

// Configure installs the process-wide slog handler. Production gets JSON,
// everything else gets human readable text.
func Configure(environment string, level string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(environment, "production") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithHandler returns a copy that writes through the given slog logger
// instead of slog.Default. Used by tests to capture output.
func (l Logger) WithHandler(base *slog.Logger) Logger {
	l.base = base
	return l
}

func (l Logger) File(file string) Logger {
	l.file = file
	return l
}

func (l Logger) Function(function string) Logger {
	l.function = function
	return l
}

func (l Logger) slog() *slog.Logger {
	base := l.base
	if base == nil {
		base = slog.Default()
	}

	attrs := []any{"component", l.name}
	if l.file != "" {
		attrs = append(attrs, "file", l.file)
	}
	if l.function != "" {
		attrs = append(attrs, "function", l.function)
	}

	return base.With(attrs...)
}

func (l Logger) Debug(msg string, args ...any) {
	l.slog().Debug(msg, args...)
}

func (l Logger) Info(msg string, args ...any) {
	l.slog().Info(msg, args...)
}

func (l Logger) Warn(msg string, args ...any) {
	l.slog().Warn(msg, args...)
}

// Err logs err and returns it wrapped with msg. errors.Is/As still see the
// original error through the wrap.
func (l Logger) Err(msg string, err error, args ...any) error {
	if err == nil {
		return l.Error(msg, args...)
	}
	l.Er(msg, err, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// Er logs err without returning anything.
func (l Logger) Er(msg string, err error, args ...any) {
	args = append(args, "error", err)
	l.slog().Error(msg, args...)
}

// Error logs msg and returns it as a new error.
func (l Logger) Error(msg string, args ...any) error {
	l.slog().Error(msg, args...)
	return errors.New(msg)
}

func (l Logger) ErrMsg(msg string) error {
	return l.Error(msg)
}

func (l Logger) ErMsg(msg string) {
	l.slog().Error(msg)
}
