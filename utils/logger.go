package utils

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger for structured JSON logging.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a structured logger writing JSON to stdout.
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	return &Logger{Logger: slog.New(handler)}
}

// Fatal logs an error level message and exits the program.
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.Logger.Error(msg, args...)
	os.Exit(1)
}

// With returns a new logger with the given key-value pairs added to the context.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}
