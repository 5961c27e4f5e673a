// Package logger configures the zap logger shared by the server, the CLI and
// strategy runs.
package logger

import (
	"go.uber.org/zap"
)

// Logger embeds *zap.Logger, so callers log with zap fields directly.
type Logger struct {
	*zap.Logger
}

// NewLogger returns an info-level production logger.
func NewLogger() (*Logger, error) {
	return NewLoggerWithLevel("info")
}

// NewLoggerWithLevel returns a JSON production logger writing to stdout. An
// empty level means info; other values are zap level names.
func NewLoggerWithLevel(level string) (*Logger, error) {
	if level == "" {
		level = "info"
	}

	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	config := zap.NewProductionConfig()
	config.Level = atomicLevel
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{Logger: zapLogger}, nil
}

func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// Sync flushes buffered entries. It is a no-op on a zero Logger.
func (l *Logger) Sync() error {
	if l.Logger == nil {
		return nil
	}

	return l.Logger.Sync()
}
