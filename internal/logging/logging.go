// Package logging carries a zap logger on a context.
package logging

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey struct{}

var (
	defaultLogger     *zap.SugaredLogger
	defaultLoggerOnce sync.Once
)

// NewLogger creates a logger at the given level ("debug", "info", "warn",
// "error"; anything else is info). dev selects the human readable console
// encoder instead of JSON.
func NewLogger(level string, dev bool) *zap.SugaredLogger {
	config := zap.NewProductionConfig()
	if dev {
		config = zap.NewDevelopmentConfig()
	}

	config.Level = zap.NewAtomicLevelAt(levelOf(level))

	logger, err := config.Build()
	if err != nil {
		logger = zap.NewNop()
	}

	return logger.Sugar()
}

func levelOf(level string) zapcore.Level {
	var l zapcore.Level

	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel
	}

	return l
}

// DefaultLogger returns the process wide logger used when a context carries
// none.
func DefaultLogger() *zap.SugaredLogger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = NewLogger("info", false)
	})

	return defaultLogger
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(contextKey{}).(*zap.SugaredLogger); ok {
		return logger
	}

	return DefaultLogger()
}
