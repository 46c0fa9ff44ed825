package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

var globalLogger *zap.Logger

// Init initializes the global logger.
// For "development" env, it produces pretty console logs.
// For "production" env, it produces JSON logs.
func Init(environment string, level string) error {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := zapcore.ParseLevel(level)
	if err == nil {
		config.Level = zap.NewAtomicLevelAt(l)
	}

	logger, err := config.Build()
	if err != nil {
		return err
	}

	globalLogger = logger
	return nil
}

// Get returns the global logger instance.
// If not initialized, it returns a no-op logger to prevent panics.
func Get() *zap.Logger {
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger
}

// WithRayID returns a context whose logger tags every entry with the request ray id.
func WithRayID(ctx context.Context, rayID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, Get().With(zap.String("ray_id", rayID)))
}

// FromContext returns the request scoped logger, falling back to the global one.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
			return l
		}
	}
	return Get()
}

// Sync flushes any buffered log entries.
func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}
