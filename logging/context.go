package logging

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	TraceIDKey ctxKey = "trace_id"
	// ImageIDKey carries the normalized identifier of the image being served.
	ImageIDKey ctxKey = "image_id"
)

type loggerKey struct{}

// WithContext returns logger with the trace and image ids found in ctx.
func WithContext(logger Logger, ctx context.Context) Logger {
	if ctx == nil {
		return logger
	}

	var fields []zap.Field
	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if imageID := stringValue(ctx, ImageIDKey); imageID != "" {
		fields = append(fields, zap.String("image_id", imageID))
	}

	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func SetTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func SetImageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ImageIDKey, id)
}

// FromContext returns the Logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) Logger {
	if ctx == nil {
		return Global()
	}
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return Global()
}

// ToContext stores logger in ctx.
func ToContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}
