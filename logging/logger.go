package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger used across the service.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	// Fatal logs and then calls os.Exit(1).
	Fatal(msg string, fields ...zap.Field)

	With(fields ...zap.Field) Logger
	WithError(err error) Logger
	Named(name string) Logger

	// Zap returns the underlying *zap.Logger.
	Zap() *zap.Logger
	Sync() error
}

type zapLogger struct {
	zl *zap.Logger
}

// NewLogger creates a Logger from config.
func NewLogger(config Config) Logger {
	config.applyDefaults()

	zl := zap.New(zapcore.NewTee(getZapCores(config)...))
	if config.ShowLineNumber {
		zl = zl.WithOptions(zap.AddCaller(), zap.AddCallerSkip(1))
	}
	return &zapLogger{zl: zl}
}

// FromZap wraps an existing *zap.Logger.
func FromZap(zl *zap.Logger) Logger {
	return &zapLogger{zl: zl}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return FromZap(zap.NewNop())
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.zl.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)  { l.zl.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)  { l.zl.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.zl.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...zap.Field) { l.zl.Fatal(msg, fields...) }

func (l *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{zl: l.zl.With(fields...)}
}

func (l *zapLogger) WithError(err error) Logger {
	return l.With(zap.Error(err))
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{zl: l.zl.Named(name)}
}

func (l *zapLogger) Zap() *zap.Logger {
	return l.zl
}

func (l *zapLogger) Sync() error {
	return l.zl.Sync()
}
