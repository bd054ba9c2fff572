package logging

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func timeEncoder(config Config) zapcore.TimeEncoder {
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format(config.TimeFormat))
	}
}

// GetEncoder returns a zapcore.Encoder based on the config format.
func GetEncoder(config Config) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    config.ZapEncodeLevel(),
		EncodeTime:     timeEncoder(config),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if config.Format == "json" {
		return zapcore.NewJSONEncoder(encoderConfig)
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

// exactLevel enables only level, so each file holds one level.
func exactLevel(level zapcore.Level) zap.LevelEnablerFunc {
	return func(l zapcore.Level) bool {
		return l == level
	}
}

// getZapCores returns one stdout core for every level at or above the
// configured one and, when files are enabled, one file core per level.
func getZapCores(config Config) []zapcore.Core {
	min := config.TransportLevel()
	encoder := GetEncoder(config)

	var cores []zapcore.Core
	if config.toConsole() {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), zap.NewAtomicLevelAt(min)))
	}
	if config.toFile() {
		for level := min; level <= zapcore.FatalLevel; level++ {
			f := trackFile(newDailyFile(config, level.String()))
			cores = append(cores, zapcore.NewCore(encoder.Clone(), f, exactLevel(level)))
		}
	}
	return cores
}
