package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Output destinations.
const (
	OutputConsole = "console"
	OutputFile    = "file"
	OutputBoth    = "both"
)

// Config represents the logger configuration.
type Config struct {
	// Director is the directory holding the per-day, per-level log files.
	Director string `mapstructure:"director" json:"director" yaml:"director" default:"logs"`

	// Level is the minimum log level (debug, info, warn, error, dpanic, panic, fatal).
	Level string `mapstructure:"level" json:"level" yaml:"level" default:"info"`

	// Format is the line format, json or console.
	Format string `mapstructure:"format" json:"format" yaml:"format" default:"json" validate:"oneof=json console"`

	// Output selects console, file or both.
	Output string `mapstructure:"output" json:"output" yaml:"output" default:"console" validate:"oneof=console file both"`

	// EncodeLevel is LowercaseLevelEncoder, LowercaseColorLevelEncoder,
	// CapitalLevelEncoder or CapitalColorLevelEncoder.
	EncodeLevel string `mapstructure:"encode-level" json:"encodeLevel" yaml:"encode-level" default:"LowercaseLevelEncoder"`

	TimeFormat string `mapstructure:"time-format" json:"timeFormat" yaml:"time-format" default:"2006-01-02T15:04:05.000Z07:00"`

	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `mapstructure:"max-age" json:"maxAge" yaml:"max-age" default:"7"`

	// MaxSize is the size in megabytes at which a log file is rotated.
	MaxSize int `mapstructure:"max-size" json:"maxSize" yaml:"max-size" default:"100"`

	MaxBackups int  `mapstructure:"max-backups" json:"maxBackups" yaml:"max-backups" default:"10"`
	Compress   bool `mapstructure:"compress" json:"compress" yaml:"compress"`

	// ShowLineNumber adds the caller to each entry.
	ShowLineNumber bool `mapstructure:"show-line-number" json:"showLineNumber" yaml:"show-line-number"`
}

// DefaultConfig returns the configuration used before config files are read.
func DefaultConfig() Config {
	return Config{
		Director:    "logs",
		Level:       "info",
		Format:      "json",
		Output:      OutputConsole,
		EncodeLevel: "LowercaseLevelEncoder",
		TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
		MaxAge:      7,
		MaxSize:     100,
		MaxBackups:  10,
	}
}

// TransportLevel converts the string level to zapcore.Level.
func (c Config) TransportLevel() zapcore.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.DebugLevel
	}
}

// ZapEncodeLevel returns the zapcore.LevelEncoder based on EncodeLevel.
func (c Config) ZapEncodeLevel() zapcore.LevelEncoder {
	switch c.EncodeLevel {
	case "LowercaseColorLevelEncoder":
		return zapcore.LowercaseColorLevelEncoder
	case "CapitalLevelEncoder":
		return zapcore.CapitalLevelEncoder
	case "CapitalColorLevelEncoder":
		return zapcore.CapitalColorLevelEncoder
	default:
		return zapcore.LowercaseLevelEncoder
	}
}

func (c Config) toConsole() bool {
	return c.Output != OutputFile
}

func (c Config) toFile() bool {
	return c.Output == OutputFile || c.Output == OutputBoth
}

// applyDefaults fills empty fields from DefaultConfig.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Director == "" {
		c.Director = d.Director
	}
	if c.Format == "" {
		c.Format = d.Format
	}
	if c.Output == "" {
		c.Output = d.Output
	}
	if c.TimeFormat == "" {
		c.TimeFormat = d.TimeFormat
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = d.MaxBackups
	}
	if c.MaxSize == 0 {
		c.MaxSize = d.MaxSize
	}
	if c.MaxAge == 0 {
		c.MaxAge = d.MaxAge
	}
}
