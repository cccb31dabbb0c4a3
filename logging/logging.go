// Package logging builds the zap loggers used by troupe runtimes.
//
// A logger is a tee of an optional console core and an optional JSON file core.
// The file core rotates through lumberjack.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes a logger.
type Config struct {
	// Level is one of debug, info, warn, error, dpanic, panic, fatal. Unknown values mean info.
	Level string `json:"level" yaml:"level" mapstructure:"level"`
	// Path of the JSON log file. Empty disables the file core.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
	// Console enables human-readable output on stderr.
	Console bool `json:"console" yaml:"console" mapstructure:"console"`
	// File holds rotation settings for Path.
	File FileConfig `json:"file" yaml:"file" mapstructure:"file"`
}

// FileConfig holds lumberjack rotation settings.
type FileConfig struct {
	MaxSize    int  `json:"maxSize" yaml:"maxSize" mapstructure:"maxSize"` // megabytes
	MaxBackups int  `json:"maxBackups" yaml:"maxBackups" mapstructure:"maxBackups"`
	MaxAge     int  `json:"maxAge" yaml:"maxAge" mapstructure:"maxAge"` // days
	Compress   bool `json:"compress" yaml:"compress" mapstructure:"compress"`
	LocalTime  bool `json:"localTime" yaml:"localTime" mapstructure:"localTime"`
}

// DefaultConfig logs at info level to the console only.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Console: true,
		File: FileConfig{
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
			LocalTime:  true,
		},
	}
}

// ParseLevel maps a level name to a zapcore.Level.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
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
		return zapcore.InfoLevel
	}
}

// New builds a logger from cfg. A config with neither Path nor Console yields a no-op logger.
func New(cfg Config, opts ...zap.Option) *zap.Logger {
	level := zap.NewAtomicLevelAt(ParseLevel(cfg.Level))
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "M",
		LevelKey:       "L",
		TimeKey:        "T",
		CallerKey:      "C",
		NameKey:        "N",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000Z0700"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	cores := make([]zapcore.Core, 0, 2)
	if cfg.Path != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(newWriter(cfg.Path, cfg.File)), level,
		))
	}
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), level,
		))
	}
	if len(cores) == 0 {
		return zap.NewNop()
	}

	zapOpts := append([]zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)}, opts...)
	return zap.New(zapcore.NewTee(cores...), zapOpts...).Named("troupe")
}

// Default returns the logger used when a runtime is not given one.
func Default() *zap.Logger { return New(DefaultConfig()) }

func newWriter(filename string, cfg FileConfig) io.Writer {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 100
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 10
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 30
	}
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		LocalTime:  cfg.LocalTime,
		Compress:   cfg.Compress,
	}
}
