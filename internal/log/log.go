// Package log builds the node's zap.Logger: JSON to a rotated file via
// lumberjack, human-readable console output to stderr, one shared level.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how verbosely the node logs.
type Config struct {
	Level      string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Console    bool
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		FilePath:   "bitassetsd.log",
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 28,
		Console:    true,
	}
}

// New builds a zap.Logger writing JSON to a rotated file and, when
// Console is set, human-readable output to stderr at the same level.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}),
		level,
	)
	cores := []zapcore.Core{fileCore}

	if cfg.Console {
		consoleEncoderCfg := zap.NewDevelopmentEncoderConfig()
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderCfg),
			zapcore.Lock(zapcore.AddSync(os.Stderr)),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}
