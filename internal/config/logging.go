package config

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps a configured level name to a zap level. The second
// return is false for off/none, meaning nothing should be logged.
func ParseLevel(s string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return zapcore.FatalLevel, false
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	default:
		return zapcore.ErrorLevel, true
	}
}

// NewLogger builds a JSON zap logger at level writing to file, or to stderr
// when file is empty. A leading ~/ in file is expanded and its directory
// created.
func NewLogger(level, file string) (*zap.Logger, error) {
	lvl, enabled := ParseLevel(level)
	if !enabled {
		return NullLogger(), nil
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Sampling = nil
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	if file != "" {
		path := ExpandHome(file)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, err
		}
		cfg.OutputPaths = []string{path}
	}

	return cfg.Build()
}

// NullLogger returns a logger that discards everything.
func NullLogger() *zap.Logger {
	return zap.NewNop()
}
