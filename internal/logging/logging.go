// Package logging builds the zap logger shared by the advisor binaries.
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how verbosely the logger writes.
type Options struct {
	Level string
	// File, when set, receives rotated JSON logs instead of Stdout.
	File string
	// Discard drops console output when no file is configured.
	Discard bool
}

// New returns a JSON zap logger.
func New(opts Options) *zap.Logger {
	var out io.Writer = os.Stdout
	switch {
	case opts.File != "":
		out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	case opts.Discard:
		out = io.Discard
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(out),
		ParseLevel(opts.Level),
	)
	return zap.New(core, zap.AddCaller())
}

// ParseLevel maps LOG_LEVEL values onto zap levels. Unknown values mean info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
