// Package logging provides the process-wide structured logger.
// It is a thin facade over logrus so call sites stay decoupled from the
// backing implementation and log rotation can be configured centrally.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger = logrus.New()

// Options controls logger initialization.
type Options struct {
	Level      string // debug, info, warn, error
	File       string // empty means stderr only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init configures the global logger. Safe to call more than once; the last
// call wins.
func Init(opts Options) {
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	SetLevel(opts.Level)

	if opts.File == "" {
		logger.SetOutput(os.Stderr)
		return
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		logger.SetOutput(os.Stderr)
		logger.Warnf("log file directory unavailable, falling back to stderr: %v", err)
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    defaultInt(opts.MaxSizeMB, 100),
		MaxBackups: defaultInt(opts.MaxBackups, 3),
		MaxAge:     defaultInt(opts.MaxAgeDays, 28),
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, rotator))
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// SetLevel adjusts the logging level by name. Unknown names map to info.
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
}

// Logger exposes the underlying logrus logger for integrations that need it.
func Logger() *logrus.Logger { return logger }

func Debugf(format string, args ...any) { logger.Debugf(format, args...) }
func Infof(format string, args ...any)  { logger.Infof(format, args...) }
func Warnf(format string, args ...any)  { logger.Warnf(format, args...) }
func Errorf(format string, args ...any) { logger.Errorf(format, args...) }

// WithFields returns an entry carrying structured fields.
func WithFields(fields map[string]any) *logrus.Entry {
	return logger.WithFields(logrus.Fields(fields))
}
