// Package logging builds the process logger.
//
// Components accept a logrus.FieldLogger. A nil logger falls back to the
// standard logrus logger tagged with the component name, so library code can
// be used without any setup:
//
//	log := logging.For(nil, "reconcile")
//	log.WithField("kind", kind).Info("reconciled")
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the logger built by New.
type Config struct {
	// Level is a logrus level name: debug, info, warn, error.
	Level string
	// Format is "text" or "json".
	Format string
	// File, when set, receives logs through a rotating writer instead of
	// stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// DefaultConfig returns info-level text logs on stderr.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "text",
		MaxSizeMB:  10,
		MaxBackups: 3,
	}
}

// New builds a logger from cfg.
func New(cfg Config) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log format %q (must be text or json)", cfg.Format)
	}

	logger.SetOutput(Writer(cfg))
	return logger, nil
}

// Writer returns the destination for cfg: a lumberjack rotating file when
// File is set, otherwise stderr.
func Writer(cfg Config) io.Writer {
	if cfg.File == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}
}

// For returns log tagged with component, or the standard logger when log is
// nil.
func For(log logrus.FieldLogger, component string) logrus.FieldLogger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithField("component", component)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
