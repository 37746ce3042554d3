package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the application logger
type Options struct {
	Level  string
	Format string

	// File, when set, receives a copy of every log line and is rotated by size
	// and age.
	File string
}

// NewWithOptions creates a logger from opts. Unknown levels fall back to info.
func NewWithOptions(opts Options) *logrus.Logger {
	logger := logrus.New()

	lvl, err := logrus.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(opts.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stderr
	if opts.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100,
			MaxAge:     14,
			MaxBackups: 14,
			Compress:   true,
		})
	}
	logger.SetOutput(out)

	if err != nil && opts.Level != "" {
		logger.WithField("level", opts.Level).Warn("Unknown log level, using info")
	}

	return logger
}
