package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"lintdeck/internal/config"
)

// Init configures the standard logrus logger and returns the writer it
// logs to, so callers can close files they opened.
func Init(cfg config.LoggingConfig) io.Writer {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("Invalid log level '%s', using 'info' instead. Error: %v", cfg.Level, err)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	case "discard", "none":
		output = io.Discard
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
			logrus.Warnf("Failed to create log directory for '%s'. Error: %v", cfg.Output, err)
		}
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logrus.Warnf("Failed to open log file '%s', using 'stderr' instead. Error: %v", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}
	logrus.SetOutput(output)
	return output
}

// OffTerminal returns cfg with a stdout or stderr output replaced by file,
// for programs that own the whole screen.
func OffTerminal(cfg config.LoggingConfig, file string) config.LoggingConfig {
	switch strings.ToLower(cfg.Output) {
	case "", "stderr", "stdout":
		cfg.Output = file
	}
	return cfg
}

// Close closes w when it is a log file Init opened.
func Close(w io.Writer) {
	if f, ok := w.(*os.File); ok && f != os.Stderr && f != os.Stdout {
		f.Close()
	}
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
