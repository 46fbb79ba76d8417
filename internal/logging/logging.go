// Package logging configures the process-wide logrus logger.
//
// The console owns the terminal, so it logs to a file; the simulated backend
// logs to stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Output targets.
const (
	OutputStderr = "stderr"
	OutputStdout = "stdout"
	OutputFile   = "file"
)

// Formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config selects level, format and destination.
type Config struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
	File   string `mapstructure:"file" yaml:"file"`
}

// Logger is the shared instance. Components derive entries from it with
// For so every line carries a component field.
var Logger = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
	})
	return l
}

// Init applies cfg to Logger. The returned closer releases the log file, if
// any, and is always non-nil.
func Init(cfg Config) (io.Closer, error) {
	if cfg.Level != "" {
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nopCloser{}, fmt.Errorf("invalid log level: %s", cfg.Level)
		}
		Logger.SetLevel(level)
	}

	switch cfg.Format {
	case "", FormatText:
		Logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
			DisableColors:   cfg.Output == OutputFile,
		})
	case FormatJSON:
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		return nopCloser{}, fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	switch cfg.Output {
	case "", OutputStderr:
		Logger.SetOutput(os.Stderr)
	case OutputStdout:
		Logger.SetOutput(os.Stdout)
	case OutputFile:
		path := cfg.File
		if path == "" {
			path = DefaultFile()
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nopCloser{}, fmt.Errorf("creating log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nopCloser{}, fmt.Errorf("failed to open log file: %w", err)
		}
		Logger.SetOutput(f)
		return f, nil
	default:
		return nopCloser{}, fmt.Errorf("invalid log output: %s", cfg.Output)
	}
	return nopCloser{}, nil
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	return Logger.WithField("component", component)
}

// DefaultFile is $XDG_STATE_HOME/bikepilot/bikepilot.log, falling back to
// ~/.local/state and finally the temp dir.
func DefaultFile() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "bikepilot", "bikepilot.log")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "bikepilot", "bikepilot.log")
	}
	return filepath.Join(os.TempDir(), "bikepilot.log")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
