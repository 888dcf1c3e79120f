package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Entry
}

type Config struct {
	// Environment "" or "local" gets a colored text formatter; anything else JSON.
	Environment string
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level  string
	Output io.Writer
}

// ConfigFromEnv reads ENVIRONMENT and LOG_LEVEL.
func ConfigFromEnv() Config {
	return Config{
		Environment: os.Getenv("ENVIRONMENT"),
		Level:       os.Getenv("LOG_LEVEL"),
	}
}

func New(cfg Config) *Logger {
	base := logrus.New()

	// Local env = pretty console; others = JSON
	env := strings.TrimSpace(cfg.Environment)
	if env == "" || env == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			ForceColors:     cfg.Output == nil,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	if cfg.Output != nil {
		base.SetOutput(cfg.Output)
	} else {
		base.SetOutput(os.Stdout)
	}
	base.SetLevel(ParseLevel(cfg.Level))

	return &Logger{Entry: logrus.NewEntry(base)}
}

// ParseLevel maps a LOG_LEVEL value to a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// SetDebug lowers the level to debug, used by strict/debug mode.
func (l *Logger) SetDebug() {
	l.Logger.SetLevel(logrus.DebugLevel)
}

// WithRun tags every entry with a run id. An empty id gets a fresh UUID.
func (l *Logger) WithRun(runID string) *Logger {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Logger{Entry: l.WithField("run_id", runID)}
}
