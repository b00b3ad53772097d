package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Logging levels
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Environments: development logs human readable text, production logs JSON
const (
	EnvDevelopment = "dev"
	EnvProduction  = "prod"
)

// Logger interface defines the logging contract
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	With(args ...any) Logger
	WithGroup(name string) Logger
}

// New creates logger writing to stderr
func New(env string, level string) (Logger, error) {
	return NewWriter(os.Stderr, env, level)
}

// NewWriter creates logger writing to w. Format depends on env
func NewWriter(w io.Writer, env string, level string) (Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	h, err := newHandler(w, env, lvl)
	if err != nil {
		return nil, err
	}

	return &slogLogger{logger: slog.New(h)}, nil
}

// NewNoOpLogger creates a logger that discards all log messages
func NewNoOpLogger() Logger {
	return &slogLogger{logger: slog.New(slog.DiscardHandler)}
}

func parseLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if level == "" {
		return lvl, fmt.Errorf("log level must be set")
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return lvl, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}
