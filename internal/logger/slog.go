package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"
)

type slogLogger struct {
	logger *slog.Logger
}

func newHandler(w io.Writer, env string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   true,
		ReplaceAttr: shortSource,
	}

	switch env {
	case EnvDevelopment:
		return slog.NewTextHandler(w, opts), nil
	case EnvProduction:
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown environment %q, expected one of: %s, %s", env, EnvDevelopment, EnvProduction)
	}
}

// shortSource keeps package dir and file name only: "auth/auth.go" and "handlers/auth.go" stay distinct
func shortSource(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}
	if source, ok := a.Value.Any().(*slog.Source); ok && source != nil {
		source.File = filepath.Join(filepath.Base(filepath.Dir(source.File)), filepath.Base(source.File))
	}
	return a
}

// log records the caller of Debug/Info/Warn/Error as the source, not this wrapper
func (l *slogLogger) log(level slog.Level, msg string, args []any) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // runtime.Callers, log, Debug/Info/...

	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(args...)
	_ = l.logger.Handler().Handle(ctx, record)
}

func (l *slogLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *slogLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l *slogLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...)}
}

func (l *slogLogger) WithGroup(name string) Logger {
	return &slogLogger{logger: l.logger.WithGroup(name)}
}
