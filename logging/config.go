// Package logging configures the process-wide slog logger. Regular builds
// print to the terminal; `-tags prod` builds, which ship as the desktop app
// without a console, write bgeraser.log instead.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Config is filled from the log section of the settings file.
type Config struct {
	Level slog.Level
	// Dir holds bgeraser.log in prod builds, DefaultLogDir() when empty.
	Dir string
	// Console is where regular builds write. Stderr when nil, which keeps
	// the batch and process summaries on stdout pipeable.
	Console io.Writer

	// rotation of bgeraser.log
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	AddSource bool
}

// DefaultConfig logs at info and keeps about a month of compressed logs.
func DefaultConfig() *Config {
	return &Config{
		Level:      slog.LevelInfo,
		MaxSizeMB:  20,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
	}
}

// DefaultLogDir is bgeraser/logs under the user config dir, or under the
// cache or temp dir when the former is unknown.
func DefaultLogDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir, err = os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
	}
	return filepath.Join(dir, "bgeraser", "logs")
}

var globalLogger *slog.Logger

// L is the logger installed by Setup, slog.Default() before that.
func L() *slog.Logger {
	if globalLogger != nil {
		return globalLogger
	}
	return slog.Default()
}

func setGlobal(logger *slog.Logger) {
	globalLogger = logger
	slog.SetDefault(logger)
}

type ctxKey struct{}

// With stores logger in ctx, e.g. one carrying a request or job id.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// From is the logger stored by With, or L().
func From(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L()
	}
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return L()
}

// WithAttrs stores From(ctx).With(args...) in ctx.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	return With(ctx, From(ctx).With(args...))
}
