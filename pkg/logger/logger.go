// Package logger sets up the zerolog console logger used across pgcache.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Init builds a console logger on stderr at level and installs it as the
// default context logger.
func Init(level string) (*zerolog.Logger, error) {
	return InitWriter(os.Stderr, level)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level string) (*zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	consoleWriter := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	logger := zerolog.New(consoleWriter).
		Level(lvl).
		With().
		Timestamp().
		Logger()
	zerolog.DefaultContextLogger = &logger
	return &logger, nil
}

// ParseLevel maps a level name to a zerolog level; empty means warn.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return zerolog.WarnLevel, nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "invalid log level %q", level)
	}
	return lvl, nil
}

// WithLogger attaches logger to ctx.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// Logger returns the logger carried by ctx, falling back to the default
// context logger, or a disabled one when none was installed.
func Logger(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
