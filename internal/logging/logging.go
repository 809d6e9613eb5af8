// Package logging builds the process logger from the general settings.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"chanrelay/internal/config"
)

// New returns a slog logger writing to stderr and, when cfg.LogFile is set,
// to a size-rotated file as well. The returned closer flushes the file.
func New(cfg config.GeneralConfig) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotator)
		closer = rotator
	}
	return NewWithWriter(out, cfg.LogLevel, cfg.LogFormat), closer
}

// NewWithWriter returns a text or JSON slog logger at level writing to w.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps debug/info/warn/error to a slog level; unknown values are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Named returns logger tagged with the component name.
func Named(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("logger", name)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
