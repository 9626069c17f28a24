// Package logger builds the process slog.Logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"tradegate/internal/platform/config"
)

// New returns a structured logger writing to stdout, and additionally to a
// rotated file when cfg.File is set. The returned closer releases the file.
func New(cfg config.Logging) (*slog.Logger, io.Closer) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = io.MultiWriter(os.Stdout, file)
		closer = file
	}
	return NewWithWriter(w, cfg), closer
}

// NewWithWriter builds a logger on top of w.
func NewWithWriter(w io.Writer, cfg config.Logging) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
