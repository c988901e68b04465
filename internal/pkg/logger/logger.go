package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the application logger.
type Options struct {
	Level  string // debug | info | warn | error
	Format string // text | json
	// File, when set, receives a JSON copy of every record with size-based rotation.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a slog.Logger writing to stdout and, optionally, a rotated file.
func New(opts Options) *slog.Logger {
	return newWithWriter(os.Stdout, opts)
}

func newWithWriter(stdout io.Writer, opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)

	var console slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		console = slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: level})
	} else {
		console = tint.NewHandler(stdout, &tint.Options{Level: level})
	}
	if opts.File == "" {
		return slog.New(console)
	}

	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    valueOr(opts.MaxSizeMB, 100),
		MaxBackups: valueOr(opts.MaxBackups, 5),
		MaxAge:     valueOr(opts.MaxAgeDays, 28),
		Compress:   true,
	}
	return slog.New(fanout{console, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})})
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func valueOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
