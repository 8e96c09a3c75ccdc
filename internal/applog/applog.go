// Package applog builds the scheduler daemon's own slog.Logger,
// grounded on the teacher's internal/logger package: the same
// MaxSizeMB/MaxBackups/MaxAgeDays defaults and gopkg.in/natefinch/
// lumberjack.v2-backed rotation, repurposed from a per-OS-process
// stdout/stderr pair into one structured log stream for the daemon
// itself (there is no subprocess stdout/stderr in this domain — the
// scheduler only ever invokes in-process callables).
package applog

import (
	"io"
	"log/slog"
	"os"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config describes the daemon log destination and rotation policy.
type Config struct {
	Dir        string // if File is empty, defaults to Dir/scheduler.log
	File       string // explicit path overrides Dir
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Level      string // debug, info, warn, error
}

// New builds a slog.Logger writing JSON records to the configured
// rotating file, or, when no file destination is configured at all
// (e.g. local/dev runs of the CLI), to stdout with ANSI coloring via
// ColorTextHandler.
func New(cfg Config) *slog.Logger {
	level := parseLevel(cfg.Level)
	path := cfg.File
	if path == "" && cfg.Dir != "" {
		path = cfg.Dir + string(os.PathSeparator) + "scheduler.log"
	}
	if path == "" {
		return slog.New(NewColorTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}, true))
	}

	var w io.Writer = &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   cfg.Compress,
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) slog.Level {
	switch s {
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

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
