// Package logging holds the process-wide structured logger. Engine
// components obtain child loggers through WithComponent and WithTable so the
// level, format and destination are set in one place by Init.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	logger   *slog.Logger
	loggerMu sync.RWMutex
	logFile  *os.File
	fallback *slog.Logger // slog default before the first Init
)

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn or error
	Format     string // "json" or "text"
	OutputPath string // empty for stderr
}

// ParseLevel maps a level name to a slog level; unknown names are info.
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

// New builds a logger writing to w.
func New(w io.Writer, config Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(config.Level)}
	if strings.EqualFold(config.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init replaces the process-wide logger. A previously opened log file is
// closed. The new logger also becomes slog's default.
func Init(config Config) error {
	var (
		writer io.Writer = os.Stderr
		file   *os.File
	)
	if config.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0o750); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		writer, file = f, f
	}

	l := New(writer, config)

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	if fallback == nil {
		fallback = slog.Default()
	}
	logger, logFile = l, file
	slog.SetDefault(l)
	return nil
}

// Close closes the log file, if any, and reverts to slog's default logger.
func Close() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	var err error
	if logFile != nil {
		err = logFile.Close()
		logFile = nil
	}
	logger = nil
	if fallback != nil {
		slog.SetDefault(fallback)
	}
	return err
}

// GetLogger returns the process-wide logger, or slog.Default before Init.
func GetLogger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// WithComponent returns a logger tagged with the subsystem name.
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithTable returns a logger tagged with a table id.
func WithTable(tableID string) *slog.Logger {
	return GetLogger().With("table", tableID)
}
