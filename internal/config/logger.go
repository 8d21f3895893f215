package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger builds the application logger from LoggingConfig and installs
// it as the slog default. File logging rotates via lumberjack; console
// logging optionally colors the level word.
func InitLogger(cfg *LoggingConfig) (*slog.Logger, error) {
	toFile := cfg.File != ""
	var writer io.Writer = os.Stderr
	if toFile {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		writer = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	}

	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		if cfg.Color && !toFile {
			handler = &coloredTextHandler{writer: writer, opts: opts}
		} else {
			handler = slog.NewTextHandler(writer, opts)
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

// DefaultLogFile is the log path used when logging.file is unset but file
// logging is requested
func DefaultLogFile() string {
	return filepath.Join(getStateDir(), "provideo", "provideo.log")
}

var levelColors = map[string]string{
	"DEBUG": "\033[90m",
	"INFO":  "\033[32m",
	"WARN":  "\033[33m",
	"ERROR": "\033[31m",
}

// coloredTextHandler renders slog text output with an ANSI-colored level word
type coloredTextHandler struct {
	writer io.Writer
	opts   *slog.HandlerOptions
	attrs  []slog.Attr
	group  string
}

func (h *coloredTextHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf strings.Builder
	var wrapped slog.Handler = slog.NewTextHandler(&buf, h.opts)
	if len(h.attrs) > 0 {
		wrapped = wrapped.WithAttrs(h.attrs)
	}
	if h.group != "" {
		wrapped = wrapped.WithGroup(h.group)
	}
	if err := wrapped.Handle(ctx, r); err != nil {
		return err
	}

	line := buf.String()
	if color, ok := levelColors[r.Level.String()]; ok {
		if parts := strings.SplitN(line, " ", 2); len(parts) == 2 {
			line = color + parts[0] + "\033[0m " + parts[1]
		}
	}
	_, err := h.writer.Write([]byte(line))
	return err
}

func (h *coloredTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *coloredTextHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.group = name
	return &clone
}

func (h *coloredTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts != nil && h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
