// Package logger provides a structured logging wrapper around Go's slog package.
// It supports JSON and text output, four levels (debug, info, warn, error)
// and several destinations (stdout, stderr, a file path or an arbitrary writer).
//
// Example usage:
//
//	log, err := logger.New(logger.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	if err != nil {
//	    return err
//	}
//
//	log.Info("function invoked", logger.Field{Key: "function", Value: "ping"})
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config представляет конфигурацию logger
type Config struct {
	Level  string    // debug, info, warn, error
	Format string    // json, text
	Output string    // stdout, stderr, или путь к файлу
	Writer io.Writer // если задан, Output игнорируется
}

// Logger wraps slog.Logger with the Field based API used across the module.
type Logger struct {
	slog *slog.Logger
}

// Field is a single structured logging attribute.
type Field struct {
	Key   string
	Value any
}

// New creates a logger from cfg.
func New(cfg Config) (*Logger, error) {
	level, valid := parseLevel(cfg.Level)
	if !valid {
		return nil, fmt.Errorf("invalid log level: %s (expected: debug, info, warn, error)", cfg.Level)
	}

	writer := cfg.Writer
	if writer == nil {
		w, err := openOutput(cfg.Output)
		if err != nil {
			return nil, err
		}
		writer = w
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	case "text":
		handler = slog.NewTextHandler(writer, opts)
	default:
		return nil, fmt.Errorf("invalid log format: %s (expected: json, text)", cfg.Format)
	}

	return &Logger{slog: slog.New(handler)}, nil
}

// NewDiscard returns a logger that drops every record.
func NewDiscard() *Logger {
	return &Logger{slog: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// openOutput resolves the Output setting to a writer.
func openOutput(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	// Путь к файлу - разворачиваем ~ в домашнюю директорию
	filePath := output
	if strings.HasPrefix(filePath, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(homeDir, filePath[2:])
	}
	filePath = filepath.Clean(filePath)

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
	}
	return file, nil
}

// parseLevel конвертирует строку уровня в slog.Level
func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ValidLevel reports whether level is accepted by New.
func ValidLevel(level string) bool {
	_, ok := parseLevel(level)
	return ok
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.slog.Debug(msg, toArgs(fields)...)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.slog.Info(msg, toArgs(fields)...)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.slog.Warn(msg, toArgs(fields)...)
}

// Error logs msg at error level with err attached under the "error" key.
func (l *Logger) Error(msg string, err error, fields ...Field) {
	l.slog.Error(msg, toArgs(append([]Field{{Key: "error", Value: err}}, fields...))...)
}

func (l *Logger) InfoCtx(ctx context.Context, msg string, fields ...Field) {
	l.slog.InfoContext(ctx, msg, toArgs(fields)...)
}

func (l *Logger) WarnCtx(ctx context.Context, msg string, fields ...Field) {
	l.slog.WarnContext(ctx, msg, toArgs(fields)...)
}

func (l *Logger) ErrorCtx(ctx context.Context, msg string, err error, fields ...Field) {
	l.slog.ErrorContext(ctx, msg, toArgs(append([]Field{{Key: "error", Value: err}}, fields...))...)
}

func toArgs(fields []Field) []any {
	result := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		result = append(result, f.Key, f.Value)
	}
	return result
}

// With возвращает новый logger с добавленными полями
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{slog: l.slog.With(toArgs(fields)...)}
}

// StdLogger adapts the logger to *log.Logger at warn level, e.g. for
// http.Server.ErrorLog.
func (l *Logger) StdLogger() *log.Logger {
	return slog.NewLogLogger(l.slog.Handler(), slog.LevelWarn)
}

// SetDefault устанавливает стандартный logger
func SetDefault(l *Logger) {
	slog.SetDefault(l.slog)
}
