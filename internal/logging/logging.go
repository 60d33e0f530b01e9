// Package logging provides structured logging for the inventory backend.
//
// This package wraps the standard library's log/slog package so that every
// component logs the same way. It supports text and JSON output, a
// configurable level, and component-scoped loggers.
//
// Usage:
//
//	// Initialize at startup
//	logging.Init(slog.LevelInfo, false) // Text format
//	logging.Init(slog.LevelDebug, true) // JSON format for production
//
//	// Get a component logger
//	log := logging.Component("manager.storage")
//	log.Info("storage moved", "id", id, "parent", parentID)
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the global logger instance.
var Logger *slog.Logger

// Init initializes the global logger with the specified level and format.
// If jsonFormat is true, logs are output as JSON; otherwise, human-readable text.
func Init(level slog.Level, jsonFormat bool) {
	InitWriter(os.Stdout, level, jsonFormat)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level slog.Level, jsonFormat bool) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// InitWithHandler initializes the global logger with a custom handler.
// This is useful for testing or custom output destinations.
func InitWithHandler(handler slog.Handler) {
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel converts a config string ("debug", "info", "warn", "error")
// into a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// With returns a new logger with additional attributes.
func With(args ...any) *slog.Logger {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	return Logger.With(args...)
}

// Component returns a logger for a specific component.
//
// Component loggers are usually created at package init, before Init runs.
// They resolve the global logger on every call so that a later Init still
// takes effect.
func Component(name string) *slog.Logger {
	return slog.New(&componentHandler{name: name})
}

// componentHandler forwards to the current global handler with a
// component attribute.
type componentHandler struct {
	name  string
	attrs []slog.Attr
	group string
}

func (h *componentHandler) target() slog.Handler {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	var hd slog.Handler = Logger.Handler().WithAttrs([]slog.Attr{slog.String("component", h.name)})
	if len(h.attrs) > 0 {
		hd = hd.WithAttrs(h.attrs)
	}
	if h.group != "" {
		hd = hd.WithGroup(h.group)
	}
	return hd
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.target().Enabled(ctx, level)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.target().Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &componentHandler{name: h.name, attrs: merged, group: h.group}
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{name: h.name, attrs: h.attrs, group: name}
}

// WithContext returns a logger that includes request-scoped context values.
func WithContext(ctx context.Context) *slog.Logger {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}

	logger := Logger

	if requestID, ok := ctx.Value(contextKeyRequestID).(uint64); ok {
		logger = logger.With("request_id", requestID)
	}
	if remote, ok := ctx.Value(contextKeyRemote).(string); ok {
		logger = logger.With("remote", remote)
	}
	if op, ok := ctx.Value(contextKeyOperation).(string); ok {
		logger = logger.With("op", op)
	}

	return logger
}

// Context key types for type-safe context value extraction.
type contextKey int

const (
	contextKeyRequestID contextKey = iota
	contextKeyRemote
	contextKeyOperation
)

// ContextWithRequestID adds a request ID to the context for logging.
func ContextWithRequestID(ctx context.Context, requestID uint64) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// ContextWithRemote adds the client address to the context for logging.
func ContextWithRemote(ctx context.Context, remote string) context.Context {
	return context.WithValue(ctx, contextKeyRemote, remote)
}

// ContextWithOperation adds the operation name to the context for logging.
func ContextWithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, contextKeyOperation, op)
}

// =============================================================================
// Convenience Functions
// =============================================================================

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	With().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	With().Info(msg, args...)
}

// Warn logs at warning level.
func Warn(msg string, args ...any) {
	With().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	With().Error(msg, args...)
}
