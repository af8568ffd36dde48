package logger

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config controls the logger's level, format, and destination.
type Config struct {
	// Level is the minimum level to log: debug, info, warn, or error.
	Level string
	// JSON switches from text to JSON output.
	JSON bool
	// Output defaults to os.Stderr when nil.
	Output io.Writer
	// AddSource attaches file:line of the call site to each record.
	AddSource bool
}

// Logger wraps slog for structured logging across the service.
type Logger struct {
	*slog.Logger
}

var global *Logger

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

// New builds a logger from cfg. The first logger built becomes the
// process-wide fallback returned by GetGlobal.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	l := &Logger{Logger: slog.New(handler)}
	if global == nil {
		global = l
	}
	return l
}

// SetGlobal replaces the process-wide fallback logger.
func SetGlobal(logger *Logger) {
	global = logger
}

// GetGlobal returns the process-wide logger, building a default one on
// first use if none was set.
func GetGlobal() *Logger {
	if global == nil {
		global = New(Config{Level: "info", JSON: true})
	}
	return global
}

// LogError logs err at error level with additional key/value context.
func (l *Logger) LogError(err error, msg string, args ...any) {
	l.Error(msg, append([]any{"error", err.Error()}, args...)...)
}

// WithRequestID scopes the logger to one admin request.
func (l *Logger) WithRequestID(requestID string) *Logger {
	if requestID == "" {
		return l
	}
	return &Logger{Logger: l.With("request_id", requestID)}
}

// WithConversationID scopes the logger to one conversation.
func (l *Logger) WithConversationID(conversationID int64) *Logger {
	return &Logger{Logger: l.With("conversation_id", strconv.FormatInt(conversationID, 10))}
}

// LogRequest records a completed HTTP request.
func (l *Logger) LogRequest(method, path string, status int, latency time.Duration) {
	l.Info("request completed",
		"method", method,
		"path", path,
		"status", status,
		"latency_ms", latency.Milliseconds(),
	)
}
