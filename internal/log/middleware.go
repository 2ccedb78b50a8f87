package log

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"costmanager/internal/core"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// WithContext stores logger in ctx for FromContext.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// RequestRecorder persists one entry per handled request. Implementations
// may be slow or fail; callers never wait on them.
type RequestRecorder interface {
	Record(ctx context.Context, entry core.LogEntry) error
}

// RecorderFunc adapts a function to RequestRecorder.
type RecorderFunc func(ctx context.Context, entry core.LogEntry) error

func (f RecorderFunc) Record(ctx context.Context, entry core.LogEntry) error {
	return f(ctx, entry)
}

// RequestLogMiddleware writes "[<Service> Service] METHOD URI" to the
// logger and hands the same line to rec in the background. A failing or
// panicking recorder is logged and otherwise ignored.
func RequestLogMiddleware(service string, rec RequestRecorder, logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			msg := fmt.Sprintf("[%s Service] %s %s", service, r.Method, r.URL.RequestURI())
			logger.InfoContext(r.Context(), msg)

			if rec != nil {
				entry := core.LogEntry{Level: "info", Message: msg, Timestamp: time.Now()}
				go record(context.WithoutCancel(r.Context()), rec, entry, logger)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func record(ctx context.Context, rec RequestRecorder, entry core.LogEntry, logger *Logger) {
	defer func() {
		if p := recover(); p != nil {
			logger.ErrorContext(ctx, "Request log recorder panicked", "panic", fmt.Sprint(p))
		}
	}()
	if err := rec.Record(ctx, entry); err != nil {
		logger.WarnContext(ctx, "Failed to save request log",
			FieldError, err,
			FieldComponent, ComponentRecorder)
	}
}
