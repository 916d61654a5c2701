package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

// LoggerContextKey is the context key for the logger
const LoggerContextKey ContextKey = "logger"

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
		component: ComponentApp,
	}
}

// RequestIDMiddleware enriches the context logger with a request ID
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HTTPLogger logs request lifecycle events at a level derived from status.
type HTTPLogger struct {
	logger *Logger
}

func NewHTTPLogger(logger *Logger) *HTTPLogger {
	return &HTTPLogger{logger: logger.WithComponent(ComponentHTTP)}
}

// LogStart logs the start of an HTTP request
func (hl *HTTPLogger) LogStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithClientIP(clientIP)
	hl.logger.DebugContext(ctx, "request started", fields.ToSlice()...)
}

// LogEnd logs the completion of an HTTP request
func (hl *HTTPLogger) LogEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP)
	hl.logger.Logger.Log(ctx, level, "request completed", fields.ToSlice()...)
}
