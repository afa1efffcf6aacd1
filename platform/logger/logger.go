// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// SessionIDKey is the context key for the browsing session ID
	SessionIDKey contextKey = "session_id"
	// DealIDKey is the context key for the deal ID
	DealIDKey contextKey = "deal_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id, session_id, and deal_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok && sessionID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("session_id", sessionID))}
	}

	if dealID, ok := ctx.Value(DealIDKey).(string); ok && dealID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("deal_id", dealID))}
	}

	return newLogger
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// ScoreComputed logs an engagement score evaluation for a deal.
func (l *Logger) ScoreComputed(dealID string, score int, temperature string, stage string) {
	l.Info("engagement_score",
		slog.String("deal_id", dealID),
		slog.Int("score", score),
		slog.String("temperature", temperature),
		slog.String("stage", stage),
	)
}

// MilestoneReached logs a first-time milestone crossing for a deal.
func (l *Logger) MilestoneReached(dealID string, milestone string, score int) {
	l.Info("milestone_reached",
		slog.String("deal_id", dealID),
		slog.String("milestone", milestone),
		slog.Int("score", score),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
