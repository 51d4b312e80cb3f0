package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// ShopKey is the context key for the shop domain
	ShopKey contextKey = "shop"
	// RunIDKey is the context key for the sync run ID
	RunIDKey contextKey = "run_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, returns default logger if not found
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	// Return a no-op logger if not found
	return zap.NewNop()
}

// WithRequestID adds request ID to context and returns enriched logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, RequestIDKey, requestID)
	enrichedLogger := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, enrichedLogger), enrichedLogger
}

// WithShop adds shop to context and returns enriched logger
func WithShop(ctx context.Context, logger *zap.Logger, shop string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, ShopKey, shop)
	enrichedLogger := logger.With(zap.String("shop", shop))
	return WithContext(ctx, enrichedLogger), enrichedLogger
}

// WithRunID adds run ID to context and returns enriched logger
func WithRunID(ctx context.Context, logger *zap.Logger, runID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, RunIDKey, runID)
	enrichedLogger := logger.With(zap.String("run_id", runID))
	return WithContext(ctx, enrichedLogger), enrichedLogger
}

// ForRun scopes ctx and logger to one sync run of a shop
func ForRun(ctx context.Context, logger *zap.Logger, shop, runID string) (context.Context, *zap.Logger) {
	ctx, logger = WithShop(ctx, logger, shop)
	return WithRunID(ctx, logger, runID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetShop retrieves shop from context
func GetShop(ctx context.Context) string {
	if shop, ok := ctx.Value(ShopKey).(string); ok {
		return shop
	}
	return ""
}

// GetRunID retrieves run ID from context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

func traceFields(ctx context.Context) []zap.Field {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	}
}

// WithTraceContext adds trace_id and span_id from the context's span.
// Without a valid span the logger is returned unchanged.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if fields := traceFields(ctx); len(fields) > 0 {
		return logger.With(fields...)
	}
	return logger
}

// correlationFields returns the request, run and trace ids carried by ctx.
// The shop is left out; callers that know the tenant log it themselves.
func correlationFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if runID := GetRunID(ctx); runID != "" {
		fields = append(fields, zap.String("run_id", runID))
	}
	return append(fields, traceFields(ctx)...)
}

// Scoped annotates a component logger with the correlation ids carried by ctx,
// so adapter log lines can be joined to the request or sync run that caused them.
func Scoped(ctx context.Context, base *zap.Logger) *zap.Logger {
	if fields := correlationFields(ctx); len(fields) > 0 {
		return base.With(fields...)
	}
	return base
}
