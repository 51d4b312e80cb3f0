package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func startTestSpan(t *testing.T) (context.Context, trace.Span) {
	t.Helper()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer("logger-test").Start(context.Background(), "reconciler.run")
}

func TestFromContext(t *testing.T) {
	base, recorded := newObservedLogger()

	tests := []struct {
		name     string
		ctx      context.Context
		wantLogs int
	}{
		{"attached logger", WithContext(context.Background(), base), 1},
		{"missing logger falls back to nop", context.Background(), 0},
		{"wrong value type falls back to nop", context.WithValue(context.Background(), LoggerKey, "not a logger"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := FromContext(tt.ctx)
			require.NotNil(t, log)
			log.Info("lookup")
			assert.Len(t, recorded.TakeAll(), tt.wantLogs)
		})
	}
}

func TestForRun(t *testing.T) {
	base, recorded := newObservedLogger()

	ctx, log := ForRun(context.Background(), base, "demo.myshopify.com", "run-42")
	log.Info("run started")

	assert.Equal(t, "demo.myshopify.com", GetShop(ctx))
	assert.Equal(t, "run-42", GetRunID(ctx))
	assert.Empty(t, GetRequestID(ctx))

	fields := recorded.TakeAll()[0].ContextMap()
	assert.Equal(t, "demo.myshopify.com", fields["shop"])
	assert.Equal(t, "run-42", fields["run_id"])

	FromContext(ctx).Info("from context")
	assert.Equal(t, "run-42", recorded.TakeAll()[0].ContextMap()["run_id"], "context carries the enriched logger")
}

func TestContextGetters_Empty(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetShop(ctx))
	assert.Empty(t, GetRunID(ctx))
}

func TestWithRequestID_Overrides(t *testing.T) {
	base, _ := newObservedLogger()

	ctx, _ := WithRequestID(context.Background(), base, "req-1")
	ctx, _ = WithRequestID(ctx, base, "req-2")

	assert.Equal(t, "req-2", GetRequestID(ctx))
}

func TestWithTraceContext(t *testing.T) {
	t.Run("no span leaves logger unchanged", func(t *testing.T) {
		base, _ := newObservedLogger()
		assert.Same(t, base, WithTraceContext(context.Background(), base))
	})

	t.Run("invalid span context", func(t *testing.T) {
		base, _ := newObservedLogger()
		ctx := trace.ContextWithSpanContext(context.Background(), trace.SpanContext{})
		assert.Same(t, base, WithTraceContext(ctx, base))
	})

	t.Run("recording span", func(t *testing.T) {
		base, recorded := newObservedLogger()
		ctx, span := startTestSpan(t)
		defer span.End()

		WithTraceContext(ctx, base).Info("traced")

		fields := recorded.All()[0].ContextMap()
		assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	})
}

func TestScoped(t *testing.T) {
	spanCtx, span := startTestSpan(t)
	defer span.End()

	runCtx, _ := ForRun(spanCtx, zap.NewNop(), "demo.myshopify.com", "run-7")
	requestCtx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-3")

	tests := []struct {
		name    string
		ctx     context.Context
		want    map[string]any
		without []string
	}{
		{
			name:    "empty context",
			ctx:     context.Background(),
			want:    map[string]any{},
			without: []string{"request_id", "run_id", "trace_id", "shop"},
		},
		{
			name:    "request",
			ctx:     requestCtx,
			want:    map[string]any{"request_id": "req-3"},
			without: []string{"run_id", "trace_id"},
		},
		{
			name: "sync run inside a span",
			ctx:  runCtx,
			want: map[string]any{
				"run_id":   "run-7",
				"trace_id": span.SpanContext().TraceID().String(),
				"span_id":  span.SpanContext().SpanID().String(),
			},
			without: []string{"request_id", "shop"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, recorded := newObservedLogger()

			Scoped(tt.ctx, base.With(zap.String("component", "shopify"))).Info("call")

			fields := recorded.All()[0].ContextMap()
			assert.Equal(t, "shopify", fields["component"])
			for key, value := range tt.want {
				assert.Equal(t, value, fields[key], key)
			}
			for _, key := range tt.without {
				assert.NotContains(t, fields, key)
			}
		})
	}
}
