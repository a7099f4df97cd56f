package otel

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/Treamyracle/INFOMEDIA/internal/requestctx"
)

// TraceContextFrom returns trace_id and span_id from the span in ctx, if any.
func TraceContextFrom(ctx context.Context) (traceID, spanID string) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return "", ""
	}
	return span.SpanContext().TraceID().String(), span.SpanContext().SpanID().String()
}

// LogTraceFields returns a zerolog Func hook that adds trace_id and span_id to the
// event when a valid span exists in ctx. Use with .Func():
//
//	log.Info().Str("session_id", id).Func(otel.LogTraceFields(ctx)).Msg("...")
func LogTraceFields(ctx context.Context) func(e *zerolog.Event) {
	return func(e *zerolog.Event) {
		traceID, spanID := TraceContextFrom(ctx)
		if traceID != "" {
			e.Str("trace_id", traceID)
		}
		if spanID != "" {
			e.Str("span_id", spanID)
		}
	}
}

// LogRequestFields is LogTraceFields plus the session_id carried by ctx.
// Request-level logs use it; deeper layers log the id they were handed.
func LogRequestFields(ctx context.Context) func(e *zerolog.Event) {
	traceFields := LogTraceFields(ctx)
	return func(e *zerolog.Event) {
		if id := requestctx.SessionID(ctx); id != "" {
			e.Str("session_id", id)
		}
		traceFields(e)
	}
}
