// Package otel wires OpenTelemetry tracing and metrics for the guardrail
// and provides shared attribute keys and middleware.
//
// Spans and metrics carry labels, tags, counts and session ids. Values held
// in a session vault never become attributes.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Treamyracle/INFOMEDIA/internal/requestctx"
)

// Deployment describes how this instance redacts and stores data. It is
// attached to the resource so exported telemetry says which stages ran.
type Deployment struct {
	AccountsBackend string
	NEREnabled      bool
	DebugVault      bool
}

func (d Deployment) attributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if d.AccountsBackend != "" {
		attrs = append(attrs, DomiAccountsBackend.String(d.AccountsBackend))
	}
	return append(attrs,
		DomiNEREnabled.Bool(d.NEREnabled),
		DomiDebugVault.Bool(d.DebugVault),
	)
}

// Setup initializes OpenTelemetry with stdout exporters for traces and metrics.
// If enabled is false, returns a no-op shutdown function and OTel remains disabled.
// Returns a shutdown function that must be called on exit.
func Setup(serviceName, version string, enabled bool, dep Deployment) (shutdown func(context.Context) error, err error) {
	if !enabled {
		return func(ctx context.Context) error { return nil }, nil
	}

	ctx := context.Background()
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
		resource.WithAttributes(dep.attributes()...),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTel resource: %w", err)
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sessionSpanProcessor{}),
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(tp)

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExporter)),
	)
	otel.SetMeterProvider(mp)

	shutdown = func(ctx context.Context) error {
		var firstErr error
		if err := tp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := mp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}
	return shutdown, nil
}

// sessionSpanProcessor stamps session.id on every span started under a
// context that carries a session, so one conversation turn can be followed
// across redaction, agent and tool spans.
type sessionSpanProcessor struct{}

func (sessionSpanProcessor) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	if id := requestctx.SessionID(parent); id != "" {
		s.SetAttributes(SessionID.String(id))
	}
}

func (sessionSpanProcessor) OnEnd(sdktrace.ReadOnlySpan) {}

func (sessionSpanProcessor) Shutdown(context.Context) error { return nil }

func (sessionSpanProcessor) ForceFlush(context.Context) error { return nil }

// Tracer returns a tracer for the given package
func Tracer(pkg string) trace.Tracer {
	return otel.Tracer(pkg)
}
